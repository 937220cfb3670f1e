package trend

import (
	"math"

	"kagent/internal/model"
)

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionFlat = "flat"
)

// flatEpsilon is the smallest delta that counts as movement.
const flatEpsilon = 1e-9

// Compute describes the move from prev to curr. DeltaPercent is 0 when prev
// is 0 since the ratio is undefined.
func Compute(prev, curr float64) model.Change {
	c := model.Change{From: prev, To: curr, Delta: Round(curr-prev, 4), Direction: DirectionFlat}
	if prev != 0 {
		c.DeltaPercent = Round((curr-prev)/math.Abs(prev)*100, 2)
	}
	switch d := curr - prev; {
	case d > flatEpsilon:
		c.Direction = DirectionUp
	case d < -flatEpsilon:
		c.Direction = DirectionDown
	}
	return c
}
