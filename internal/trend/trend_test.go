package trend

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	if got := Round(12.3456, 2); got != 12.35 {
		t.Errorf("Round(12.3456, 2) = %v, want 12.35", got)
	}
	if got := Round(-0.004, 2); got != 0 {
		t.Errorf("Round(-0.004, 2) = %v, want 0", got)
	}
}

func TestSlope(t *testing.T) {
	if got := Slope([]float64{10, 20, 30, 40}); math.Abs(got-10) > 1e-9 {
		t.Errorf("Slope(linear +10) = %v, want 10", got)
	}
	if got := Slope([]float64{7}); got != 0 {
		t.Errorf("Slope(single) = %v, want 0", got)
	}
	if got := Slope([]float64{5, 5, 5}); got != 0 {
		t.Errorf("Slope(constant) = %v, want 0", got)
	}
}

func TestPearson(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	if got := Pearson(xs, []float64{2, 4, 6, 8, 10}); math.Abs(got-1) > 1e-9 {
		t.Errorf("Pearson(perfect positive) = %v, want 1", got)
	}
	if got := Pearson(xs, []float64{10, 8, 6, 4, 2}); math.Abs(got+1) > 1e-9 {
		t.Errorf("Pearson(perfect negative) = %v, want -1", got)
	}
	if got := Pearson(xs, []float64{3, 3, 3, 3, 3}); got != 0 {
		t.Errorf("Pearson(zero variance) = %v, want 0", got)
	}
	if got := Pearson([]float64{1}, []float64{1}); got != 0 {
		t.Errorf("Pearson(one point) = %v, want 0", got)
	}
}

func TestP95(t *testing.T) {
	vs := make([]float64, 0, 100)
	for i := 100; i >= 1; i-- {
		vs = append(vs, float64(i))
	}
	if got := P95(vs); got != 96 {
		t.Errorf("P95(1..100) = %v, want 96", got)
	}
	if got := P95([]float64{4}); got != 4 {
		t.Errorf("P95(single) = %v, want 4", got)
	}
	if got := P95(nil); got != 0 {
		t.Errorf("P95(nil) = %v, want 0", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3}); got != 2 {
		t.Errorf("Mean(1,2,3) = %v, want 2", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
}

func TestCompute(t *testing.T) {
	c := Compute(50, 75)
	if c.Direction != DirectionUp || c.Delta != 25 || c.DeltaPercent != 50 {
		t.Errorf("Compute(50, 75) = %+v, want up +25 (+50%%)", c)
	}
	c = Compute(-20, -30)
	if c.Direction != DirectionDown || c.DeltaPercent != -50 {
		t.Errorf("Compute(-20, -30) = %+v, want down -50%%", c)
	}
	c = Compute(12.5, 12.5)
	if c.Direction != DirectionFlat || c.Delta != 0 {
		t.Errorf("Compute(equal) = %+v, want flat", c)
	}
	c = Compute(0, 10)
	if c.Direction != DirectionUp || c.DeltaPercent != 0 || c.From != 0 || c.To != 10 {
		t.Errorf("Compute(0, 10) = %+v, want up with zero percent", c)
	}
}
