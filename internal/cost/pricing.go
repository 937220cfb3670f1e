package cost

import (
	"kagent/internal/model"
	"kagent/internal/trend"
)

const (
	hoursPerMonth = 24 * 30
	gib           = 1024 * 1024 * 1024
	mib           = 1024 * 1024
)

// Pricing holds list prices per provider.
var Pricing = map[string]model.PricingRates{
	"aws":   {CPUCoreHour: 0.0425, MemoryGBHour: 0.0050, StorageGBMonth: 0.10},
	"gcp":   {CPUCoreHour: 0.0440, MemoryGBHour: 0.0055, StorageGBMonth: 0.12},
	"azure": {CPUCoreHour: 0.0450, MemoryGBHour: 0.0060, StorageGBMonth: 0.11},
}

// InstanceTypes lists on-demand prices for common node sizes.
var InstanceTypes = map[string]map[string]model.InstanceType{
	"aws": {
		"t3.small":   {CPU: 2, Memory: 2, CostPerHour: 0.0209},
		"t3.medium":  {CPU: 2, Memory: 4, CostPerHour: 0.0418},
		"t3.large":   {CPU: 2, Memory: 8, CostPerHour: 0.0835},
		"m5.large":   {CPU: 2, Memory: 8, CostPerHour: 0.0960},
		"m5.xlarge":  {CPU: 4, Memory: 16, CostPerHour: 0.1920},
		"m5.2xlarge": {CPU: 8, Memory: 32, CostPerHour: 0.3840},
		"c5.large":   {CPU: 2, Memory: 4, CostPerHour: 0.0850},
		"c5.xlarge":  {CPU: 4, Memory: 8, CostPerHour: 0.1700},
		"r5.large":   {CPU: 2, Memory: 16, CostPerHour: 0.1260},
		"r5.xlarge":  {CPU: 4, Memory: 32, CostPerHour: 0.2520},
	},
}

func instanceType(provider, name string) (model.InstanceType, bool) {
	it, ok := InstanceTypes[provider][name]
	return it, ok
}

// nodeMonthlyCost prices a node by its instance type, or by capacity when the
// type is not in the table.
func nodeMonthlyCost(provider string, n model.Node) float64 {
	if it, ok := instanceType(provider, n.InstanceType); ok {
		return it.CostPerHour * hoursPerMonth
	}
	r := Pricing[provider]
	return (n.CPUCapacity*r.CPUCoreHour + n.MemoryCapacity/gib*r.MemoryGBHour) * hoursPerMonth
}

// SavingsPercent is the drop from current to potential monthly cost as a
// percentage of current, 0 when current is 0.
func SavingsPercent(current, potential float64) float64 {
	if current <= 0 {
		return 0
	}
	return trend.Round((current-potential)/current*100, 2)
}
