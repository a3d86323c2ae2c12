// Package emissions computes CO2e estimates for logged activities.
package emissions

// ActivityTypes is the closed set of loggable activity types. Adding a
// type requires a LocalFactors entry and, optionally, a provider mapping.
var ActivityTypes = []string{
	"driving",
	"flight",
	"electricity",
	"natural_gas",
	"food_beef",
	"food_chicken",
	"purchase",
}

// Factor is a static emission factor converting a quantity in Unit into
// kilograms of CO2e.
type Factor struct {
	Factor      float64
	Unit        string
	Description string
}

// LocalFactors is the authoritative fallback table. The unit labels here
// are what the API displays even when a provider supplied the estimate.
var LocalFactors = map[string]Factor{
	"driving":      {Factor: 0.21, Unit: "km", Description: "kg CO2 per kilometer"},
	"flight":       {Factor: 0.255, Unit: "km", Description: "kg CO2 per kilometer"},
	"electricity":  {Factor: 0.42, Unit: "kWh", Description: "kg CO2 per kilowatt-hour"},
	"natural_gas":  {Factor: 2.0, Unit: "therm", Description: "kg CO2 per therm"},
	"food_beef":    {Factor: 27.0, Unit: "kg", Description: "kg CO2 per kilogram"},
	"food_chicken": {Factor: 6.9, Unit: "kg", Description: "kg CO2 per kilogram"},
	"purchase":     {Factor: 0.5, Unit: "USD", Description: "kg CO2 per dollar spent"},
}

// KnownType reports whether activityType is in the closed set.
func KnownType(activityType string) bool {
	_, ok := LocalFactors[activityType]
	return ok
}
