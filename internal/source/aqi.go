package source

import "math"

const (
	// BaselineCO2 is the CO2-equivalent used when no air-quality data exists.
	BaselineCO2 = 400.0
	// MaxCO2Equivalent caps the pollutant refinement.
	MaxCO2Equivalent = 1500.0
)

// aqiToCO2 maps an ordinal air-quality index to its CO2-equivalent baseline.
var aqiToCO2 = map[int]float64{
	1: 400,
	2: 600,
	3: 800,
	4: 1000,
	5: 1200,
	6: 1400,
}

// CO2Equivalent derives the CO2-equivalent in ppm from an air-quality index
// and a carbon monoxide concentration in µg/m³.
//
// A nil index means the provider returned no air-quality data and yields
// BaselineCO2. Unknown indexes map to BaselineCO2. A positive concentration
// raises the value to 400 + co/10, capped at MaxCO2Equivalent, and never
// lowers it below the table value.
func CO2Equivalent(index *int, co float64) float64 {
	if index == nil {
		return BaselineCO2
	}
	value, ok := aqiToCO2[*index]
	if !ok {
		value = BaselineCO2
	}
	if co > 0 {
		value = math.Max(value, math.Min(MaxCO2Equivalent, BaselineCO2+co/10))
	}
	return value
}
