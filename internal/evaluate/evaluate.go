// Package evaluate classifies a Reading against the configured Thresholds.
package evaluate

import "airwatch/internal/types"

// Evaluate returns the classification of r under t.
//
// Dimensions are checked in the fixed order CO2, temperature, humidity, and a
// violation is recorded only when the observed value strictly exceeds its
// limit. A nil temperature or humidity limit disables that dimension. The
// function has no side effects.
func Evaluate(r types.Reading, t types.Thresholds) types.Classification {
	var violations []types.Violation

	if r.CO2PPM > t.CO2Limit {
		violations = append(violations, types.Violation{
			Dimension: types.DimensionCO2,
			Observed:  r.CO2PPM,
			Limit:     t.CO2Limit,
		})
	}
	if t.TemperatureLimit != nil && r.TemperatureC > *t.TemperatureLimit {
		violations = append(violations, types.Violation{
			Dimension: types.DimensionTemperature,
			Observed:  r.TemperatureC,
			Limit:     *t.TemperatureLimit,
		})
	}
	if t.HumidityLimit != nil && r.HumidityPct > *t.HumidityLimit {
		violations = append(violations, types.Violation{
			Dimension: types.DimensionHumidity,
			Observed:  r.HumidityPct,
			Limit:     *t.HumidityLimit,
		})
	}

	if len(violations) == 0 {
		return types.Classification{Status: types.StatusNormal}
	}
	return types.Classification{Status: types.StatusWarning, Violations: violations}
}
