// Package types holds the domain values shared by every airwatch component:
// the per-cycle Reading, the configured Thresholds, the derived Classification
// and the PersistedState record consumed by presentation processes.
package types

import (
	"fmt"
	"time"
)

// DefaultCO2Limit applies when the settings file carries no co2_limit.
const DefaultCO2Limit = 1000.0

// Reading is one cycle's acquired environmental sample. A Reading either has
// all three numeric fields or it does not exist; sources never return a
// partially filled value.
type Reading struct {
	CO2PPM       float64   `json:"co2"`
	TemperatureC float64   `json:"temperature"`
	HumidityPct  float64   `json:"humidity"`
	CapturedAt   time.Time `json:"timestamp"`
	SourceLabel  string    `json:"data_source"`
	Location     string    `json:"location,omitempty"`
}

// Thresholds is a snapshot of the configured limits. A nil limit means the
// dimension never produces a violation.
type Thresholds struct {
	TemperatureLimit *float64
	HumidityLimit    *float64
	CO2Limit         float64
}

// NewThresholds builds a Thresholds value, applying DefaultCO2Limit when co2
// is nil.
func NewThresholds(co2, temperature, humidity *float64) Thresholds {
	t := Thresholds{
		TemperatureLimit: temperature,
		HumidityLimit:    humidity,
		CO2Limit:         DefaultCO2Limit,
	}
	if co2 != nil {
		t.CO2Limit = *co2
	}
	return t
}

// Dimension names a measured quantity.
type Dimension string

const (
	DimensionCO2         Dimension = "co2"
	DimensionTemperature Dimension = "temperature"
	DimensionHumidity    Dimension = "humidity"
)

// Status is the classification outcome.
type Status string

const (
	StatusNormal  Status = "Normal"
	StatusWarning Status = "Warning"
	// StatusNoData is only produced by readers when no record exists yet.
	StatusNoData Status = "No Data"
)

// Violation records one dimension whose observed value exceeded its limit.
type Violation struct {
	Dimension Dimension `json:"dimension"`
	Observed  float64   `json:"observed"`
	Limit     float64   `json:"limit"`
}

// Message renders the violation the way it appears in the shared state record
// and in alert emails.
func (v Violation) Message() string {
	switch v.Dimension {
	case DimensionCO2:
		return fmt.Sprintf("High CO2: %.0f ppm > %s ppm", v.Observed, formatLimit(v.Limit))
	case DimensionTemperature:
		return fmt.Sprintf("High Temperature: %s°C > %s°C", formatLimit(v.Observed), formatLimit(v.Limit))
	case DimensionHumidity:
		return fmt.Sprintf("High Humidity: %s%% > %s%%", formatLimit(v.Observed), formatLimit(v.Limit))
	default:
		return fmt.Sprintf("High %s: %s > %s", v.Dimension, formatLimit(v.Observed), formatLimit(v.Limit))
	}
}

// formatLimit prints integral values without a fractional part.
func formatLimit(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Classification is the evaluation of a Reading against Thresholds.
// Status is Warning exactly when Violations is non-empty.
type Classification struct {
	Status     Status
	Violations []Violation
}

// Escalated reports whether the classification requires alerting.
func (c Classification) Escalated() bool {
	return c.Status == StatusWarning
}

// Warnings returns the human-readable violation list in evaluation order.
// The result is never nil.
func (c Classification) Warnings() []string {
	out := make([]string, 0, len(c.Violations))
	for _, v := range c.Violations {
		out = append(out, v.Message())
	}
	return out
}
