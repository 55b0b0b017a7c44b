package types

import (
	"math"
	"time"
)

// PersistedState is the single shared record external readers consume. It is
// overwritten wholesale every cycle.
type PersistedState struct {
	CO2         float64   `json:"co2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Status      Status    `json:"status"`
	Warnings    []string  `json:"warnings"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	DataSource  string    `json:"data_source,omitempty"`
	Device      string    `json:"device,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPersistedState builds the shared record for a reading and its
// classification. Numeric values are rounded to one decimal.
func NewPersistedState(device string, r Reading, c Classification, updatedAt time.Time) PersistedState {
	return PersistedState{
		CO2:         round1(r.CO2PPM),
		Temperature: round1(r.TemperatureC),
		Humidity:    round1(r.HumidityPct),
		Status:      c.Status,
		Warnings:    c.Warnings(),
		Timestamp:   r.CapturedAt.UTC(),
		Location:    r.Location,
		DataSource:  r.SourceLabel,
		Device:      device,
		UpdatedAt:   updatedAt.UTC(),
	}
}

// NoDataState is the placeholder presentation layers render before the first
// cycle has persisted anything.
func NoDataState(now time.Time) PersistedState {
	return PersistedState{
		Status:    StatusNoData,
		Warnings:  []string{},
		Timestamp: now.UTC(),
	}
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
