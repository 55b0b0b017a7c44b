package api

import (
	"errors"
	"net/http"
	"time"

	"airwatch/internal/state"
	"airwatch/internal/types"
)

// CurrentResponse is the body of GET /api/current. AgeSeconds is the time
// since the record was written and is absent for the No Data placeholder.
type CurrentResponse struct {
	CO2         float64      `json:"co2"`
	Temperature float64      `json:"temperature"`
	Humidity    float64      `json:"humidity"`
	Status      types.Status `json:"status"`
	Warnings    []string     `json:"warnings"`
	Timestamp   time.Time    `json:"timestamp"`
	Location    string       `json:"location,omitempty"`
	DataSource  string       `json:"data_source,omitempty"`
	Device      string       `json:"device,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
	AgeSeconds  *float64     `json:"age_seconds,omitempty"`
}

func newCurrentResponse(rec types.PersistedState) CurrentResponse {
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return CurrentResponse{
		CO2:         rec.CO2,
		Temperature: rec.Temperature,
		Humidity:    rec.Humidity,
		Status:      rec.Status,
		Warnings:    warnings,
		Timestamp:   rec.Timestamp,
		Location:    rec.Location,
		DataSource:  rec.DataSource,
		Device:      rec.Device,
	}
}

// HandleCurrent returns the latest shared state record. Before the first
// record exists it returns the No Data placeholder with status 200.
func (s *Server) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	now := s.Clock.Now()

	rec, err := s.Reader.Read(r.Context())
	switch {
	case errors.Is(err, state.ErrNoState):
		JSON(w, r, http.StatusOK, newCurrentResponse(types.NoDataState(now)))
		return
	case err != nil:
		s.Logger.ErrorContext(r.Context(), "failed to read state record", "error", err)
		Error(w, r, http.StatusInternalServerError, err)
		return
	}

	resp := newCurrentResponse(rec)
	if !rec.UpdatedAt.IsZero() {
		updated := rec.UpdatedAt
		age := now.Sub(updated).Seconds()
		if age < 0 {
			age = 0
		}
		resp.UpdatedAt = &updated
		resp.AgeSeconds = &age
	}
	JSON(w, r, http.StatusOK, resp)
}
