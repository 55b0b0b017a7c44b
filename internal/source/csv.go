package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"airwatch/internal/types"
)

// CSVConfig configures a CsvCursorSource.
type CSVConfig struct {
	// Path is the dataset: a header row followed by data rows whose first three
	// columns are CO2 (ppm), temperature (°C) and humidity (%).
	Path   string
	Cursor CursorStore
	Clock  types.Clock
	Logger *slog.Logger
}

// CsvCursorSource replays a fixed dataset one row per cycle, looping forever.
// The dataset is re-read on every Acquire and is never modified; the cursor
// is the only mutable state.
type CsvCursorSource struct {
	path     string
	location string
	cursor   CursorStore
	clock    types.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	pending *int
}

// NewCsvCursorSource creates a CsvCursorSource.
func NewCsvCursorSource(cfg CSVConfig) *CsvCursorSource {
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CsvCursorSource{
		path:     cfg.Path,
		location: filepath.Base(cfg.Path),
		cursor:   cfg.Cursor,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Acquire reads the row at the cursor.
//
// A cursor at or past the end wraps to 0 and the wrap is saved before the
// row is read. A malformed row advances the cursor immediately and fails with
// acquisition_malformed_row. A good row leaves the advance pending until
// Commit. An empty dataset fails with acquisition_exhausted.
func (s *CsvCursorSource) Acquire(ctx context.Context) (types.Reading, error) {
	logger := types.LoggerFromContext(ctx, s.logger)

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	rows, err := s.readRows()
	if err != nil {
		return types.Reading{}, err
	}
	if len(rows) == 0 {
		return types.Reading{}, acquisitionError(types.ErrCodeAcquisitionExhausted,
			fmt.Sprintf("no data rows in %s", s.path), nil)
	}

	index, err := s.cursor.Load(ctx)
	if err != nil {
		return types.Reading{}, acquisitionError(types.ErrCodeAcquisitionTransport, "failed to load cursor", err)
	}

	if index >= len(rows) {
		logger.InfoContext(ctx, "reached end of data, starting from the beginning",
			"rows", len(rows),
		)
		index = 0
		if err := s.cursor.Save(ctx, 0); err != nil {
			logger.WarnContext(ctx, "failed to save wrapped cursor", "error", err)
		}
	}

	next := (index + 1) % len(rows)
	reading, err := s.parseRow(rows[index], index)
	if err != nil {
		if saveErr := s.cursor.Save(ctx, next); saveErr != nil {
			logger.WarnContext(ctx, "failed to advance cursor past malformed row",
				"row", index+1,
				"error", saveErr,
			)
		}
		return types.Reading{}, err
	}

	s.mu.Lock()
	s.pending = &next
	s.mu.Unlock()

	return reading, nil
}

// Commit advances the cursor past the row returned by the last successful
// Acquire. It is a no-op when nothing is pending.
func (s *CsvCursorSource) Commit(ctx context.Context) error {
	s.mu.Lock()
	next := s.pending
	s.pending = nil
	s.mu.Unlock()

	if next == nil {
		return nil
	}
	return s.cursor.Save(ctx, *next)
}

// csvRow is one data row. err holds the record-level parse failure, if any,
// so a single broken line fails only its own cycle.
type csvRow struct {
	fields []string
	err    error
}

// readRows returns the data rows, excluding the header.
func (s *CsvCursorSource) readRows() ([]csvRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		msg := fmt.Sprintf("failed to open %s", s.path)
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("data file %s not found", s.path)
		}
		return nil, acquisitionError(types.ErrCodeAcquisitionTransport, msg, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var rows []csvRow
	header := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if err != nil && !errors.As(err, &parseErr) {
			return nil, acquisitionError(types.ErrCodeAcquisitionTransport,
				fmt.Sprintf("failed to read %s", s.path), err)
		}
		if header {
			header = false
			continue
		}
		rows = append(rows, csvRow{fields: record, err: err})
	}
	return rows, nil
}

func (s *CsvCursorSource) parseRow(data csvRow, index int) (types.Reading, error) {
	malformed := func(err error) error {
		return acquisitionError(types.ErrCodeAcquisitionMalformedRow,
			fmt.Sprintf("row %d is malformed", index+1), err).
			WithDetails(map[string]any{"row": index + 1})
	}

	if data.err != nil {
		return types.Reading{}, malformed(data.err)
	}
	row := data.fields

	if len(row) < 3 {
		return types.Reading{}, malformed(fmt.Errorf("expected 3 columns, got %d", len(row)))
	}

	var values [3]float64
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return types.Reading{}, malformed(err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.Reading{}, malformed(fmt.Errorf("column %d is not a finite number", i+1))
		}
		values[i] = v
	}

	return types.Reading{
		CO2PPM:       values[0],
		TemperatureC: values[1],
		HumidityPct:  values[2],
		CapturedAt:   s.clock.Now(),
		SourceLabel:  fmt.Sprintf("CSV row %d", index+1),
		Location:     s.location,
	}, nil
}
