package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"airwatch/internal/types"
)

// ErrNotFound is returned when a device has no stored record.
var ErrNotFound = errors.New("db: record not found")

// DeviceStateSchema creates the device_state table. One row per device holds
// the latest shared state record as JSONB.
const DeviceStateSchema = `CREATE TABLE IF NOT EXISTS device_state (
	device     TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// DeviceStateRepo stores the latest state record per device. The upsert runs
// as a single statement, so readers see either the previous or the new row.
type DeviceStateRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewDeviceStateRepo creates a new DeviceStateRepo.
func NewDeviceStateRepo(db DBTX, logger *slog.Logger) *DeviceStateRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceStateRepo{db: db, logger: logger}
}

// EnsureSchema creates the device_state table if it does not exist.
func (r *DeviceStateRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, DeviceStateSchema); err != nil {
		return types.NewAppError(types.ErrCodePersistIOFailure, "failed to create device_state table", err)
	}
	return nil
}

// Upsert replaces the record for device.
func (r *DeviceStateRepo) Upsert(ctx context.Context, device string, record []byte, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO device_state (device, record, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (device) DO UPDATE
		 SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		device, record, updatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistIOFailure, "failed to upsert device state", err).
			WithDetails(map[string]any{"device": device})
	}
	if tag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "device state upsert affected unexpected row count",
			slog.String("device", device),
			slog.Int64("rows", tag.RowsAffected()),
		)
	}
	return nil
}

// Get returns the stored record for device, or ErrNotFound.
func (r *DeviceStateRepo) Get(ctx context.Context, device string) ([]byte, error) {
	var record []byte
	err := r.db.QueryRow(ctx,
		`SELECT record FROM device_state WHERE device = $1`,
		device,
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodePersistIOFailure, "failed to read device state", err).
			WithDetails(map[string]any{"device": device})
	}
	return record, nil
}
