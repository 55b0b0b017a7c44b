package state

import (
	"context"
	"errors"

	"airwatch/internal/db"
	"airwatch/internal/types"
)

// PostgresStore keeps one row per device in the device_state table.
type PostgresStore struct {
	repo   *db.DeviceStateRepo
	device string
}

// NewPostgresStore creates a PostgresStore for device.
func NewPostgresStore(repo *db.DeviceStateRepo, device string) *PostgresStore {
	return &PostgresStore{repo: repo, device: device}
}

// Persist implements Persister.
func (s *PostgresStore) Persist(ctx context.Context, record types.PersistedState) error {
	data, err := Encode(record)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, s.device, data, record.UpdatedAt)
}

// Read implements Reader.
func (s *PostgresStore) Read(ctx context.Context) (types.PersistedState, error) {
	data, err := s.repo.Get(ctx, s.device)
	if errors.Is(err, db.ErrNotFound) {
		return types.PersistedState{}, ErrNoState
	}
	if err != nil {
		return types.PersistedState{}, err
	}
	return Decode(data)
}
