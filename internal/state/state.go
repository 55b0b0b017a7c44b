// Package state implements the shared state slot: the single latest record
// written by the sampling loop and read by presentation processes.
//
// Every backend overwrites the whole record in one step, so a concurrent
// reader sees either the previous record or the new one, never a mix.
package state

import (
	"context"
	"encoding/json"
	"errors"

	"airwatch/internal/types"
)

// ErrNoState is returned by readers before the first record has been written.
var ErrNoState = errors.New("state: no record written yet")

// Persister overwrites the shared record. Failures are AppErrors with
// persist_io_failure.
type Persister interface {
	Persist(ctx context.Context, record types.PersistedState) error
}

// Reader returns the shared record, or ErrNoState.
type Reader interface {
	Read(ctx context.Context) (types.PersistedState, error)
}

// Store is a backend that can both write and read the record.
type Store interface {
	Persister
	Reader
}

// Encode renders the record as two-space indented JSON with a trailing
// newline. Identical records encode to identical bytes.
func Encode(record types.PersistedState) ([]byte, error) {
	if record.Warnings == nil {
		record.Warnings = []string{}
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode state record", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored record.
func Decode(data []byte) (types.PersistedState, error) {
	var record types.PersistedState
	if err := json.Unmarshal(data, &record); err != nil {
		return types.PersistedState{}, types.NewAppError(types.ErrCodePersistIOFailure, "state record is corrupt", err)
	}
	if record.Warnings == nil {
		record.Warnings = []string{}
	}
	return record, nil
}
