package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"

	"airwatch/internal/types"
)

// FileStore keeps the record in a JSON file. Writes go to a temp file in the
// same directory which is synced and renamed over the target.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the record location.
func (s *FileStore) Path() string { return s.path }

// Persist implements Persister.
func (s *FileStore) Persist(_ context.Context, record types.PersistedState) error {
	data, err := Encode(record)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return types.NewAppError(types.ErrCodePersistIOFailure,
			fmt.Sprintf("failed to write state file %s", s.path), err)
	}
	return nil
}

// Read implements Reader.
func (s *FileStore) Read(_ context.Context) (types.PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.PersistedState{}, ErrNoState
	}
	if err != nil {
		return types.PersistedState{}, types.NewAppError(types.ErrCodePersistIOFailure,
			fmt.Sprintf("failed to read state file %s", s.path), err)
	}
	return Decode(data)
}
