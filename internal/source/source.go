// Package source implements the DataSource capability: one Reading per
// Acquire call from a live weather provider or from a CSV dataset walked by a
// durable cursor.
package source

import (
	"context"

	"airwatch/internal/types"
)

// DataSource produces one Reading per invocation or fails with an AppError
// carrying an acquisition_* code. Only acquisition_exhausted is terminal.
type DataSource interface {
	Acquire(ctx context.Context) (types.Reading, error)
}

// Committer is implemented by sources whose position advances only after the
// downstream work of a cycle has been attempted. The sampling loop calls
// Commit once per successful Acquire, whatever the outcome of the channels.
type Committer interface {
	Commit(ctx context.Context) error
}

func acquisitionError(code types.ErrorCode, msg string, err error) *types.AppError {
	return types.NewAppError(code, msg, err)
}
