// Package storage keeps an audit log of pipeline runs in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrInvalidRun    = errors.New("invalid run record")
	ErrInvalidFilter = errors.New("invalid run filter")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRun checks the fields every stored run needs.
func validateRun(rec *model.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if rec.FileID == "" {
		return fmt.Errorf("%w: missing file ID", ErrInvalidRun)
	}
	if rec.Stage == "" {
		return fmt.Errorf("%w: missing stage", ErrInvalidRun)
	}
	if rec.Stage == model.StageFailed && !rec.ErrorKind.IsValid() {
		return fmt.Errorf("%w: failed run with error kind %q", ErrInvalidRun, rec.ErrorKind)
	}
	if rec.StartedAt.IsZero() || rec.FinishedAt.Before(rec.StartedAt) {
		return fmt.Errorf("%w: bad timestamps", ErrInvalidRun)
	}
	return nil
}
