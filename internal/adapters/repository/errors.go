package repository

import (
	"errors"
	"fmt"

	"github.com/okian/sensorboard/internal/domain/model"
)

// Sentinel kinds for store errors. They wrap the domain kinds so callers can
// match either.
var (
	ErrNotFound      = fmt.Errorf("reading %w", model.ErrNotFound)
	ErrInvalidFilter = fmt.Errorf("invalid filter: %w", model.ErrValidation)
	ErrClosed        = fmt.Errorf("store closed: %w", model.ErrStorage)
	ErrUnknownDriver = errors.New("unknown store driver")
)

// storageErr tags err as a storage failure for operation op.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStorage, err)
}
