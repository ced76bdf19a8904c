package services

import (
	"errors"
	"fmt"

	"servex_backend/internal/repositories"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrStockConflict        = errors.New("insufficient stock, refresh and retry")
	ErrSessionAlreadyActive = errors.New("a service session is already active")
	ErrNoActiveSession      = errors.New("no active service session")
	ErrOrderNotFound        = errors.New("order not found")
	ErrMenuItemNotFound     = errors.New("menu item not found")
	ErrItemNotFound         = errors.New("order item not found")
	ErrOrderNotEditable     = errors.New("order can only be edited while pending")
	ErrOrderModified        = errors.New("order was modified concurrently")
	ErrDuplicateMenuItem    = errors.New("menu item already exists")
	ErrInvalidCredentials   = errors.New("invalid role or pin")
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps repository sentinels onto the service taxonomy, keeping the original
// error in the chain.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %v", notFound, err)
	case errors.Is(err, repositories.ErrDuplicateKey) && notFound == ErrMenuItemNotFound:
		return fmt.Errorf("%w: %v", ErrDuplicateMenuItem, err)
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: %v", ErrOrderModified, err)
	}
	return err
}
