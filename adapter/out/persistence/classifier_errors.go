package persistence

import (
	"errors"

	"classifier_server/core/domain"
)

// Common persistence errors. ErrNotFound aliases the domain sentinel so
// errors.Is checks work across the port boundary.
var (
	ErrNotFound  = domain.ErrNotFound
	ErrDuplicate = errors.New("duplicate entry")
)
