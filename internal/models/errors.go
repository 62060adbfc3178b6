package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidReference = errors.New("invalid reference")
	ErrConflict         = errors.New("conflict")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrValidation       = errors.New("validation failed")

	// ErrSelfVote matches ErrForbidden as well.
	ErrSelfVote = fmt.Errorf("%w: cannot vote on your own post", ErrForbidden)
)
