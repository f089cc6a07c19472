package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/msawatzky/christmas-list/internal/models"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("not allowed to manage this list")
	ErrNotFound         = errors.New("item not found")
	ErrBoundary         = errors.New("cannot move item further")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("item was changed by someone else, reload and try again")
	ErrUpstream         = errors.New("upstream failure")
)

// BoundaryError reports a move past the first or last position
type BoundaryError struct {
	Direction models.Direction
	Edge      string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("cannot move item further %s: already at the %s", e.Direction, e.Edge)
}

// Is makes errors.Is(err, ErrBoundary) match
func (e *BoundaryError) Is(target error) bool {
	return target == ErrBoundary
}

func newBoundaryError(dir models.Direction) *BoundaryError {
	edge := "top"
	if dir == models.DirectionDown {
		edge = "bottom"
	}
	return &BoundaryError{Direction: dir, Edge: edge}
}

// ValidationError collects every problem found in one request
type ValidationError struct {
	errs *multierror.Error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems(), "; ")
}

// Is makes errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Problems lists the individual field problems
func (e *ValidationError) Problems() []string {
	out := make([]string, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		out = append(out, err.Error())
	}
	return out
}

// validation accumulates problems for one request
type validation struct {
	errs *multierror.Error
}

func (v *validation) addf(format string, args ...any) {
	v.errs = multierror.Append(v.errs, fmt.Errorf(format, args...))
}

func (v *validation) err() error {
	if v.errs.ErrorOrNil() == nil {
		return nil
	}
	return &ValidationError{errs: v.errs}
}

// invalid builds a single-problem validation error
func invalid(format string, args ...any) error {
	var v validation
	v.addf(format, args...)
	return v.err()
}

func upstream(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrUpstream, err)
}
