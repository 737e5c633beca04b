package toy

import "errors"

// Domain errors for toy construction and lookup.
var (
	// ErrToyNotFound is returned when no toy with the requested name exists.
	ErrToyNotFound = errors.New("toy: not found")

	// ErrDuplicateName is returned when registering a second toy with the same name.
	ErrDuplicateName = errors.New("toy: duplicate name")

	// ErrCapability is returned when a toy exists but lacks the requested capability.
	ErrCapability = errors.New("toy: capability not supported")

	// ErrInvalidGeometry is returned for non-positive matrix dimensions.
	ErrInvalidGeometry = errors.New("toy: invalid geometry")
)
