package customers

import "errors"

var (
	// ErrCustomerNotFound is returned when no customer matches the lookup.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidIdentity is returned when a channel identity has no usable key.
	ErrInvalidIdentity = errors.New("channel identity requires an external id")

	// ErrInvalidPoints is returned for non-positive loyalty adjustments.
	ErrInvalidPoints = errors.New("loyalty points must be positive")
)
