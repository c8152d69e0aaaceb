package customers

import "errors"

var (
	// ErrMissingPhone is returned when a request lacks the phone key
	ErrMissingPhone = errors.New("phone is required")

	// ErrCustomerNotFound is returned when no customer matches
	ErrCustomerNotFound = errors.New("customer not found")
)
