package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceNotFound is returned when no catalog entry matches a query
	ErrServiceNotFound = errors.New("service not found")

	// ErrStylistNotFound is returned when a stylist id is unknown
	ErrStylistNotFound = errors.New("stylist not found")
)

// AmbiguousServiceError reports a query that matched several services.
// The resolver never guesses silently; callers decide how to present
// the options.
type AmbiguousServiceError struct {
	Query   string
	Options []ServiceOption
}

func (e *AmbiguousServiceError) Error() string {
	return fmt.Sprintf("catalog: query %q matched %d services", e.Query, len(e.Options))
}
