package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals an unknown intervention id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a malformed query, filter or decision-engine input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingUnavailable signals an embedding provider failure or timeout.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrCatalogLoad signals a catalog that must not be served.
	ErrCatalogLoad = errors.New("catalog load failed")
	// ErrNoFeasibleSelection signals that no candidate fits the budget.
	// Plans report it through Feasible=false; it is never returned as a failure.
	ErrNoFeasibleSelection = errors.New("no feasible selection")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidVector signals a vector with NaN or infinite components.
	ErrInvalidVector = errors.New("invalid vector")
)

// RejectedRecordError describes why a catalog record was refused at load time.
type RejectedRecordError struct {
	ID     string
	Index  int
	Reason string
}

func (e *RejectedRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record #%d rejected: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %q (#%d) rejected: %s", e.ID, e.Index, e.Reason)
}

func (e *RejectedRecordError) Unwrap() error { return ErrCatalogLoad }

// InvalidQueryf formats an ErrInvalidQuery with detail.
func InvalidQueryf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
