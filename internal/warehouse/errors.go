package warehouse

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDSN is returned when no warehouse connection string is configured.
	ErrMissingDSN = errors.New("warehouse DSN not set")

	// ErrInvalidCollection is returned for collection or field names that are
	// not plain lowercase identifiers.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidField is returned for body field names that cannot be queried.
	ErrInvalidField = errors.New("invalid field name")
)

// PartialWriteError reports a bulk load that stopped part way. Batches
// committed before the failure stay in the warehouse.
type PartialWriteError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("bulk write stopped after %d of %d records: %v", e.Committed, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
