package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrMalformedRow  = errors.New("malformed row")
	ErrNoRecords     = errors.New("dataset has no records")
	ErrEmptyTable    = errors.New("table is empty")
)

// DataLoadError reports why a dataset could not be turned into a Table.
// Line is 1-based and zero when the failure is not tied to a row.
type DataLoadError struct {
	Path   string
	Line   int
	Column string
	Err    error
}

func (e *DataLoadError) Error() string {
	parts := make([]string, 0, 3)
	if e.Path != "" {
		parts = append(parts, "load "+e.Path)
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Column != "" {
		parts = append(parts, "column "+e.Column)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("load dataset: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", strings.Join(parts, ", "), e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}
