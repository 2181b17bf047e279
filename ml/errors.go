package ml

import (
	"errors"
	"fmt"
)

var ErrNotTrained = errors.New("model not trained")

// PredictionError reports an input vector that cannot be scored.
type PredictionError struct {
	Field  string
	Reason string
}

func (e *PredictionError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}
