package dataset

import (
	"errors"
	"fmt"
	"math"
)

// RowRule validates a parsed record before it is admitted into a Table.
type RowRule interface {
	Name() string
	Apply(rec Record) error
}

// DefaultRules are applied to every load.
func DefaultRules() []RowRule {
	return []RowRule{FiniteRule{}, LabelRule{}}
}

// PhysicalBoundsRules reject measurements that cannot occur in the field:
// negative nutrients or rainfall, humidity outside 0-100 and pH outside 0-14.
func PhysicalBoundsRules() []RowRule {
	return []RowRule{
		RangeRule{Column: Nitrogen, Min: 0, Max: math.Inf(1)},
		RangeRule{Column: Phosphorus, Min: 0, Max: math.Inf(1)},
		RangeRule{Column: Potassium, Min: 0, Max: math.Inf(1)},
		RangeRule{Column: Humidity, Min: 0, Max: 100},
		RangeRule{Column: PH, Min: 0, Max: 14},
		RangeRule{Column: Rainfall, Min: 0, Max: math.Inf(1)},
	}
}

// FiniteRule rejects NaN and infinite values, which strconv accepts.
type FiniteRule struct{}

func (FiniteRule) Name() string { return "finite" }

func (FiniteRule) Apply(rec Record) error {
	for _, c := range Columns() {
		v := rec.Value(c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ruleError{column: c.String(), err: fmt.Errorf("value %v is not a finite number", v)}
		}
	}
	return nil
}

// LabelRule requires a non-empty label.
type LabelRule struct{}

func (LabelRule) Name() string { return "label" }

func (LabelRule) Apply(rec Record) error {
	if rec.Label == "" {
		return &ruleError{column: LabelColumn, err: errors.New("label is empty")}
	}
	return nil
}

// RangeRule bounds one column inclusively.
type RangeRule struct {
	Column Column
	Min    float64
	Max    float64
}

func (r RangeRule) Name() string { return "range_" + r.Column.String() }

func (r RangeRule) Apply(rec Record) error {
	v := rec.Value(r.Column)
	if v < r.Min || v > r.Max {
		return &ruleError{column: r.Column.String(), err: fmt.Errorf("value %v out of range [%v, %v]", v, r.Min, r.Max)}
	}
	return nil
}

type ruleError struct {
	column string
	err    error
}

func (e *ruleError) Error() string { return e.err.Error() }
func (e *ruleError) Unwrap() error { return e.err }
