package dataset

import "fmt"

// Bounds is the observed minimum and maximum of a column.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Range is an inclusive constraint on a column.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("range min %v greater than max %v", r.Min, r.Max)
	}
	return nil
}

// FromBounds turns observed bounds into a constraint covering all of them.
func FromBounds(b Bounds) Range {
	return Range{Min: b.Min, Max: b.Max}
}

// Predicate is a conjunction of label membership and per-column ranges.
// A record matches when its label is in Labels and every range holds.
// An empty Labels set matches nothing.
type Predicate struct {
	Labels []string         `json:"labels"`
	Ranges map[Column]Range `json:"ranges,omitempty"`
}

// NewPredicate allows the given labels with no range constraints.
func NewPredicate(labels ...string) Predicate {
	return Predicate{Labels: labels}
}

// FullPredicate matches every record of t.
func FullPredicate(t *Table) Predicate {
	return NewPredicate(t.Labels()...)
}

// WithRange returns a copy of p that also bounds column c.
func (p Predicate) WithRange(c Column, min, max float64) Predicate {
	ranges := make(map[Column]Range, len(p.Ranges)+1)
	for k, v := range p.Ranges {
		ranges[k] = v
	}
	ranges[c] = Range{Min: min, Max: max}
	labels := make([]string, len(p.Labels))
	copy(labels, p.Labels)
	return Predicate{Labels: labels, Ranges: ranges}
}

// Validate checks that every range is well formed.
func (p Predicate) Validate() error {
	for c, r := range p.Ranges {
		if !c.Valid() {
			return fmt.Errorf("invalid column %d", int(c))
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	return nil
}

// Matches reports whether rec satisfies p.
func (p Predicate) Matches(rec Record) bool {
	return p.match(rec, p.labelSet())
}

func (p Predicate) labelSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Labels))
	for _, l := range p.Labels {
		set[l] = struct{}{}
	}
	return set
}

func (p Predicate) match(rec Record, allowed map[string]struct{}) bool {
	if _, ok := allowed[rec.Label]; !ok {
		return false
	}
	for c, r := range p.Ranges {
		if !r.Contains(rec.Value(c)) {
			return false
		}
	}
	return true
}
