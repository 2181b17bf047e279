package dataset

import "fmt"

// Table is an immutable, ordered collection of records. The zero value is an
// empty table. Methods never expose the backing slice, so a Table can be read
// from any number of goroutines without locking.
type Table struct {
	records []Record
	labels  []string
}

// NewTable copies records into a new Table.
func NewTable(records []Record) *Table {
	owned := make([]Record, len(records))
	copy(owned, records)
	return &Table{records: owned, labels: distinctLabels(owned)}
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// At returns the i-th record.
func (t *Table) At(i int) Record {
	return t.records[i]
}

// Records returns a copy of all records in table order.
func (t *Table) Records() []Record {
	out := make([]Record, t.Len())
	if t != nil {
		copy(out, t.records)
	}
	return out
}

// Labels returns the distinct labels in the order they first appear.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// HasLabel reports whether any record carries label.
func (t *Table) HasLabel(label string) bool {
	if t == nil {
		return false
	}
	for _, l := range t.labels {
		if l == label {
			return true
		}
	}
	return false
}

// Features returns the feature vectors in table order.
func (t *Table) Features() []Features {
	out := make([]Features, t.Len())
	for i := range out {
		out[i] = t.records[i].Features()
	}
	return out
}

// Targets returns the labels in table order.
func (t *Table) Targets() []string {
	out := make([]string, t.Len())
	for i := range out {
		out[i] = t.records[i].Label
	}
	return out
}

// Filter returns the records matching p, preserving order.
func (t *Table) Filter(p Predicate) *Table {
	if t == nil {
		return NewTable(nil)
	}
	allowed := p.labelSet()
	matched := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		if p.match(rec, allowed) {
			matched = append(matched, rec)
		}
	}
	return &Table{records: matched, labels: distinctLabels(matched)}
}

// Range returns the minimum and maximum of column c.
func (t *Table) Range(c Column) (Bounds, error) {
	if !c.Valid() {
		return Bounds{}, fmt.Errorf("invalid column %d", int(c))
	}
	if t.Len() == 0 {
		return Bounds{}, ErrEmptyTable
	}
	b := Bounds{Min: t.records[0].Value(c), Max: t.records[0].Value(c)}
	for _, rec := range t.records[1:] {
		v := rec.Value(c)
		if v < b.Min {
			b.Min = v
		}
		if v > b.Max {
			b.Max = v
		}
	}
	return b, nil
}

// Bounds returns the range of every numeric column.
func (t *Table) Bounds() (map[Column]Bounds, error) {
	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	out := make(map[Column]Bounds, NumColumns)
	for _, c := range Columns() {
		b, err := t.Range(c)
		if err != nil {
			return nil, err
		}
		out[c] = b
	}
	return out, nil
}

// Equal reports whether both tables hold the same records in the same order.
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() {
		return false
	}
	for i := 0; i < t.Len(); i++ {
		if t.records[i] != other.records[i] {
			return false
		}
	}
	return true
}

// LabelCounts returns how many records carry each label.
func (t *Table) LabelCounts() map[string]int {
	counts := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		counts[t.records[i].Label]++
	}
	return counts
}

func distinctLabels(records []Record) []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, rec := range records {
		if _, ok := seen[rec.Label]; ok {
			continue
		}
		seen[rec.Label] = struct{}{}
		labels = append(labels, rec.Label)
	}
	return labels
}
