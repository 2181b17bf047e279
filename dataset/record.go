package dataset

import (
	"fmt"
	"strings"
)

// Column identifies one of the seven numeric measurements of a record.
type Column int

const (
	Nitrogen Column = iota
	Phosphorus
	Potassium
	Temperature
	Humidity
	PH
	Rainfall
)

// NumColumns is the length of a feature vector.
const NumColumns = 7

// LabelColumn is the header name of the crop label.
const LabelColumn = "label"

var columnNames = [NumColumns]string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

// Columns returns every numeric column in feature-vector order.
func Columns() []Column {
	return []Column{Nitrogen, Phosphorus, Potassium, Temperature, Humidity, PH, Rainfall}
}

// ColumnNames returns the header names of the numeric columns in feature-vector order.
func ColumnNames() []string {
	names := make([]string, NumColumns)
	copy(names, columnNames[:])
	return names
}

func (c Column) String() string {
	if c < 0 || int(c) >= NumColumns {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return columnNames[c]
}

func (c Column) Valid() bool {
	return c >= 0 && int(c) < NumColumns
}

// ParseColumn resolves a column name case-insensitively.
func ParseColumn(name string) (Column, error) {
	name = strings.TrimSpace(name)
	for i, n := range columnNames {
		if strings.EqualFold(n, name) {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}

func (c Column) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid column %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Column) UnmarshalText(text []byte) error {
	col, err := ParseColumn(string(text))
	if err != nil {
		return err
	}
	*c = col
	return nil
}

// Features is a feature vector in Columns() order.
type Features [NumColumns]float64

// Get returns the value of one column.
func (f Features) Get(c Column) float64 {
	return f[c]
}

// Map returns the vector keyed by header name.
func (f Features) Map() map[string]float64 {
	out := make(map[string]float64, NumColumns)
	for i, name := range columnNames {
		out[name] = f[i]
	}
	return out
}

// Record is one row of the crop dataset.
type Record struct {
	N           float64 `json:"N"`
	P           float64 `json:"P"`
	K           float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
	Label       string  `json:"label"`
}

// Features returns the numeric part of the record.
func (r Record) Features() Features {
	return Features{r.N, r.P, r.K, r.Temperature, r.Humidity, r.PH, r.Rainfall}
}

// Value returns the value of one numeric column.
func (r Record) Value(c Column) float64 {
	switch c {
	case Nitrogen:
		return r.N
	case Phosphorus:
		return r.P
	case Potassium:
		return r.K
	case Temperature:
		return r.Temperature
	case Humidity:
		return r.Humidity
	case PH:
		return r.PH
	case Rainfall:
		return r.Rainfall
	}
	return 0
}

// NewRecord builds a record from a feature vector and a label.
func NewRecord(f Features, label string) Record {
	return Record{
		N:           f[Nitrogen],
		P:           f[Phosphorus],
		K:           f[Potassium],
		Temperature: f[Temperature],
		Humidity:    f[Humidity],
		PH:          f[PH],
		Rainfall:    f[Rainfall],
		Label:       label,
	}
}
