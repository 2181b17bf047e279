package dataset

import "fmt"

// InputBounds are the accepted ranges for a recommendation request.
var InputBounds = map[Column]Range{
	Nitrogen:    {Min: 0, Max: 100},
	Phosphorus:  {Min: 0, Max: 100},
	Potassium:   {Min: 0, Max: 100},
	Temperature: {Min: -10, Max: 50},
	Humidity:    {Min: 0, Max: 100},
	PH:          {Min: 0, Max: 14},
	Rainfall:    {Min: 0, Max: 500},
}

// DefaultInput is the form's starting vector.
var DefaultInput = Features{50, 50, 50, 25, 50, 6.5, 100}

// ValidateInput checks f against InputBounds. The classifier itself accepts any
// finite vector; callers facing users enforce these limits.
func ValidateInput(f Features) error {
	for _, c := range Columns() {
		r := InputBounds[c]
		if v := f.Get(c); !r.Contains(v) {
			return fmt.Errorf("%s must be between %v and %v, got %v", c, r.Min, r.Max, v)
		}
	}
	return nil
}
