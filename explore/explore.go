// Package explore answers the dataset exploration queries behind the scatter
// view: which crops are selected, which column is plotted against
// temperature, and the slider ranges applied to both axes.
package explore

import (
	"errors"
	"fmt"

	"cropadvisor/dataset"
)

// ErrNoSelection is returned when no crop is selected.
var ErrNoSelection = errors.New("no crop selected")

// NoSelectionWarning is shown to the user alongside ErrNoSelection.
const NoSelectionWarning = "Please select at least one crop to display the graphs."

// AxisOptions are the columns offered for the y axis.
var AxisOptions = []dataset.Column{dataset.Nitrogen, dataset.Phosphorus, dataset.Humidity, dataset.Rainfall}

// State is the full client-side selection. A nil range means the full
// bounds of the selected subset.
type State struct {
	Selected    []string       `json:"selected"`
	Axis        dataset.Column `json:"axis"`
	Temperature *dataset.Range `json:"temperature,omitempty"`
	AxisRange   *dataset.Range `json:"axis_range,omitempty"`
}

// Point is one plotted record.
type Point struct {
	Temperature float64 `json:"temperature"`
	Value       float64 `json:"value"`
	Label       string  `json:"label"`
}

// View is the answer to a State.
type View struct {
	Axis              dataset.Column `json:"axis"`
	Selected          []string       `json:"selected"`
	TemperatureBounds dataset.Bounds `json:"temperature_bounds"`
	AxisBounds        dataset.Bounds `json:"axis_bounds"`
	Temperature       dataset.Range  `json:"temperature"`
	AxisRange         dataset.Range  `json:"axis_range"`
	FullView          bool           `json:"full_view"`
	Points            []Point        `json:"points"`
	SelectedCount     int            `json:"selected_count"`
	PointCount        int            `json:"point_count"`
}

// SelectAll selects every crop of table.
func SelectAll(t *dataset.Table) State {
	return State{Selected: t.Labels(), Axis: dataset.Nitrogen}
}

// DeselectAll clears the selection.
func DeselectAll() State {
	return State{Selected: []string{}, Axis: dataset.Nitrogen}
}

// Reset drops both ranges so the next query shows the full subset.
func (s State) Reset() State {
	s.Temperature = nil
	s.AxisRange = nil
	return s
}

// Query evaluates s against t.
func Query(t *dataset.Table, s State) (*View, error) {
	if len(s.Selected) == 0 {
		return nil, ErrNoSelection
	}
	if !s.Axis.Valid() {
		return nil, fmt.Errorf("invalid axis column %d", int(s.Axis))
	}
	if s.Axis == dataset.Temperature {
		return nil, errors.New("axis must differ from temperature")
	}

	subset := t.Filter(dataset.NewPredicate(s.Selected...))
	if subset.Len() == 0 {
		return nil, ErrNoSelection
	}
	tempBounds, err := subset.Range(dataset.Temperature)
	if err != nil {
		return nil, err
	}
	axisBounds, err := subset.Range(s.Axis)
	if err != nil {
		return nil, err
	}

	tempRange := dataset.FromBounds(tempBounds)
	if s.Temperature != nil {
		tempRange = *s.Temperature
	}
	axisRange := dataset.FromBounds(axisBounds)
	if s.AxisRange != nil {
		axisRange = *s.AxisRange
	}
	if err := tempRange.Validate(); err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}
	if err := axisRange.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Axis, err)
	}

	p := dataset.NewPredicate(s.Selected...).
		WithRange(dataset.Temperature, tempRange.Min, tempRange.Max).
		WithRange(s.Axis, axisRange.Min, axisRange.Max)
	matched := subset.Filter(p)

	points := make([]Point, 0, matched.Len())
	for _, rec := range matched.Records() {
		points = append(points, Point{
			Temperature: rec.Temperature,
			Value:       rec.Value(s.Axis),
			Label:       rec.Label,
		})
	}

	return &View{
		Axis:              s.Axis,
		Selected:          subset.Labels(),
		TemperatureBounds: tempBounds,
		AxisBounds:        axisBounds,
		Temperature:       tempRange,
		AxisRange:         axisRange,
		FullView:          s.Temperature == nil && s.AxisRange == nil,
		Points:            points,
		SelectedCount:     subset.Len(),
		PointCount:        len(points),
	}, nil
}
