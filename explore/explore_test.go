package explore

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropadvisor/dataset"
)

const cropsCSV = `N,P,K,temperature,humidity,ph,rainfall,label
90,42,43,20.87,82.00,6.50,202.93,rice
85,58,41,21.77,80.31,7.03,226.65,rice
71,54,16,22.61,63.69,5.74,87.75,maize
61,44,17,26.10,71.57,6.93,102.26,maize
40,72,77,17.02,16.98,7.48,88.55,chickpea
23,72,84,19.02,17.13,6.92,79.92,chickpea
`

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.Read(strings.NewReader(cropsCSV))
	require.NoError(t, err)
	return table
}

func TestQueryFullView(t *testing.T) {
	table := sampleTable(t)

	view, err := Query(table, SelectAll(table))
	require.NoError(t, err)

	assert.True(t, view.FullView)
	assert.Equal(t, 6, view.PointCount)
	assert.Equal(t, dataset.Bounds{Min: 17.02, Max: 26.10}, view.TemperatureBounds)
	assert.Equal(t, dataset.Bounds{Min: 23, Max: 90}, view.AxisBounds)
	assert.Equal(t, dataset.Range{Min: 17.02, Max: 26.10}, view.Temperature)
	assert.Equal(t, []string{"rice", "maize", "chickpea"}, view.Selected)
}

func TestQueryRecomputesBoundsForSubset(t *testing.T) {
	table := sampleTable(t)

	view, err := Query(table, State{Selected: []string{"maize"}, Axis: dataset.Rainfall})
	require.NoError(t, err)

	assert.Equal(t, dataset.Bounds{Min: 22.61, Max: 26.10}, view.TemperatureBounds)
	assert.Equal(t, dataset.Bounds{Min: 87.75, Max: 102.26}, view.AxisBounds)
	assert.Equal(t, 2, view.SelectedCount)
	for _, p := range view.Points {
		assert.Equal(t, "maize", p.Label)
	}
}

func TestQueryAppliesRanges(t *testing.T) {
	table := sampleTable(t)

	state := SelectAll(table)
	state.Axis = dataset.Humidity
	state.Temperature = &dataset.Range{Min: 19.02, Max: 22}
	state.AxisRange = &dataset.Range{Min: 17, Max: 81}

	view, err := Query(table, state)
	require.NoError(t, err)

	assert.False(t, view.FullView)
	require.Equal(t, 2, view.PointCount)
	assert.Equal(t, Point{Temperature: 21.77, Value: 80.31, Label: "rice"}, view.Points[0])
	assert.Equal(t, Point{Temperature: 19.02, Value: 17.13, Label: "chickpea"}, view.Points[1])
	assert.Equal(t, 6, view.SelectedCount)

	reset, err := Query(table, state.Reset())
	require.NoError(t, err)
	assert.Equal(t, 6, reset.PointCount)
}

func TestQueryNoSelection(t *testing.T) {
	table := sampleTable(t)

	_, err := Query(table, DeselectAll())
	assert.True(t, errors.Is(err, ErrNoSelection))

	_, err = Query(table, State{Selected: []string{"coffee"}})
	assert.True(t, errors.Is(err, ErrNoSelection))
}

func TestQueryRejectsBadState(t *testing.T) {
	table := sampleTable(t)

	_, err := Query(table, State{Selected: []string{"rice"}, Axis: dataset.Temperature})
	assert.Error(t, err)

	_, err = Query(table, State{Selected: []string{"rice"}, Axis: dataset.Column(9)})
	assert.Error(t, err)

	_, err = Query(table, State{Selected: []string{"rice"}, Temperature: &dataset.Range{Min: 30, Max: 10}})
	assert.Error(t, err)
}

func TestStateJSON(t *testing.T) {
	var s State
	err := json.Unmarshal([]byte(`{"selected":["rice"],"axis":"rainfall","axis_range":{"min":0,"max":210}}`), &s)
	require.NoError(t, err)

	assert.Equal(t, dataset.Rainfall, s.Axis)
	assert.Nil(t, s.Temperature)
	require.NotNil(t, s.AxisRange)
	assert.Equal(t, 210.0, s.AxisRange.Max)
}

func TestAxisOptions(t *testing.T) {
	names := make([]string, len(AxisOptions))
	for i, c := range AxisOptions {
		names[i] = c.String()
	}
	assert.Equal(t, []string{"N", "P", "humidity", "rainfall"}, names)
}
