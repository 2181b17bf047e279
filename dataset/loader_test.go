package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const sampleCSV = `N,P,K,temperature,humidity,ph,rainfall,label
90,42,43,20.87,82.00,6.50,202.93,rice
85,58,41,21.77,80.31,7.03,226.65,rice
71,54,16,22.61,63.69,5.74,87.75,maize
61,44,17,26.10,71.57,6.93,102.26,maize
40,72,77,17.02,16.98,7.48,88.55,chickpea
23,72,84,19.02,17.13,6.92,79.92,chickpea
`

func TestReadWellFormed(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 6, table.Len())
	assert.Equal(t, []string{"rice", "maize", "chickpea"}, table.Labels())
	assert.Equal(t, Record{N: 90, P: 42, K: 43, Temperature: 20.87, Humidity: 82, PH: 6.5, Rainfall: 202.93, Label: "rice"}, table.At(0))
}

func TestReadExtraAndReorderedColumns(t *testing.T) {
	data := "id,label,rainfall,ph,humidity,temperature,K,P,N,notes\n" +
		"1,rice,200,6.5,80,21,43,42,90,wet\n" +
		"2,maize,90,5.7,64,22.5,16,54,71,dry\n"

	table, err := Read(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, Record{N: 90, P: 42, K: 43, Temperature: 21, Humidity: 80, PH: 6.5, Rainfall: 200, Label: "rice"}, table.At(0))
}

func TestReadMissingColumn(t *testing.T) {
	data := "N,P,K,temperature,humidity,rainfall,label\n90,42,43,20.8,82,202.9,rice\n"

	_, err := Read(strings.NewReader(data), WithSource("crops.csv"))
	require.Error(t, err)

	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Equal(t, "ph", loadErr.Column)
	assert.Equal(t, "crops.csv", loadErr.Path)
}

func TestReadRowFailures(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		line   int
		column string
	}{
		{name: "non numeric", row: "90,42,43,20.8,82,acidic,202.9,rice", line: 2, column: "ph"},
		{name: "empty cell", row: "90,,43,20.8,82,6.5,202.9,rice", line: 2, column: "P"},
		{name: "nan", row: "90,42,43,NaN,82,6.5,202.9,rice", line: 2, column: "temperature"},
		{name: "empty label", row: "90,42,43,20.8,82,6.5,202.9,", line: 2, column: "label"},
		{name: "short row", row: "90,42,43", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "N,P,K,temperature,humidity,ph,rainfall,label\n" + tt.row + "\n"
			_, err := Read(strings.NewReader(data))
			require.Error(t, err)

			var loadErr *DataLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.True(t, errors.Is(err, ErrMalformedRow))
			assert.Equal(t, tt.line, loadErr.Line)
			assert.Equal(t, tt.column, loadErr.Column)
		})
	}
}

func TestReadCombinesRowErrors(t *testing.T) {
	data := "N,P,K,temperature,humidity,ph,rainfall,label\n" +
		"x,42,43,20.8,82,6.5,202.9,rice\n" +
		"90,42,43,20.8,82,6.5,202.9,rice\n" +
		"90,42,43,20.8,82,y,202.9,maize\n"

	_, err := Read(strings.NewReader(data))
	require.Error(t, err)

	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Len(t, multierr.Errors(loadErr.Err), 2)
	assert.True(t, errors.Is(err, ErrMalformedRow))
}

func TestReadMaxErrors(t *testing.T) {
	var b strings.Builder
	b.WriteString("N,P,K,temperature,humidity,ph,rainfall,label\n")
	for i := 0; i < 20; i++ {
		b.WriteString("x,1,1,1,1,1,1,rice\n")
	}

	_, err := Read(strings.NewReader(b.String()), WithMaxErrors(3))
	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Len(t, multierr.Errors(loadErr.Err), 3)
}

func TestReadHeaderOnly(t *testing.T) {
	_, err := Read(strings.NewReader("N,P,K,temperature,humidity,ph,rainfall,label\n"))
	assert.True(t, errors.Is(err, ErrNoRecords))

	_, err = Read(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrNoRecords))
}

func TestReadByteOrderMark(t *testing.T) {
	table, err := Read(strings.NewReader("\ufeff" + sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 6, table.Len())
}

func TestReadLatin1(t *testing.T) {
	data := "N,P,K,temperature,humidity,ph,rainfall,label\n1,2,3,4,5,6,7,caf\xe9\n"

	table, err := Read(strings.NewReader(data), WithEncoding("latin1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"café"}, table.Labels())

	_, err = Read(strings.NewReader(data), WithEncoding("ebcdic"))
	var loadErr *DataLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestReadPhysicalBounds(t *testing.T) {
	data := "N,P,K,temperature,humidity,ph,rainfall,label\n90,42,43,20.8,82,15.2,202.9,rice\n"

	_, err := Read(strings.NewReader(data))
	require.NoError(t, err)

	_, err = Read(strings.NewReader(data), WithRules(PhysicalBoundsRules()...))
	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "ph", loadErr.Column)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crops.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, table.Len())
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	_, err := Load(path)
	var loadErr *DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
