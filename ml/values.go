package ml

import (
	"encoding/json"
	"fmt"
	"math"

	"cropadvisor/dataset"
)

// FeaturesFromValues converts loosely typed input, such as a decoded JSON
// object, into a feature vector. Every column must be present and numeric.
func FeaturesFromValues(values map[string]any) (dataset.Features, error) {
	var f dataset.Features
	for _, col := range dataset.Columns() {
		raw, ok := values[col.String()]
		if !ok {
			return f, &PredictionError{Field: col.String(), Reason: "missing"}
		}
		v, err := toFloat(raw)
		if err != nil {
			return f, &PredictionError{Field: col.String(), Reason: err.Error()}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return f, &PredictionError{Field: col.String(), Reason: "must be a finite number"}
		}
		f[col] = v
	}
	return f, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case nil:
		return 0, fmt.Errorf("is null")
	default:
		return 0, fmt.Errorf("must be numeric, got %T", raw)
	}
}
