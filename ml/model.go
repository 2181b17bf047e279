package ml

import "cropadvisor/dataset"

// Recommender is what the service layer needs from a trained model.
type Recommender interface {
	Predict(f dataset.Features) (string, error)
	PredictWithConfidence(f dataset.Features) (Prediction, error)
	Classes() []string
	Summary() Summary
}

var _ Recommender = (*Classifier)(nil)
