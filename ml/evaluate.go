package ml

import (
	"errors"
	"math/rand"

	"cropadvisor/dataset"
)

// ClassMetrics holds per-label hold-out scores.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

type Evaluation struct {
	Samples  int                     `json:"samples"`
	Correct  int                     `json:"correct"`
	Accuracy float64                 `json:"accuracy"`
	PerClass map[string]ClassMetrics `json:"per_class"`
}

// SplitTable shuffles table with seed and puts testFraction of the rows in
// the second table.
func SplitTable(table *dataset.Table, testFraction float64, seed int64) (*dataset.Table, *dataset.Table, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.New("test fraction must be in (0, 1)")
	}
	records := table.Records()
	if len(records) < 2 {
		return nil, nil, errors.New("need at least two records to split")
	}
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	nTest := int(float64(len(records)) * testFraction)
	if nTest == 0 {
		nTest = 1
	}
	split := len(records) - nTest
	return dataset.NewTable(records[:split]), dataset.NewTable(records[split:]), nil
}

// Evaluate scores model against every record of test.
func Evaluate(model Recommender, test *dataset.Table) (Evaluation, error) {
	if test.Len() == 0 {
		return Evaluation{}, dataset.ErrEmptyTable
	}
	predicted := make(map[string]int)
	truePos := make(map[string]int)
	support := make(map[string]int)

	eval := Evaluation{Samples: test.Len()}
	for _, rec := range test.Records() {
		label, err := model.Predict(rec.Features())
		if err != nil {
			return Evaluation{}, err
		}
		support[rec.Label]++
		predicted[label]++
		if label == rec.Label {
			truePos[label]++
			eval.Correct++
		}
	}
	eval.Accuracy = float64(eval.Correct) / float64(eval.Samples)

	labels := make([]string, 0, len(support)+len(predicted))
	for l := range support {
		labels = append(labels, l)
	}
	for l := range predicted {
		if _, ok := support[l]; !ok {
			labels = append(labels, l)
		}
	}

	eval.PerClass = make(map[string]ClassMetrics, len(labels))
	for _, l := range labels {
		m := ClassMetrics{Support: support[l]}
		if predicted[l] > 0 {
			m.Precision = float64(truePos[l]) / float64(predicted[l])
		}
		if support[l] > 0 {
			m.Recall = float64(truePos[l]) / float64(support[l])
		}
		eval.PerClass[l] = m
	}
	return eval, nil
}
