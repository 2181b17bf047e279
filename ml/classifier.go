package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"cropadvisor/dataset"
)

// DefaultSeed is the random state used when none is configured.
const DefaultSeed int64 = 1

// Classifier maps a feature vector to a crop label. It is immutable after
// Train and safe for concurrent use.
type Classifier struct {
	tree      *DecisionTree
	classes   []string
	index     map[string]int
	config    TreeConfig
	samples   int
	accuracy  float64
	trainedAt time.Time
}

// Prediction is a label plus the class distribution of the leaf it came from.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Summary describes a trained classifier.
type Summary struct {
	Classes          []string  `json:"classes"`
	Samples          int       `json:"samples"`
	Features         []string  `json:"features"`
	Nodes            int       `json:"nodes"`
	Leaves           int       `json:"leaves"`
	Depth            int       `json:"depth"`
	MaxDepth         int       `json:"max_depth"`
	Seed             int64     `json:"seed"`
	TrainingAccuracy float64   `json:"training_accuracy"`
	TrainedAt        time.Time `json:"trained_at"`
}

// Train fits a decision tree on every record of table.
func Train(table *dataset.Table, config TreeConfig) (*Classifier, error) {
	if table.Len() == 0 {
		return nil, errors.New("train: dataset is empty")
	}

	classes := table.Labels()
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	vectors := table.Features()
	features := make([][]float64, len(vectors))
	for i := range vectors {
		row := vectors[i]
		features[i] = row[:]
	}
	targets := table.Targets()
	labels := make([]int, len(targets))
	for i, t := range targets {
		labels[i] = index[t]
	}

	tree := NewDecisionTree(config)
	if err := tree.Train(features, labels, len(classes)); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	c := &Classifier{
		tree:      tree,
		classes:   classes,
		index:     index,
		config:    config,
		samples:   len(labels),
		trainedAt: time.Now().UTC(),
	}
	correct := 0
	for i, row := range features {
		got, _, err := tree.Predict(row)
		if err == nil && got == labels[i] {
			correct++
		}
	}
	c.accuracy = float64(correct) / float64(len(labels))
	return c, nil
}

// Predict returns exactly one label for f.
func (c *Classifier) Predict(f dataset.Features) (string, error) {
	p, err := c.PredictWithConfidence(f)
	if err != nil {
		return "", err
	}
	return p.Label, nil
}

// PredictProba returns the leaf class distribution keyed by label.
func (c *Classifier) PredictProba(f dataset.Features) (map[string]float64, error) {
	p, err := c.PredictWithConfidence(f)
	if err != nil {
		return nil, err
	}
	return p.Probabilities, nil
}

func (c *Classifier) PredictWithConfidence(f dataset.Features) (Prediction, error) {
	if c == nil || c.tree == nil {
		return Prediction{}, ErrNotTrained
	}
	for _, col := range dataset.Columns() {
		v := f.Get(col)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, &PredictionError{Field: col.String(), Reason: "must be a finite number"}
		}
	}

	probs, err := c.tree.PredictProba(f[:])
	if err != nil {
		return Prediction{}, err
	}
	best := 0
	out := make(map[string]float64, len(probs))
	for i, p := range probs {
		out[c.classes[i]] = p
		if p > probs[best] {
			best = i
		}
	}
	return Prediction{Label: c.classes[best], Confidence: probs[best], Probabilities: out}, nil
}

// Classes returns the known labels in lexicographic order.
func (c *Classifier) Classes() []string {
	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

func (c *Classifier) Summary() Summary {
	return Summary{
		Classes:          c.Classes(),
		Samples:          c.samples,
		Features:         dataset.ColumnNames(),
		Nodes:            c.tree.NodeCount(),
		Leaves:           c.tree.LeafCount(),
		Depth:            c.tree.Depth(),
		MaxDepth:         c.config.MaxDepth,
		Seed:             c.config.Seed,
		TrainingAccuracy: c.accuracy,
		TrainedAt:        c.trainedAt,
	}
}
