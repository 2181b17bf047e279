// Package advisor wires the dataset, the classifier and the reference text
// into one read-only service. An Advisor is fully built before it is
// returned, so every query runs against a loaded table and a trained model.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cropadvisor/config"
	"cropadvisor/dataset"
	"cropadvisor/db"
	"cropadvisor/explore"
	"cropadvisor/ml"
	"cropadvisor/monitoring"
	"cropadvisor/practices"
)

var ErrHistoryDisabled = errors.New("prediction history is disabled")

// HistoryStore persists served recommendations.
type HistoryStore interface {
	SavePrediction(ctx context.Context, rec db.PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
	SaveTrainingLog(ctx context.Context, log db.TrainingLog) error
	Close() error
}

type Options struct {
	Tree      ml.TreeConfig
	CacheSize int
	Practices *practices.Catalog
	History   HistoryStore
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

type Advisor struct {
	table     *dataset.Table
	model     *ml.Classifier
	practices *practices.Catalog
	cache     *lru.Cache[dataset.Features, ml.Prediction]
	history   HistoryStore
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// Recommendation is a prediction together with the guidance for the crop.
type Recommendation struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Practice      practices.Result   `json:"practice"`
	Cached        bool               `json:"cached"`
}

// FilterResult is a filtered subset with its bounds.
type FilterResult struct {
	Count   int                               `json:"count"`
	Labels  []string                          `json:"labels"`
	Bounds  map[dataset.Column]dataset.Bounds `json:"bounds,omitempty"`
	Records []dataset.Record                  `json:"records"`
}

// PracticeListing tells which dataset crops have guidance.
type PracticeListing struct {
	Default string               `json:"default"`
	Crops   []practices.Coverage `json:"crops"`
}

// New loads the dataset named by cfg, trains the model and opens the
// history store. A dataset error aborts construction before training.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Advisor, error) {
	opts := []dataset.Option{dataset.WithEncoding(cfg.Dataset.Encoding)}
	if cfg.Dataset.Strict {
		opts = append(opts, dataset.WithRules(dataset.PhysicalBoundsRules()...))
	}
	table, err := dataset.Load(cfg.Dataset.Path, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.String("path", cfg.Dataset.Path),
		zap.Int("records", table.Len()),
		zap.Int("labels", len(table.Labels())))

	catalog, err := practices.LoadFile(cfg.Practices.Path)
	if err != nil {
		return nil, err
	}

	var history HistoryStore
	if cfg.History.Enabled {
		store, err := db.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		history = store
	}

	a, err := Build(table, Options{
		Tree:      ml.TreeConfig{Seed: cfg.Model.Seed, MaxDepth: cfg.Model.MaxDepth},
		CacheSize: cfg.Cache.Size,
		Practices: catalog,
		History:   history,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, err
	}

	if history != nil {
		s := a.model.Summary()
		err := history.SaveTrainingLog(ctx, db.TrainingLog{
			ModelName:  "decision_tree",
			Accuracy:   s.TrainingAccuracy,
			Nodes:      s.Nodes,
			Depth:      s.Depth,
			Seed:       s.Seed,
			TrainedAt:  s.TrainedAt,
			DataPoints: s.Samples,
		})
		if err != nil {
			logger.Warn("save training log failed", zap.Error(err))
		}
	}
	return a, nil
}

// Build trains on table and returns a ready Advisor.
func Build(table *dataset.Table, opts Options) (*Advisor, error) {
	if table.Len() == 0 {
		return nil, dataset.ErrNoRecords
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Practices == nil {
		catalog, err := practices.Embedded()
		if err != nil {
			return nil, err
		}
		opts.Practices = catalog
	}

	start := time.Now()
	model, err := ml.Train(table, opts.Tree)
	if err != nil {
		return nil, err
	}
	took := time.Since(start)
	summary := model.Summary()
	opts.Logger.Info("model trained",
		zap.Int("nodes", summary.Nodes),
		zap.Int("depth", summary.Depth),
		zap.Float64("training_accuracy", summary.TrainingAccuracy),
		zap.Duration("took", took))

	opts.Metrics.SetDataset(table.Len(), len(table.Labels()))
	opts.Metrics.SetModel(summary.Nodes, summary.Depth, took)

	a := &Advisor{
		table:     table,
		model:     model,
		practices: opts.Practices,
		history:   opts.History,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if opts.CacheSize > 0 {
		a.cache, err = lru.New[dataset.Features, ml.Prediction](opts.CacheSize)
		if err != nil {
			return nil, err
		}
	}

	for _, label := range table.Labels() {
		if !a.practices.Has(label) {
			opts.Logger.Debug("no farming practices for crop", zap.String("label", label))
		}
	}
	return a, nil
}

// Recommend predicts the crop for f. requestID is stored with the history
// entry and may be empty.
func (a *Advisor) Recommend(ctx context.Context, f dataset.Features, requestID string) (Recommendation, error) {
	p, cached, err := a.predict(f)
	if err != nil {
		return Recommendation{}, err
	}
	a.metrics.RecordPrediction(p.Label)

	rec := Recommendation{
		Label:         p.Label,
		Confidence:    p.Confidence,
		Probabilities: p.Probabilities,
		Practice:      a.practices.Describe(p.Label),
		Cached:        cached,
	}

	if a.history != nil {
		entry := db.PredictionRecord{
			RequestID:   requestID,
			N:           f[dataset.Nitrogen],
			P:           f[dataset.Phosphorus],
			K:           f[dataset.Potassium],
			Temperature: f[dataset.Temperature],
			Humidity:    f[dataset.Humidity],
			PH:          f[dataset.PH],
			Rainfall:    f[dataset.Rainfall],
			Label:       p.Label,
			Confidence:  p.Confidence,
			Cached:      cached,
		}
		if err := a.history.SavePrediction(ctx, entry); err != nil {
			a.logger.Warn("save prediction failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	return rec, nil
}

func (a *Advisor) predict(f dataset.Features) (ml.Prediction, bool, error) {
	if a.cache != nil {
		if p, ok := a.cache.Get(f); ok {
			a.metrics.RecordCacheLookup(true)
			probs := make(map[string]float64, len(p.Probabilities))
			for k, v := range p.Probabilities {
				probs[k] = v
			}
			p.Probabilities = probs
			return p, true, nil
		}
		a.metrics.RecordCacheLookup(false)
	}
	p, err := a.model.PredictWithConfidence(f)
	if err != nil {
		return ml.Prediction{}, false, err
	}
	if a.cache != nil {
		a.cache.Add(f, p)
	}
	return p, false, nil
}

// Explore answers a visualization query.
func (a *Advisor) Explore(_ context.Context, s explore.State) (*explore.View, error) {
	return explore.Query(a.table, s)
}

// Filter returns the records matching p and their bounds.
func (a *Advisor) Filter(p dataset.Predicate) (FilterResult, error) {
	if err := p.Validate(); err != nil {
		return FilterResult{}, err
	}
	subset := a.table.Filter(p)
	res := FilterResult{
		Count:   subset.Len(),
		Labels:  subset.Labels(),
		Records: subset.Records(),
	}
	if subset.Len() > 0 {
		bounds, err := subset.Bounds()
		if err != nil {
			return FilterResult{}, err
		}
		res.Bounds = bounds
	}
	return res, nil
}

// Ranges returns per-column bounds over the records with the given labels,
// or over the whole table when labels is empty.
func (a *Advisor) Ranges(labels []string) (map[dataset.Column]dataset.Bounds, error) {
	subset := a.table
	if len(labels) > 0 {
		subset = a.table.Filter(dataset.NewPredicate(labels...))
	}
	return subset.Bounds()
}

// Labels returns the crops in dataset order.
func (a *Advisor) Labels() []string {
	return a.table.Labels()
}

func (a *Advisor) LabelCounts() map[string]int {
	return a.table.LabelCounts()
}

func (a *Advisor) Practice(label string) practices.Result {
	return a.practices.Describe(label)
}

// Practices lists every dataset crop with its guidance availability. The
// default selection is the first crop in the dataset.
func (a *Advisor) Practices() PracticeListing {
	labels := a.table.Labels()
	listing := PracticeListing{Crops: a.practices.Cover(labels)}
	if len(labels) > 0 {
		listing.Default = labels[0]
	}
	return listing
}

func (a *Advisor) ModelInfo() ml.Summary {
	return a.model.Summary()
}

// History returns the most recent recommendations, newest first.
func (a *Advisor) History(ctx context.Context, limit int) ([]db.PredictionRecord, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.RecentPredictions(ctx, limit)
}

func (a *Advisor) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}
