// Command evaluate measures how well the decision tree generalises on a
// seeded hold-out split of the crop dataset.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"cropadvisor/dataset"
	"cropadvisor/ml"
)

type options struct {
	dataPath  string
	encoding  string
	strict    bool
	seed      int64
	maxDepth  int
	testRatio float64
	asJSON    bool
}

func main() {
	var o options
	pflag.StringVar(&o.dataPath, "data", "Crop_recommendation.csv", "dataset CSV path")
	pflag.StringVar(&o.encoding, "encoding", "utf-8", "dataset character encoding")
	pflag.BoolVar(&o.strict, "strict", false, "reject rows outside physical bounds")
	pflag.Int64Var(&o.seed, "seed", ml.DefaultSeed, "random seed for the split and the tree")
	pflag.IntVar(&o.maxDepth, "max-depth", 0, "max tree depth, 0 for unbounded")
	pflag.Float64Var(&o.testRatio, "test-ratio", 0.2, "share of rows held out for testing")
	pflag.BoolVar(&o.asJSON, "json", false, "print the report as JSON")
	pflag.Parse()

	if err := run(o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
		os.Exit(1)
	}
}

type report struct {
	Train      int           `json:"train"`
	Test       int           `json:"test"`
	Model      ml.Summary    `json:"model"`
	Evaluation ml.Evaluation `json:"evaluation"`
}

func run(o options, out io.Writer) error {
	opts := []dataset.Option{dataset.WithEncoding(o.encoding)}
	if o.strict {
		opts = append(opts, dataset.WithRules(dataset.PhysicalBoundsRules()...))
	}
	table, err := dataset.Load(o.dataPath, opts...)
	if err != nil {
		return err
	}

	train, test, err := ml.SplitTable(table, o.testRatio, o.seed)
	if err != nil {
		return err
	}
	model, err := ml.Train(train, ml.TreeConfig{Seed: o.seed, MaxDepth: o.maxDepth})
	if err != nil {
		return err
	}
	eval, err := ml.Evaluate(model, test)
	if err != nil {
		return err
	}

	r := report{Train: train.Len(), Test: test.Len(), Model: model.Summary(), Evaluation: eval}
	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return writeTable(out, r)
}

func writeTable(out io.Writer, r report) error {
	fmt.Fprintf(out, "train=%d test=%d nodes=%d depth=%d\n", r.Train, r.Test, r.Model.Nodes, r.Model.Depth)
	fmt.Fprintf(out, "accuracy=%.4f (%d/%d)\n\n", r.Evaluation.Accuracy, r.Evaluation.Correct, r.Evaluation.Samples)

	labels := make([]string, 0, len(r.Evaluation.PerClass))
	for l := range r.Evaluation.PerClass {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "label\tprecision\trecall\tsupport")
	for _, l := range labels {
		m := r.Evaluation.PerClass[l]
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%d\n", l, m.Precision, m.Recall, m.Support)
	}
	return tw.Flush()
}
