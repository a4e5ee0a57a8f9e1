// Package metrics records classifier usage with OpenCensus and exposes it in
// the Prometheus text format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	ModelKey   = tag.MustNewKey("model")
	OutcomeKey = tag.MustNewKey("outcome")

	Predictions  = stats.Int64("knn/predictions", "Number of predicted queries", stats.UnitDimensionless)
	Trainings    = stats.Int64("knn/trainings", "Number of classifier trainings", stats.UnitDimensionless)
	TrainSamples = stats.Int64("knn/train_samples", "Size of the last training set", stats.UnitDimensionless)
)

var Views = []*view.View{
	{
		Name:        Predictions.Name(),
		Description: Predictions.Description(),
		Measure:     Predictions,
		TagKeys:     []tag.Key{ModelKey, OutcomeKey},
		Aggregation: view.Sum(),
	},
	{
		Name:        Trainings.Name(),
		Description: Trainings.Description(),
		Measure:     Trainings,
		TagKeys:     []tag.Key{ModelKey},
		Aggregation: view.Count(),
	},
	{
		Name:        TrainSamples.Name(),
		Description: TrainSamples.Description(),
		Measure:     TrainSamples,
		TagKeys:     []tag.Key{ModelKey},
		Aggregation: view.LastValue(),
	},
}

var (
	registerOnce sync.Once
	registerErr  error
)

func Register() error {
	registerOnce.Do(func() {
		registerErr = view.Register(Views...)
	})
	return registerErr
}

// NewHandler registers the views and returns the Prometheus scrape handler.
func NewHandler(namespace string) (http.Handler, error) {
	if err := Register(); err != nil {
		return nil, fmt.Errorf("unable register views: %w", err)
	}
	exporter, err := prometheus.NewExporter(prometheus.Options{Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("unable create prometheus exporter: %w", err)
	}
	return exporter, nil
}

func RecordPredictions(ctx context.Context, modelID string, n int, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(ModelKey, modelID), tag.Upsert(OutcomeKey, outcome)},
		Predictions.M(int64(n)),
	)
}

func RecordTraining(ctx context.Context, modelID string, samples int) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(ModelKey, modelID)},
		Trainings.M(1),
		TrainSamples.M(int64(samples)),
	)
}
