package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sod/knn/internal/logging"
	"github.com/go-sod/knn/internal/sample/model"
)

// Scheduler options
type dbSchedulerConfig struct {
	maxItemsStored int
	maxStorageTime time.Duration
	rebuildDBTime  time.Duration
	deps           pullDependencies
	// called for every model that lost samples
	onDelete func(modelID string)
}

func newDBScheduler(config dbSchedulerConfig) *dbScheduler {
	return &dbScheduler{opts: config}
}

// The scheduler is responsible for deleting old samples from the DB.
// It can keep at most maxItemsStored samples per model or delete samples older
// than maxStorageTime.
type dbScheduler struct {
	opts dbSchedulerConfig
}

// processOutdatedSamples deletes the model's samples created earlier than
// maxStorageTime ago.
func (s *dbScheduler) processOutdatedSamples(modelID string) error {
	samples, err := s.opts.deps.fetchSamplesByModel(modelID, func(sample model.Sample) bool {
		return time.Since(sample.CreatedAt) > s.opts.maxStorageTime
	})
	if err != nil {
		return fmt.Errorf("unable find samples by model %s: %w", modelID, err)
	}

	return s.delete(modelID, samples)
}

// processOverSizeSamples deletes the oldest samples of the model beyond
// maxItemsStored.
func (s *dbScheduler) processOverSizeSamples(modelID string) error {
	samples, err := s.opts.deps.fetchSamplesByModel(modelID, nil)
	if err != nil {
		return fmt.Errorf("unable find samples by model %s: %w", modelID, err)
	}
	if len(samples) <= s.opts.maxItemsStored {
		return nil
	}

	// samples come oldest first
	return s.delete(modelID, samples[:len(samples)-s.opts.maxItemsStored])
}

func (s *dbScheduler) delete(modelID string, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := s.opts.deps.deleteSamples(context.Background(), samples); err != nil {
		return fmt.Errorf("unable delete samples of model %s: %w", modelID, err)
	}
	if s.opts.onDelete != nil {
		s.opts.onDelete(modelID)
	}
	return nil
}

// rebuildOutdated checks every model for outdated samples
func (s *dbScheduler) rebuildOutdated() error {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("unable to fetch model keys: %w", err)
	}
	for i := range keys {
		if err := s.processOutdatedSamples(keys[i]); err != nil {
			return fmt.Errorf("unable process samples: %w", err)
		}
	}
	return nil
}

// rebuildSize checks the number of samples of every model
func (s *dbScheduler) rebuildSize() error {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("unable fetch keys: %w", err)
	}
	for i := range keys {
		length, err := s.opts.deps.countByModel(keys[i])
		if err != nil {
			return fmt.Errorf("unable count by model %s: %w", keys[i], err)
		}
		if length > s.opts.maxItemsStored {
			if err := s.processOverSizeSamples(keys[i]); err != nil {
				return fmt.Errorf("unable process samples: %w", err)
			}
		}
	}

	return nil
}

// Scheduler for running sample cleanup in the DB
func (s *dbScheduler) schedule(ctx context.Context) {
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(s.opts.rebuildDBTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.opts.maxItemsStored > 0 {
				if err := s.rebuildSize(); err != nil {
					logger.Errorf("unable db rebuild size: %v", err)
				}
			}
			if s.opts.maxStorageTime > 0 {
				if err := s.rebuildOutdated(); err != nil {
					logger.Errorf("unable db rebuild outdated: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
