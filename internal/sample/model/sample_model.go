package model

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/go-sod/knn/internal/dataset"
	"github.com/go-sod/knn/internal/geom"
	"github.com/google/uuid"
)

func NewSample(modelID string, vec geom.Point, label string, createdAt time.Time) Sample {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return Sample{
		ID:        uuid.New(),
		ModelID:   modelID,
		Vec:       vec,
		Label:     label,
		CreatedAt: createdAt,
	}
}

// Sample is one labeled feature vector of a model's training set.
type Sample struct {
	ID        uuid.UUID  `json:"id"`
	ModelID   string     `json:"modelId"`
	Vec       geom.Point `json:"vec"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewStore builds a training store from samples, keeping their order.
func NewStore(samples []Sample) (*dataset.Store[string], error) {
	vectors := make([][]float64, len(samples))
	labels := make([]string, len(samples))
	for i := range samples {
		vectors[i] = samples[i].Vec.Points()
		labels[i] = samples[i].Label
	}
	store, err := dataset.NewStore(vectors, labels)
	if err != nil {
		return nil, fmt.Errorf("unable to build training store: %w", err)
	}
	return store, nil
}

// Before reports whether s is ordered before o: by creation time, then by id.
func (s Sample) Before(o Sample) bool {
	if a, b := s.CreatedAt.UnixNano(), o.CreatedAt.UnixNano(); a != b {
		return a < b
	}
	return bytes.Compare(s.ID[:], o.ID[:]) < 0
}

// SortedByCreation returns a copy of samples in the order they are stored in.
func SortedByCreation(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})
	return sorted
}
