// Package dataset holds the labeled training set a classifier is trained on.
package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyStore     = errors.New("training set is empty")
	ErrNoFeatures     = errors.New("samples have no features")
	ErrRaggedSamples  = errors.New("samples have different number of features")
	ErrLabelsMismatch = errors.New("number of labels does not match number of samples")
)

// Store is an immutable N×F matrix of samples with one label per row.
// It owns copies of the data it was built from.
type Store[L comparable] struct {
	samples *mat.Dense
	labels  []L
	// distinct labels in first-seen order
	unique []L
	counts map[L]int
}

func NewStore[L comparable](samples [][]float64, labels []L) (*Store[L], error) {
	if len(samples) == 0 {
		return nil, ErrEmptyStore
	}
	features := len(samples[0])
	if features == 0 {
		return nil, ErrNoFeatures
	}
	data := make([]float64, 0, len(samples)*features)
	for i, row := range samples {
		if len(row) != features {
			return nil, fmt.Errorf("sample %d has %d features, expected %d: %w", i, len(row), features, ErrRaggedSamples)
		}
		data = append(data, row...)
	}
	return newStore(mat.NewDense(len(samples), features, data), labels)
}

func NewStoreFromMatrix[L comparable](m mat.Matrix, labels []L) (*Store[L], error) {
	r, c := m.Dims()
	if r == 0 {
		return nil, ErrEmptyStore
	}
	if c == 0 {
		return nil, ErrNoFeatures
	}
	return newStore(mat.DenseCopyOf(m), labels)
}

func newStore[L comparable](samples *mat.Dense, labels []L) (*Store[L], error) {
	r, _ := samples.Dims()
	if len(labels) != r {
		return nil, fmt.Errorf("%d labels for %d samples: %w", len(labels), r, ErrLabelsMismatch)
	}
	s := &Store[L]{
		samples: samples,
		labels:  make([]L, len(labels)),
		counts:  make(map[L]int),
	}
	copy(s.labels, labels)
	for _, l := range s.labels {
		if _, ok := s.counts[l]; !ok {
			s.unique = append(s.unique, l)
		}
		s.counts[l]++
	}
	return s, nil
}

func (s *Store[L]) Len() int {
	r, _ := s.samples.Dims()
	return r
}

func (s *Store[L]) Features() int {
	_, c := s.samples.Dims()
	return c
}

// Sample returns the i-th sample. The slice shares the store's backing
// storage and must not be modified.
func (s *Store[L]) Sample(i int) []float64 {
	return s.samples.RawRowView(i)
}

func (s *Store[L]) Label(i int) L {
	return s.labels[i]
}

func (s *Store[L]) Labels() []L {
	labels := make([]L, len(s.labels))
	copy(labels, s.labels)
	return labels
}

// UniqueLabels returns the distinct labels in the order they first occur.
func (s *Store[L]) UniqueLabels() []L {
	unique := make([]L, len(s.unique))
	copy(unique, s.unique)
	return unique
}

// Count returns how many samples carry the label.
func (s *Store[L]) Count(label L) int {
	return s.counts[label]
}

func (s *Store[L]) String() string {
	return fmt.Sprintf("%d samples x %d features, %d labels %v", s.Len(), s.Features(), len(s.unique), s.unique)
}
