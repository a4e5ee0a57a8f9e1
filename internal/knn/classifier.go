// Package knn implements a k-nearest-neighbour classifier over a labeled
// training set under Euclidean distance.
package knn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-sod/knn/internal/dataset"
	"github.com/go-sod/knn/internal/geom"
	"github.com/go-sod/knn/pkg/pqueue"
	"gonum.org/v1/gonum/mat"
)

const DefaultK = 2

var ErrNilStore = errors.New("training store is nil")

type Option func(*options)

type options struct {
	k      int
	voting VotingType
}

var defaultOptions = options{k: DefaultK, voting: VotingWeighted}

func WithK(k int) Option {
	return func(o *options) {
		o.k = k
	}
}

func WithVoting(t VotingType) Option {
	return func(o *options) {
		o.voting = t
	}
}

// Classifier predicts labels by voting among the k training samples closest to
// each query. Training only captures the store; all work happens in Predict.
//
// Predict may be called concurrently. Train and SetVoter swap references under
// a write lock, and every prediction runs against the store and voter that were
// current when it started.
type Classifier[L comparable] struct {
	mtx   sync.RWMutex
	k     int
	voter Voter[L]
	store *dataset.Store[L]
}

func New[L comparable](opts ...Option) (*Classifier[L], error) {
	o := defaultOptions
	for _, f := range opts {
		f(&o)
	}
	if o.k < 1 {
		return nil, fmt.Errorf("unable creating knn instance, k must be positive, got %d", o.k)
	}
	voter, err := VoterFor[L](o.voting)
	if err != nil {
		return nil, fmt.Errorf("unable creating knn instance, %w", err)
	}
	return &Classifier[L]{k: o.k, voter: voter}, nil
}

// Train replaces the training store. The classifier keeps a reference to the
// store, which is immutable.
func (c *Classifier[L]) Train(store *dataset.Store[L]) error {
	if store == nil {
		return ErrNilStore
	}
	c.mtx.Lock()
	c.store = store
	c.mtx.Unlock()
	return nil
}

func (c *Classifier[L]) Trained() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.store != nil
}

func (c *Classifier[L]) Store() *dataset.Store[L] {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.store
}

func (c *Classifier[L]) K() int {
	return c.k
}

func (c *Classifier[L]) Voter() Voter[L] {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.voter
}

func (c *Classifier[L]) SetVoter(v Voter[L]) error {
	if v == nil {
		return fmt.Errorf("voter is nil")
	}
	c.mtx.Lock()
	c.voter = v
	c.mtx.Unlock()
	return nil
}

// Predict returns one label per query, in query order. Either every query is
// predicted or an error is returned.
func (c *Classifier[L]) Predict(queries [][]float64) ([]L, error) {
	store, voter, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, shapeErrorf("queries must contain at least one row")
	}
	features := len(queries[0])
	for i := range queries {
		if len(queries[i]) != features {
			return nil, shapeErrorf("query %d has %d features, query 0 has %d", i, len(queries[i]), features)
		}
	}
	if features != store.Features() {
		return nil, dimensionErrorf("queries have %d features, classifier is trained on %d", features, store.Features())
	}
	return c.predict(store, voter, queries)
}

// PredictMatrix is Predict for queries held as the rows of a matrix.
func (c *Classifier[L]) PredictMatrix(queries mat.Matrix) ([]L, error) {
	store, voter, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	r, cols := queries.Dims()
	if r == 0 {
		return nil, shapeErrorf("queries must contain at least one row")
	}
	if cols != store.Features() {
		return nil, dimensionErrorf("queries have %d features, classifier is trained on %d", cols, store.Features())
	}
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, queries)
	}
	return c.predict(store, voter, rows)
}

func (c *Classifier[L]) snapshot() (*dataset.Store[L], Voter[L], error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	if c.store == nil {
		return nil, nil, ErrNotTrained
	}
	return c.store, c.voter, nil
}

func (c *Classifier[L]) predict(store *dataset.Store[L], voter Voter[L], queries [][]float64) ([]L, error) {
	predicted := make([]L, len(queries))
	for i, q := range queries {
		nn, err := Neighbours(store, q, c.k)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		predicted[i] = voter.Vote(nn, store)
	}
	return predicted, nil
}

// Neighbours returns the indices of the k samples closest to query, nearest
// first. Among equal distances the sample stored first wins. When k exceeds the
// number of samples, all samples are returned.
func Neighbours[L comparable](store *dataset.Store[L], query []float64, k int) ([]int, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	pq := pqueue.New[int](pqueue.WithCap(uint(k)))
	for i := 0; i < store.Len(); i++ {
		distance, err := geom.EuclideanDistance(query, store.Sample(i))
		if err != nil {
			return nil, dimensionErrorf("unable to compute distance to sample %d: %v", i, err)
		}
		pq.Push(i, distance)
	}
	return pq.PopAll(), nil
}

func (c *Classifier[L]) String() string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	data := "untrained"
	if c.store != nil {
		data = c.store.String()
	}
	return fmt.Sprintf("kNN: k=%d voting=%s data=%s", c.k, votingName(c.voter), data)
}
