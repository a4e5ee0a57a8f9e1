package pqueue

import (
	"sort"
)

func WithOrderAsc() Option {
	return func(o *options) {
		o.order = orderAsc
	}
}

func WithOrderDesc() Option {
	return func(o *options) {
		o.order = orderDesc
	}
}

func WithCap(size uint) Option {
	return func(o *options) {
		o.cap = int(size)
	}
}

type Option func(*options)

type options struct {
	order order
	cap   int
}

type order uint8

const (
	orderAsc order = iota
	orderDesc
)

type item[T any] struct {
	value T
	prior float64
}

// New returns a priority queue ordered by priority. Items of equal priority keep
// their push order, and with a capacity set the queue keeps only the first cap
// items of that order.
func New[T any](opts ...Option) *Queue[T] {
	o := options{order: orderAsc, cap: -1}
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[T]{order: o.order, cap: o.cap}
}

type Queue[T any] struct {
	order order
	cap   int
	items []item[T]
}

func (q *Queue[T]) PopAll() []T {
	pulled := make([]T, len(q.items))
	for i := range q.items {
		pulled[i] = q.items[i].value
	}
	q.items = q.items[:0]
	return pulled
}

func (q *Queue[T]) Head() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	x := q.items[0]
	q.items = q.items[1:]
	return x.value, true
}

func (q *Queue[T]) Tail() (T, bool) {
	var zero T
	l := len(q.items) - 1
	if l < 0 {
		return zero, false
	}
	x := q.items[l]
	q.items = q.items[:l]
	return x.value, true
}

func (q *Queue[T]) Push(val T, priority float64) {
	// first position whose item ranks strictly after the new one
	pos := sort.Search(len(q.items), func(i int) bool {
		return q.before(priority, q.items[i].prior)
	})
	if q.cap >= 0 && pos >= q.cap {
		return
	}
	q.items = append(q.items, item[T]{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item[T]{value: val, prior: priority}
	if q.cap >= 0 && len(q.items) > q.cap {
		q.items = q.items[:q.cap]
	}
}

func (q *Queue[T]) Cap() int { return q.cap }

func (q *Queue[T]) Len() int { return len(q.items) }

func (q *Queue[T]) Seek(idx int) (T, float64) {
	it := q.items[idx]
	return it.value, it.prior
}

func (q *Queue[T]) before(p, p1 float64) bool {
	if q.order == orderAsc {
		return p < p1
	}
	return p > p1
}
