package pqueue

import "testing"

func TestQueue_Push(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		opts     []Option
		values   []int
		prior    []float64
		expected []int
	}{
		{
			name:     "asc_unbounded",
			values:   []int{0, 1, 2, 3},
			prior:    []float64{3, 1, 2, 0},
			expected: []int{3, 1, 2, 0},
		},
		{
			name:     "desc_unbounded",
			opts:     []Option{WithOrderDesc()},
			values:   []int{0, 1, 2, 3},
			prior:    []float64{3, 1, 2, 0},
			expected: []int{0, 2, 1, 3},
		},
		{
			name:     "asc_capped",
			opts:     []Option{WithCap(2)},
			values:   []int{0, 1, 2, 3},
			prior:    []float64{3, 1, 2, 0},
			expected: []int{3, 1},
		},
		{
			name:     "equal_priorities_keep_push_order",
			opts:     []Option{WithCap(3)},
			values:   []int{0, 1, 2, 3, 4},
			prior:    []float64{1, 1, 1, 1, 0},
			expected: []int{4, 0, 1},
		},
		{
			name:     "cap_larger_than_input",
			opts:     []Option{WithCap(10)},
			values:   []int{0, 1},
			prior:    []float64{5, 5},
			expected: []int{0, 1},
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			q := New[int](test.opts...)
			for i := range test.values {
				q.Push(test.values[i], test.prior[i])
			}
			got := q.PopAll()
			if len(got) != len(test.expected) {
				t.Fatalf("the length of the queue got: %v, expected: %v", len(got), len(test.expected))
			}
			for i := range got {
				if got[i] != test.expected[i] {
					t.Errorf("queue order got: %v, expected: %v", got, test.expected)
					break
				}
			}
			if q.Len() != 0 {
				t.Errorf("queue must be empty after PopAll, got len %d", q.Len())
			}
		})
	}
}

func TestQueue_HeadTail(t *testing.T) {
	t.Parallel()
	q := New[string]()
	if _, ok := q.Head(); ok {
		t.Errorf("head of an empty queue must not be returned")
	}
	q.Push("b", 2)
	q.Push("a", 1)
	q.Push("c", 3)

	if v, p := q.Seek(1); v != "b" || p != 2 {
		t.Errorf("seek got: %v %v, expected: b 2", v, p)
	}
	if v, ok := q.Head(); !ok || v != "a" {
		t.Errorf("head got: %v, expected: a", v)
	}
	if v, ok := q.Tail(); !ok || v != "c" {
		t.Errorf("tail got: %v, expected: c", v)
	}
	if q.Len() != 1 {
		t.Errorf("len got: %d, expected: 1", q.Len())
	}
}
