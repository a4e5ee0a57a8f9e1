package knn

import (
	"testing"

	"github.com/go-sod/knn/internal/dataset"
)

func TestVoters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		labels     []string
		neighbours []int
		majority   string
		weighted   string
	}{
		{
			name:       "clear_majority",
			labels:     []string{"A", "B", "B", "B"},
			neighbours: []int{1, 2, 3},
			majority:   "B",
			weighted:   "B",
		},
		{
			// one A (3 of 4 samples) against one B (1 of 4 samples)
			name:       "even_split_minority_wins_weighted",
			labels:     []string{"A", "A", "A", "B"},
			neighbours: []int{0, 3},
			majority:   "A",
			weighted:   "B",
		},
		{
			name:       "even_split_first_seen_wins",
			labels:     []string{"B", "A", "B", "A"},
			neighbours: []int{1, 2},
			majority:   "B",
			weighted:   "B",
		},
		{
			name:       "labels_without_votes",
			labels:     []string{"C", "A", "B"},
			neighbours: []int{2},
			majority:   "B",
			weighted:   "B",
		},
		{
			// every sample has the same label, its weight is zero
			name:       "single_label_weight_zero",
			labels:     []string{"A", "A", "A"},
			neighbours: []int{0, 1},
			majority:   "A",
			weighted:   "A",
		},
		{
			name:       "no_neighbours_first_seen",
			labels:     []string{"Z", "Y"},
			neighbours: nil,
			majority:   "Z",
			weighted:   "Z",
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			samples := make([][]float64, len(test.labels))
			for i := range samples {
				samples[i] = []float64{float64(i)}
			}
			store, err := dataset.NewStore(samples, test.labels)
			if err != nil {
				t.Fatalf("unable to create store: %v", err)
			}
			if got := (MajorityVote[string]{}).Vote(test.neighbours, store); got != test.majority {
				t.Errorf("majority vote got: %v, expected: %v", got, test.majority)
			}
			if got := (WeightedVote[string]{}).Vote(test.neighbours, store); got != test.weighted {
				t.Errorf("weighted vote got: %v, expected: %v", got, test.weighted)
			}
		})
	}
}

func TestVoters_AgreeOnBalancedClasses(t *testing.T) {
	t.Parallel()
	samples := [][]float64{
		{0, 0}, {0.5, 1}, {1, 0.2},
		{4, 4}, {5, 4.5}, {4.2, 5.1},
		{0, 6}, {1, 5}, {0.5, 7},
	}
	labels := []int{1, 1, 1, 2, 2, 2, 3, 3, 3}
	store, err := dataset.NewStore(samples, labels)
	if err != nil {
		t.Fatalf("unable to create store: %v", err)
	}
	var queries [][]float64
	for x := -1.0; x <= 6; x += 0.5 {
		for y := -1.0; y <= 8; y += 0.5 {
			queries = append(queries, []float64{x, y})
		}
	}
	for _, k := range []int{1, 2, 3, 4, 5, 9} {
		majority, err := New[int](WithK(k), WithVoting(VotingMajority))
		if err != nil {
			t.Fatalf("the error should not be returned: %v", err)
		}
		weighted, err := New[int](WithK(k), WithVoting(VotingWeighted))
		if err != nil {
			t.Fatalf("the error should not be returned: %v", err)
		}
		_ = majority.Train(store)
		_ = weighted.Train(store)
		m, err := majority.Predict(queries)
		if err != nil {
			t.Fatalf("the error should not be returned: %v", err)
		}
		w, err := weighted.Predict(queries)
		if err != nil {
			t.Fatalf("the error should not be returned: %v", err)
		}
		if len(m) != len(queries) || len(w) != len(queries) {
			t.Fatalf("one label per query expected, got %d and %d for %d queries", len(m), len(w), len(queries))
		}
		for i := range m {
			if m[i] != w[i] {
				t.Errorf("k=%d query %v: majority %d and weighted %d disagree on balanced classes", k, queries[i], m[i], w[i])
			}
			if m[i] < 1 || m[i] > 3 {
				t.Errorf("k=%d query %v: label %d is not a training label", k, queries[i], m[i])
			}
		}
	}
}

func TestVoterFor(t *testing.T) {
	t.Parallel()
	if v, err := VoterFor[string](VotingMajority); err != nil || votingName(v) != "MAJORITY" {
		t.Errorf("majority voter got: %T, %v", v, err)
	}
	if v, err := VoterFor[string](VotingWeighted); err != nil || votingName(v) != "WEIGHTED" {
		t.Errorf("weighted voter got: %T, %v", v, err)
	}
	if _, err := VoterFor[string]("NONE"); err == nil {
		t.Errorf("unknown voting type must be rejected")
	}
}
