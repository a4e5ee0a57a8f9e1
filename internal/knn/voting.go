package knn

import (
	"fmt"

	"github.com/go-sod/knn/internal/dataset"
)

type VotingType string

const (
	VotingMajority VotingType = "MAJORITY"
	VotingWeighted VotingType = "WEIGHTED"
)

// Voter resolves the labels of the chosen neighbours into a single label. It
// only sees neighbour indices into the trained store, never distances.
type Voter[L comparable] interface {
	Vote(neighbours []int, store *dataset.Store[L]) L
}

var (
	_ Voter[string] = MajorityVote[string]{}
	_ Voter[string] = WeightedVote[string]{}
)

// MajorityVote counts one vote per neighbour.
type MajorityVote[L comparable] struct{}

func (MajorityVote[L]) Vote(neighbours []int, store *dataset.Store[L]) L {
	votes := make(map[L]float64)
	for _, nn := range neighbours {
		votes[store.Label(nn)]++
	}
	return elect(store.UniqueLabels(), votes)
}

// WeightedVote counts each neighbour with weight 1 - n(label)/N, where n(label)
// is the number of training samples with that label. Votes for rare classes
// count for more.
type WeightedVote[L comparable] struct{}

func (WeightedVote[L]) Vote(neighbours []int, store *dataset.Store[L]) L {
	total := float64(store.Len())
	votes := make(map[L]float64)
	for _, nn := range neighbours {
		label := store.Label(nn)
		votes[label] += 1 - float64(store.Count(label))/total
	}
	return elect(store.UniqueLabels(), votes)
}

// elect scans labels in order and keeps the first label with the highest
// tally. Labels without votes have a tally of zero.
func elect[L comparable](labels []L, votes map[L]float64) L {
	var (
		best      L
		mostVotes float64
	)
	for i, label := range labels {
		if i == 0 || votes[label] > mostVotes {
			best = label
			mostVotes = votes[label]
		}
	}
	return best
}

func VoterFor[L comparable](t VotingType) (Voter[L], error) {
	switch t {
	case VotingMajority:
		return MajorityVote[L]{}, nil
	case VotingWeighted:
		return WeightedVote[L]{}, nil
	default:
		return nil, fmt.Errorf("unknown voting type: %s", t)
	}
}

func votingName[L comparable](v Voter[L]) string {
	switch v.(type) {
	case MajorityVote[L]:
		return string(VotingMajority)
	case WeightedVote[L]:
		return string(VotingWeighted)
	default:
		return fmt.Sprintf("%T", v)
	}
}
