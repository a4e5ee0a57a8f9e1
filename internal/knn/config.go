package knn

type Config struct {
	K      int        `envconfig:"KNN_K" default:"2"`
	Voting VotingType `envconfig:"KNN_VOTING" default:"WEIGHTED"`
}

func (c Config) Options() []Option {
	return []Option{WithK(c.K), WithVoting(c.Voting)}
}

// ProvideFn returns a new untrained classifier.
type ProvideFn[L comparable] func() (*Classifier[L], error)
