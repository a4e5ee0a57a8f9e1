package setup

import (
	"context"
	"fmt"

	"github.com/go-sod/knn/internal/database"
	"github.com/go-sod/knn/internal/dispatcher"
	"github.com/go-sod/knn/internal/knn"
	"github.com/go-sod/knn/internal/logging"
	"github.com/go-sod/knn/internal/srvenv"
	"github.com/kelseyhightower/envconfig"
)

type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

type ClassifierConfigProvider interface {
	ClassifierConfig() *knn.Config
}

type DispatcherConfigProvider interface {
	DispatcherConfig() *dispatcher.Config
}

// Setup reads config from the environment and builds the providers of the
// components config asks for.
func Setup(ctx context.Context, config interface{}) (*srvenv.SrvEnv, error) {
	logger := logging.FromContext(ctx)
	var serverEnvOpts []srvenv.Option
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var (
		db                  *database.DB
		classifierProvideFn knn.ProvideFn[string]
	)
	if dbConfigProvider, ok := config.(DatabaseConfigProvider); ok {
		logger.Info("Configuring db")
		dbFromEnv, err := database.NewFromEnv(ctx, dbConfigProvider.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		db = dbFromEnv
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDatabase(db))
	}

	if classifierConfigProvider, ok := config.(ClassifierConfigProvider); ok {
		logger.Info("Configuring classifier")
		provideFn, err := ProvideClassifierFor(classifierConfigProvider.ClassifierConfig())
		if err != nil {
			return nil, fmt.Errorf("unable create classifier provide function: %w", err)
		}
		classifierProvideFn = provideFn
		serverEnvOpts = append(serverEnvOpts, srvenv.WithClassifier(classifierProvideFn))
	}

	if dispatcherConfigProvider, ok := config.(DispatcherConfigProvider); ok {
		logger.Info("Configuring dispatcher")
		if db == nil || classifierProvideFn == nil {
			return nil, fmt.Errorf("dispatcher requires database and classifier config")
		}
		provideFn := ProvideDispatcherFor(dispatcherConfigProvider.DispatcherConfig(), classifierProvideFn, db)
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDispatcher(provideFn))
	}

	return srvenv.New(serverEnvOpts...), nil
}

// ProvideClassifierFor validates cfg once and returns a factory of untrained
// classifiers configured by it.
func ProvideClassifierFor(cfg *knn.Config) (knn.ProvideFn[string], error) {
	if _, err := knn.New[string](cfg.Options()...); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	return func() (*knn.Classifier[string], error) {
		return knn.New[string](cfg.Options()...)
	}, nil
}

func ProvideDispatcherFor(cfg *dispatcher.Config, provideClassifierFn knn.ProvideFn[string], db *database.DB) dispatcher.ProvideFn {
	return func(shutdownCh chan<- error) (dispatcher.Manager, error) {
		return dispatcher.New(
			db,
			provideClassifierFn,
			shutdownCh,
			dispatcher.WithRebuildDBTime(cfg.RebuildDBTime),
			dispatcher.WithMaxItemsStored(cfg.MaxItemsStored),
			dispatcher.WithMaxStorageTime(cfg.MaxStorageTime),
			dispatcher.WithDBFlushSize(cfg.DBFlushSize),
			dispatcher.WithDBFlushTime(cfg.DBFlushTime),
			dispatcher.WithRetrainTime(cfg.RetrainTime),
			dispatcher.WithMaxConcurrentTrain(cfg.MaxConcurrentTrain),
		)
	}
}
