package config

import (
	"github.com/go-sod/knn/internal/collect"
	"github.com/go-sod/knn/internal/database"
	"github.com/go-sod/knn/internal/dispatcher"
	"github.com/go-sod/knn/internal/knn"
	"github.com/go-sod/knn/internal/predict"
	"github.com/go-sod/knn/internal/setup"
	"github.com/go-sod/knn/internal/train"
)

var (
	_ setup.DatabaseConfigProvider   = (*Config)(nil)
	_ setup.ClassifierConfigProvider = (*Config)(nil)
	_ setup.DispatcherConfigProvider = (*Config)(nil)
)

type Config struct {
	SrvAddr    string `envconfig:"KNN_SVC_ADDR" default:":8787"`
	GRPCAddr   string `envconfig:"KNN_GRPC_ADDR" default:":8788"`
	Dispatcher dispatcher.Config
	KNN        knn.Config
	Database   database.Config
	Train      train.Config
	Collect    collect.Config
	Predict    predict.Config
}

func (c *Config) DispatcherConfig() *dispatcher.Config {
	return &c.Dispatcher
}

func (c *Config) ClassifierConfig() *knn.Config {
	return &c.KNN
}

func (c *Config) DatabaseConfig() *database.Config {
	return &c.Database
}
