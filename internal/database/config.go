package database

import "time"

type Config struct {
	FileName    string        `envconfig:"KNN_DB_FILE" default:"knn.db"`
	OpenTimeout time.Duration `envconfig:"KNN_DB_OPEN_TIMEOUT" default:"1s"`
}
