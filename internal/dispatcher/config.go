package dispatcher

import (
	"time"
)

type Config struct {
	// Timer for performing sample retention in the DB
	RebuildDBTime time.Duration `envconfig:"KNN_REBUILD_DB_TIME" default:"15s"`
	// maximum number of samples in the DB for each model, 0 keeps all
	MaxItemsStored int `envconfig:"KNN_MAX_ITEMS_STORED" default:"1000000"`
	// maximum retention period for samples in the DB, 0 keeps all
	MaxStorageTime time.Duration `envconfig:"KNN_MAX_STORAGE_TIME" default:"0s"`
	// buffer size in dbTxExecutor at which collected samples are flushed to disk
	DBFlushSize int `envconfig:"KNN_DB_FLUSH_SIZE" default:"10"`
	// maximum time collected samples stay in the dbTxExecutor buffer
	DBFlushTime time.Duration `envconfig:"KNN_DB_FLUSH_TIME" default:"5s"`
	// how often models with new samples are retrained
	RetrainTime time.Duration `envconfig:"KNN_RETRAIN_TIME" default:"10s"`
	MaxConcurrentTrain int `envconfig:"KNN_MAX_CONCURRENT_TRAIN" default:"4"`
}
