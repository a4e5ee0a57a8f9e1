package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sod/knn/internal/database"
	"github.com/go-sod/knn/internal/sample/model"
	bolt "go.etcd.io/bbolt"
)

const (
	modelKeys = "model:keys:"
	prefix    = "sample:"
)

type FilterFn func(sample model.Sample) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

type DB struct {
	sDB *database.DB
}

func (db *DB) extractKey(key string) string {
	prefixPos := strings.Index(key, prefix)

	return key[prefixPos+len(prefix):]
}

// sampleKey orders samples of a bucket the way model.Sample.Before does. The
// sign bit is flipped so times before 1970 sort first.
func sampleKey(s model.Sample) []byte {
	key := make([]byte, 8+len(s.ID))
	binary.BigEndian.PutUint64(key, uint64(s.CreatedAt.UnixNano())^(1<<63))
	copy(key[8:], s.ID[:])
	return key
}

func put(tx *bolt.Tx, s model.Sample) error {
	b, err := tx.CreateBucketIfNotExists([]byte(prefix + s.ModelID))
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := b.Put(sampleKey(s), bytes); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}
	keys, err := tx.CreateBucketIfNotExists([]byte(modelKeys))
	if err != nil {
		return fmt.Errorf("unable create models bucket: %w", err)
	}
	if err := keys.Put([]byte(prefix+s.ModelID), []byte{0x0}); err != nil {
		return fmt.Errorf("unable put to models bucket: %w", err)
	}
	return nil
}

// Keys returns the ids of all models with stored samples.
func (db *DB) Keys() ([]string, error) {
	var modelIDs []string
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(modelKeys))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			modelIDs = append(modelIDs, db.extractKey(string(k)))
		}
		return nil
	})

	return modelIDs, err
}

func (db *DB) Store(_ context.Context, s model.Sample) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		return put(tx, s)
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) AppendMany(_ context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for _, s := range samples {
			if err := put(tx, s); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

// ReplaceModel drops every stored sample of the model and stores samples in
// one transaction.
func (db *DB) ReplaceModel(_ context.Context, modelID string, samples []model.Sample) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(prefix + modelID)); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("unable delete bucket: %w", err)
		}
		for _, s := range samples {
			if s.ModelID != modelID {
				return fmt.Errorf("sample %s belongs to model %s, not %s", s.ID, s.ModelID, modelID)
			}
			if err := put(tx, s); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) DeleteMany(_ context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for _, s := range samples {
			b := tx.Bucket([]byte(prefix + s.ModelID))
			if b == nil {
				continue
			}
			if err := b.Delete(sampleKey(s)); err != nil {
				return fmt.Errorf("unable delete: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) DeleteByModel(_ context.Context, modelID string) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(prefix + modelID)); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("unable delete bucket: %w", err)
		}
		if b := tx.Bucket([]byte(modelKeys)); b != nil {
			return b.Delete([]byte(prefix + modelID))
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Sample, error) {
	var samples []model.Sample
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keys := tx.Bucket([]byte(modelKeys))
		if keys == nil {
			return nil
		}
		return keys.ForEach(func(k, _ []byte) error {
			found, err := scan(tx.Bucket(k), filter)
			if err != nil {
				return err
			}
			samples = append(samples, found...)
			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return samples, nil
}

func (db *DB) CountByModel(modelID string) (int, error) {
	var length int
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + modelID))
		if b == nil {
			length = 0
			return nil
		}
		length = b.Stats().KeyN
		return nil
	}); err != nil {
		return 0, fmt.Errorf("view transaction error: %w", err)
	}

	return length, nil
}

// FindByModel returns the model's samples oldest first.
func (db *DB) FindByModel(modelID string, filter FilterFn) ([]model.Sample, error) {
	var list []model.Sample
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		found, err := scan(tx.Bucket([]byte(prefix+modelID)), filter)
		list = found
		return err
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return list, nil
}

func scan(b *bolt.Bucket, filter FilterFn) ([]model.Sample, error) {
	var list []model.Sample
	if b == nil {
		return nil, nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var s model.Sample
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("json unmarshal error, %q", err)
		}
		if filter == nil || filter(s) {
			list = append(list, s)
		}
	}
	return list, nil
}
