package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-sod/knn/internal/logging"
	"github.com/go-sod/knn/internal/sample/model"
)

func newDBTxExecutor(opts dbTxExecutorOptions) *dbTxExecutor {
	return &dbTxExecutor{opts: opts}
}

// dbTxExecutorOptions Returns the structure with configuration options
type dbTxExecutorOptions struct {
	flushSize int
	flushTime time.Duration
	deps      pullDependencies
	// called with every batch that reached the storage
	onFlush func([]model.Sample)
}

// A structure that represents the database transaction execution service.
// Accumulates collected samples and inserts them in bulk into persistent storage.
type dbTxExecutor struct {
	mtx sync.Mutex

	opts dbTxExecutorOptions
	//  Buffer that accumulates samples for adding
	buf []model.Sample
}

// Inserts all samples from the buffer into persistent storage or returns an error
func (tx *dbTxExecutor) shutdown() error {
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	if len(tx.buf) == 0 {
		return nil
	}
	if err := tx.opts.deps.appendSamples(context.Background(), tx.buf); err != nil {
		return fmt.Errorf("txExecutor: append many operation failed: %w", err)
	}
	tx.buf = tx.buf[:0]
	return nil
}

// This is the main method for adding samples. It adds them to the buffer.
// If the buffer is full, it calls the bulkAppend method
func (tx *dbTxExecutor) append(ctx context.Context, data model.Sample) {
	tx.mtx.Lock()
	tx.buf = append(tx.buf, data)
	bufLen := len(tx.buf)
	tx.mtx.Unlock()

	if bufLen >= tx.opts.flushSize {
		tx.bulkAppend(ctx)
	}
}

// Bulk adds samples to persistent storage and clears the buffer. A failed
// batch goes back to the buffer.
func (tx *dbTxExecutor) bulkAppend(ctx context.Context) {
	logger := logging.FromContext(ctx)

	tx.mtx.Lock()
	if len(tx.buf) == 0 {
		tx.mtx.Unlock()
		return
	}
	tmpBuf := make([]model.Sample, len(tx.buf))
	copy(tmpBuf, tx.buf)
	tx.buf = tx.buf[:0]
	tx.mtx.Unlock()

	if err := tx.opts.deps.appendSamples(context.Background(), tmpBuf); err != nil {
		logger.Errorf("txExecutor: append many operation failed: %v", err)
		tx.mtx.Lock()
		tx.buf = append(tmpBuf, tx.buf...)
		tx.mtx.Unlock()
		return
	}
	if tx.opts.onFlush != nil {
		tx.opts.onFlush(tmpBuf)
	}
}

func (tx *dbTxExecutor) len() int {
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	return len(tx.buf)
}

// Every flushTime samples from the buffer are inserted into the database
func (tx *dbTxExecutor) flusher(ctx context.Context) {
	ticker := time.NewTicker(tx.opts.flushTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tx.bulkAppend(ctx)
		case <-ctx.Done():
			return
		}
	}
}
