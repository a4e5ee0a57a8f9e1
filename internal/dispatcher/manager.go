package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-sod/knn/internal/database"
	"github.com/go-sod/knn/internal/dataset"
	"github.com/go-sod/knn/internal/knn"
	"github.com/go-sod/knn/internal/logging"
	"github.com/go-sod/knn/internal/metrics"
	sampleDb "github.com/go-sod/knn/internal/sample/database"
	"github.com/go-sod/knn/internal/sample/model"
	"github.com/go-sod/knn/pkg/rworker"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrClosed       = errors.New("dispatcher is shutting down")
	ErrNoSamples    = errors.New("no samples to train on")
)

// Contract for returning the Manager instance
type ProvideFn func(chan<- error) (Manager, error)

// Manager owns one classifier per model and the samples they are trained on.
type Manager interface {
	Trainer
	CollectPredictor
	// Models returns the ids of the models that can predict
	Models() []string
	// Start method of the service
	Run(context.Context) error
	// Method for stopping the service
	Stop()
}

// Trainer replaces the training set of a model
type Trainer interface {
	Train(ctx context.Context, modelID string, samples []model.Sample) (*Summary, error)
}

// Collector accepts samples that are added to a model's training set later
type Collector interface {
	Collect(in ...model.Sample) error
}

// Predictor labels queries with a trained model
type Predictor interface {
	Predict(ctx context.Context, modelID string, queries [][]float64) ([]string, error)
}

// Aggregation interface for Collector and Predictor interfaces
type CollectPredictor interface {
	Collector
	Predictor
}

// Summary describes the training set a model was trained on.
type Summary struct {
	ModelID  string
	Samples  int
	Features int
	Labels   []string
}

func summaryOf(modelID string, store *dataset.Store[string]) *Summary {
	return &Summary{
		ModelID:  modelID,
		Samples:  store.Len(),
		Features: store.Features(),
		Labels:   store.UniqueLabels(),
	}
}

// Abstractions for getting dependencies
type (
	// function for getting all samples
	fetchSamplesFn func(context.Context, sampleDb.FilterFn) ([]model.Sample, error)
	// function for getting the samples of a model, oldest first
	fetchSamplesByModelFn func(string, sampleDb.FilterFn) ([]model.Sample, error)
	// function for deleting multiple samples
	deleteSamplesFn func(context.Context, []model.Sample) error
	// function to add sets of samples
	appendSamplesFn func(context.Context, []model.Sample) error
	// function to replace the whole training set of a model
	replaceModelFn func(context.Context, string, []model.Sample) error
	// function for getting all model IDs
	fetchKeysFn func() ([]string, error)
	// number of samples by model id
	countByModelFn func(string) (int, error)
)

// General structure for aggregation of dependency pulling functions
type pullDependencies struct {
	fetchSamples        fetchSamplesFn
	fetchSamplesByModel fetchSamplesByModelFn
	deleteSamples       deleteSamplesFn
	appendSamples       appendSamplesFn
	replaceModel        replaceModelFn
	fetchKeys           fetchKeysFn
	countByModel        countByModelFn
}

func dependenciesFor(db *sampleDb.DB) pullDependencies {
	return pullDependencies{
		fetchSamples:        db.FindAll,
		fetchSamplesByModel: db.FindByModel,
		deleteSamples:       db.DeleteMany,
		appendSamples:       db.AppendMany,
		replaceModel:        db.ReplaceModel,
		fetchKeys:           db.Keys,
		countByModel:        db.CountByModel,
	}
}

type Options struct {
	maxItemsStored     int
	maxStorageTime     time.Duration
	dbFlushTime        time.Duration
	dbFlushSize        int
	rebuildDBTime      time.Duration
	retrainTime        time.Duration
	maxConcurrentTrain int
	collectBuffer      int
}

var defaultOptions = Options{
	maxItemsStored:     1000000,
	dbFlushTime:        5 * time.Second,
	dbFlushSize:        10,
	rebuildDBTime:      15 * time.Second,
	retrainTime:        10 * time.Second,
	maxConcurrentTrain: 4,
	collectBuffer:      1024,
}

type Option func(*manager)

func WithDBFlushTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.dbFlushTime = t
	}
}

func WithDBFlushSize(n int) Option {
	return func(o *manager) {
		o.opts.dbFlushSize = n
	}
}

func WithRebuildDBTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.rebuildDBTime = t
	}
}

func WithMaxItemsStored(n int) Option {
	return func(o *manager) {
		o.opts.maxItemsStored = n
	}
}

func WithMaxStorageTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.maxStorageTime = t
	}
}

func WithRetrainTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.retrainTime = t
	}
}

func WithMaxConcurrentTrain(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentTrain = n
	}
}

// New return manager
func New(
	db *database.DB,
	provideClassifierFn knn.ProvideFn[string],
	shutdownCh chan<- error,
	opts ...Option,
) (*manager, error) {
	if db == nil {
		return nil, fmt.Errorf("database instance is not created")
	}
	if provideClassifierFn == nil {
		return nil, fmt.Errorf("classifier provider is not defined")
	}

	d := &manager{
		opts:                defaultOptions,
		shutDownCh:          shutdownCh,
		provideClassifierFn: provideClassifierFn,
		classifiers:         map[string]*knn.Classifier[string]{},
		locks:               map[string]*sync.Mutex{},
		dirty:               map[string]struct{}{},
		done:                make(chan struct{}),
	}

	for _, f := range opts {
		f(d)
	}
	d.normalizeOptions()
	d.collectCh = make(chan model.Sample, d.opts.collectBuffer)
	d.deps = dependenciesFor(sampleDb.New(db))

	d.dbScheduler = newDBScheduler(dbSchedulerConfig{
		deps:           d.deps,
		maxItemsStored: d.opts.maxItemsStored,
		maxStorageTime: d.opts.maxStorageTime,
		rebuildDBTime:  d.opts.rebuildDBTime,
		onDelete:       d.touch,
	})

	d.dbTxExecutor = newDBTxExecutor(
		dbTxExecutorOptions{
			deps:      d.deps,
			flushTime: d.opts.dbFlushTime,
			flushSize: d.opts.dbFlushSize,
			onFlush:   d.touchSamples,
		},
	)

	return d, nil
}

// Describes the per-model classifiers, the sample buffer and the background
// jobs that keep samples and classifiers in sync.
type manager struct {
	mtx sync.RWMutex

	opts Options
	deps pullDependencies
	// The transaction manager in the store
	dbTxExecutor *dbTxExecutor
	// Managing data in storage
	dbScheduler *dbScheduler

	// New samples for processing
	collectCh chan model.Sample
	// Channel to shutdown the application
	shutDownCh chan<- error
	// closed when the manager stops accepting samples
	done   chan struct{}
	closed bool
	// Collect calls that passed the closed check
	senders sync.WaitGroup

	// The factory returns an untrained classifier
	provideClassifierFn knn.ProvideFn[string]
	classifiers         map[string]*knn.Classifier[string]
	// serializes storage and training of a single model
	locks map[string]*sync.Mutex
	// models with samples that are not trained on yet
	dirtyMtx sync.Mutex
	dirty    map[string]struct{}

	cancel func()
}

func (d *manager) normalizeOptions() {
	if d.opts.dbFlushTime <= 0 {
		d.opts.dbFlushTime = defaultOptions.dbFlushTime
	}
	if d.opts.dbFlushSize <= 0 {
		d.opts.dbFlushSize = 1
	}
	if d.opts.rebuildDBTime <= 0 {
		d.opts.rebuildDBTime = defaultOptions.rebuildDBTime
	}
	if d.opts.retrainTime <= 0 {
		d.opts.retrainTime = defaultOptions.retrainTime
	}
	if d.opts.maxConcurrentTrain <= 0 {
		d.opts.maxConcurrentTrain = 1
	}
	if d.opts.collectBuffer <= 0 {
		d.opts.collectBuffer = defaultOptions.collectBuffer
	}
}

// The Run method loads stored models and starts the background jobs
func (d *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Loading samples from storage and training every model
	if err := d.bulkLoad(ctx); err != nil {
		cancel()
		return fmt.Errorf("can not start dispatcher manager: %w", err)
	}

	go d.collector(ctx)
	go d.dbTxExecutor.flusher(ctx)
	go d.dbScheduler.schedule(ctx)
	go d.retrainer(ctx)

	return nil
}

// Stop the manager
func (d *manager) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *manager) Models() []string {
	d.mtx.RLock()
	models := make([]string, 0, len(d.classifiers))
	for k, c := range d.classifiers {
		if c.Trained() {
			models = append(models, k)
		}
	}
	d.mtx.RUnlock()
	sort.Strings(models)
	return models
}

// Train stores samples as the model's training set and retrains it.
func (d *manager) Train(ctx context.Context, modelID string, samples []model.Sample) (*Summary, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	// the store keeps the order the repository returns samples in
	samples = model.SortedByCreation(samples)
	store, err := model.NewStore(samples)
	if err != nil {
		return nil, err
	}
	classifier, err := d.classifier(modelID)
	if err != nil {
		return nil, err
	}

	lock := d.modelLock(modelID)
	lock.Lock()
	defer lock.Unlock()

	if err := d.deps.replaceModel(ctx, modelID, samples); err != nil {
		return nil, fmt.Errorf("unable store samples of model %s: %w", modelID, err)
	}
	if err := classifier.Train(store); err != nil {
		return nil, fmt.Errorf("unable train model %s: %w", modelID, err)
	}
	metrics.RecordTraining(ctx, modelID, store.Len())
	logging.FromContext(ctx).Infof("model %s trained on %s", modelID, store)
	return summaryOf(modelID, store), nil
}

// Predict labels every query with the model's classifier, in query order
func (d *manager) Predict(ctx context.Context, modelID string, queries [][]float64) ([]string, error) {
	d.mtx.RLock()
	if d.closed {
		d.mtx.RUnlock()
		return nil, ErrClosed
	}
	classifier, ok := d.classifiers[modelID]
	d.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model %s: %w", modelID, ErrUnknownModel)
	}

	labels, err := classifier.Predict(queries)
	metrics.RecordPredictions(ctx, modelID, len(queries), err)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}
	return labels, nil
}

// Collect adds samples to the feed for saving
func (d *manager) Collect(data ...model.Sample) error {
	d.mtx.RLock()
	if d.closed {
		d.mtx.RUnlock()
		return ErrClosed
	}
	d.senders.Add(1)
	d.mtx.RUnlock()
	defer d.senders.Done()

	for i := range data {
		select {
		case d.collectCh <- data[i]:
		case <-d.done:
			return ErrClosed
		}
	}
	return nil
}

// classifier returns the model's classifier, creating an untrained one if needed
func (d *manager) classifier(modelID string) (*knn.Classifier[string], error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if c, ok := d.classifiers[modelID]; ok {
		return c, nil
	}
	c, err := d.provideClassifierFn()
	if err != nil {
		return nil, fmt.Errorf("can not create classifier instance: %w", err)
	}
	d.classifiers[modelID] = c
	return c, nil
}

func (d *manager) modelLock(modelID string) *sync.Mutex {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	l, ok := d.locks[modelID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[modelID] = l
	}
	return l
}

// bulkLoad trains a classifier for every model found in the storage
func (d *manager) bulkLoad(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	keys, err := d.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("error fetching model keys: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, key := range keys {
		modelID := key
		g.Go(func() error {
			return d.retrain(gCtx, modelID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infof("loaded %d models", len(keys))
	return nil
}

// retrain rebuilds the model's classifier from its stored samples. A model
// without samples is dropped.
func (d *manager) retrain(ctx context.Context, modelID string) error {
	lock := d.modelLock(modelID)
	lock.Lock()
	defer lock.Unlock()

	samples, err := d.deps.fetchSamplesByModel(modelID, nil)
	if err != nil {
		return fmt.Errorf("unable fetch samples of model %s: %w", modelID, err)
	}
	if len(samples) == 0 {
		d.mtx.Lock()
		delete(d.classifiers, modelID)
		d.mtx.Unlock()
		return nil
	}
	store, err := model.NewStore(samples)
	if err != nil {
		return fmt.Errorf("model %s: %w", modelID, err)
	}
	classifier, err := d.classifier(modelID)
	if err != nil {
		return err
	}
	if err := classifier.Train(store); err != nil {
		return fmt.Errorf("unable train model %s: %w", modelID, err)
	}
	metrics.RecordTraining(ctx, modelID, store.Len())
	return nil
}

func (d *manager) isClosed() bool {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.closed
}

func (d *manager) touch(modelID string) {
	d.dirtyMtx.Lock()
	d.dirty[modelID] = struct{}{}
	d.dirtyMtx.Unlock()
}

func (d *manager) touchSamples(samples []model.Sample) {
	d.dirtyMtx.Lock()
	for i := range samples {
		d.dirty[samples[i].ModelID] = struct{}{}
	}
	d.dirtyMtx.Unlock()
}

// retrainOnce retrains every dirty model, at most maxConcurrentTrain at a time
func (d *manager) retrainOnce(ctx context.Context) {
	logger := logging.FromContext(ctx)
	d.dirtyMtx.Lock()
	dirty := d.dirty
	d.dirty = map[string]struct{}{}
	d.dirtyMtx.Unlock()
	if len(dirty) == 0 {
		return
	}

	var wg sync.WaitGroup
	rate := make(chan struct{}, d.opts.maxConcurrentTrain)
	errCh := make(chan error, len(dirty))
	for modelID := range dirty {
		modelID := modelID
		rworker.Job(&wg, func() error {
			return d.retrain(ctx, modelID)
		}, rate, errCh)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		logger.Errorf("unable retrain model: %v", err)
	}
}

func (d *manager) retrainer(ctx context.Context) {
	ticker := time.NewTicker(d.opts.retrainTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.retrainOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (d *manager) collector(ctx context.Context) {
	for {
		select {
		case in := <-d.collectCh:
			d.dbTxExecutor.append(ctx, in)
		case <-ctx.Done():
			close(d.done)
			d.mtx.Lock()
			d.closed = true
			d.mtx.Unlock()
			d.drainSenders(ctx)
			d.drain(ctx)
			d.shutDownCh <- d.dbTxExecutor.shutdown()
			return
		}
	}
}

// drainSenders keeps reading samples until every running Collect returns
func (d *manager) drainSenders(ctx context.Context) {
	finished := make(chan struct{})
	go func() {
		d.senders.Wait()
		close(finished)
	}()
	for {
		select {
		case in := <-d.collectCh:
			d.dbTxExecutor.append(ctx, in)
		case <-finished:
			return
		}
	}
}

// drain moves samples accepted before the shutdown into the buffer
func (d *manager) drain(ctx context.Context) {
	for {
		select {
		case in := <-d.collectCh:
			d.dbTxExecutor.append(ctx, in)
		default:
			return
		}
	}
}
