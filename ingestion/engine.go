package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/chunker"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/retry"
	"github.com/poiesic/ragnote/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/ragnote/ingestion"

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// Engine executes ingestion workflow instances.
type Engine struct {
	steps    storage.StepLog
	chunks   storage.ChunkRepository
	index    storage.VectorIndex
	embedder ai.Embedder
	chunker  *chunker.Chunker
	retry    retry.Policy

	// instancePool runs whole instances; chunkPool bounds per-chunk work.
	instancePool *ants.Pool
	chunkPool    *ants.Pool
	inflight     sync.WaitGroup
	// running holds the ids of instances submitted by this engine and not yet finished.
	running sync.Map

	tracer trace.Tracer
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets how many chunks are processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.chunkPool != nil {
			e.chunkPool.Release()
		}
		e.chunkPool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithChunker sets the chunker used by the split step.
func WithChunker(c *chunker.Chunker) Option {
	return func(e *Engine) error {
		if c != nil {
			e.chunker = c
		}
		return nil
	}
}

// WithRetry sets the retry policy applied to every step.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(e *Engine) error {
		if maxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		e.retry = retry.Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
		return nil
	}
}

// WithTracer sets the tracer used for run and step spans.
// Default is the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) error {
		if tracer != nil {
			e.tracer = tracer
		}
		return nil
	}
}

// NewEngine creates an ingestion engine.
func NewEngine(
	steps storage.StepLog,
	chunks storage.ChunkRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Engine, error) {
	if steps == nil {
		return nil, ErrStepLogRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	defaultChunker, err := chunker.New()
	if err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	chunkPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	// Instance runs are unbounded so Start never blocks; the chunk pool
	// bounds the actual work.
	instancePool, err := ants.NewPool(-1)
	if err != nil {
		chunkPool.Release()
		return nil, err
	}

	e := &Engine{
		steps:        steps,
		chunks:       chunks,
		index:        index,
		embedder:     embedder,
		chunker:      defaultChunker,
		retry:        retry.Policy{MaxAttempts: defaultRetryAttempts, BaseDelay: defaultRetryDelay},
		instancePool: instancePool,
		chunkPool:    chunkPool,
		tracer:       otel.Tracer(tracerName),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.Release()
			return nil, optErr
		}
	}
	e.logger = e.logger.With("component", "ingestion")

	return e, nil
}

// Start records a pending instance for text and runs it in the background.
// The returned id identifies the instance in the step log.
func (e *Engine) Start(ctx context.Context, text, sourceURL string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	now := time.Now().UTC()
	instance := &core.WorkflowInstance{
		ID:        "ingest-" + uuid.NewString(),
		Text:      text,
		SourceURL: sourceURL,
		Status:    core.WorkflowPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.steps.CreateInstance(ctx, instance); err != nil {
		return "", fmt.Errorf("%w: recording workflow instance: %w", core.ErrStorage, err)
	}

	if _, err := e.submit(ctx, instance.ID); err != nil {
		// The instance stays pending and is picked up by the next Resume.
		return instance.ID, err
	}
	e.logger.Debug("ingestion started", "instance", instance.ID, "bytes", len(text))
	return instance.ID, nil
}

// Resume submits every pending or running instance and returns how many were
// submitted. Call Wait to block until they finish.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	return e.submitInState(ctx, core.WorkflowPending, core.WorkflowRunning)
}

// RetryPartial submits every partial instance. Steps that already completed
// are not repeated.
func (e *Engine) RetryPartial(ctx context.Context) (int, error) {
	return e.submitInState(ctx, core.WorkflowPartial)
}

func (e *Engine) submitInState(ctx context.Context, statuses ...core.WorkflowStatus) (int, error) {
	instances, err := e.steps.ListInstances(ctx, statuses...)
	if err != nil {
		return 0, fmt.Errorf("%w: listing workflow instances: %w", core.ErrStorage, err)
	}
	submitted := 0
	for _, instance := range instances {
		ok, err := e.submit(ctx, instance.ID)
		if err != nil {
			return submitted, err
		}
		if ok {
			submitted++
		}
	}
	if submitted > 0 {
		e.logger.Info("resuming ingestion", "instances", submitted, "states", statuses)
	}
	return submitted, nil
}

// submit schedules instanceID unless this engine is already running it, and
// reports whether it was scheduled.
func (e *Engine) submit(ctx context.Context, instanceID string) (bool, error) {
	if _, loaded := e.running.LoadOrStore(instanceID, struct{}{}); loaded {
		e.logger.Debug("instance already running, skipping", "instance", instanceID)
		return false, nil
	}
	runCtx := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	err := e.instancePool.Submit(func() {
		defer e.inflight.Done()
		defer e.running.Delete(instanceID)
		if _, err := e.Run(runCtx, instanceID); err != nil {
			e.logger.Error("ingestion run failed", "instance", instanceID, "err", err)
		}
	})
	if err != nil {
		e.running.Delete(instanceID)
		e.inflight.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return false, ErrEngineClosed
		}
		return false, err
	}
	return true, nil
}

// Run executes or resumes an instance synchronously.
// Chunk failures are reported, not returned: the error is non-nil only when
// the instance could not be run at all. A cancelled context leaves the
// instance running so a later Resume continues it.
func (e *Engine) Run(ctx context.Context, instanceID string) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "ingestion.Run",
		trace.WithAttributes(attribute.String("ingestion.instance_id", instanceID)))
	defer span.End()

	report, err := e.run(ctx, instanceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("ingestion.chunks", report.Chunks),
		attribute.Int("ingestion.indexed", report.Indexed),
	)
	return report, nil
}

func (e *Engine) run(ctx context.Context, instanceID string) (*Report, error) {
	instance, err := e.steps.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading instance %s: %w", core.ErrStorage, instanceID, err)
	}

	if instance.Status != core.WorkflowRunning {
		instance.Status = core.WorkflowRunning
		if err := e.steps.UpdateInstance(ctx, instance); err != nil {
			return nil, fmt.Errorf("%w: updating instance %s: %w", core.ErrStorage, instanceID, err)
		}
	}

	texts, err := e.split(ctx, instance)
	if err != nil {
		return nil, err
	}

	report := &Report{InstanceID: instanceID, Chunks: len(texts)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, text := range texts {
		wg.Add(1)
		submitErr := e.chunkPool.Submit(func() {
			defer wg.Done()
			failure := e.processChunk(ctx, instance, i, text)

			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				report.Failures = append(report.Failures, *failure)
			} else {
				report.Indexed++
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			if errors.Is(submitErr, ants.ErrPoolClosed) {
				return nil, ErrEngineClosed
			}
			return nil, submitErr
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(report.Failures, func(a, b ChunkFailure) int {
		return a.Index - b.Index
	})

	instance.ChunkCount = report.Chunks
	instance.Failed = len(report.Failures)
	if report.Complete() {
		instance.Status = core.WorkflowCompleted
	} else {
		instance.Status = core.WorkflowPartial
	}
	if err := e.steps.UpdateInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("%w: updating instance %s: %w", core.ErrStorage, instanceID, err)
	}

	if report.Complete() {
		e.logger.Info("ingestion completed", "instance", instanceID, "chunks", report.Chunks)
	} else {
		e.logger.Error("ingestion partially failed", "instance", instanceID,
			"chunks", report.Chunks, "failed", len(report.Failures))
	}
	return report, nil
}

// split returns the memoized chunk texts of an instance, splitting its text
// on the first run.
func (e *Engine) split(ctx context.Context, instance *core.WorkflowInstance) ([]string, error) {
	record, err := e.memoized(ctx, instance.ID, core.StepSplit, core.SplitChunkIndex, func(rec *core.StepRecord) error {
		texts, err := e.chunker.Split(instance.Text)
		if err != nil {
			return retry.Permanent(err)
		}
		rec.Texts = texts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record.Texts, nil
}

// processChunk runs persist, embed and index for one chunk. It returns nil on
// success, or the failure that abandoned the chunk.
func (e *Engine) processChunk(ctx context.Context, instance *core.WorkflowInstance, index int, text string) *ChunkFailure {
	persisted, err := e.memoized(ctx, instance.ID, core.StepPersist, index, func(rec *core.StepRecord) error {
		chunk, err := e.chunks.AddChunk(ctx, &core.Chunk{
			Text:      text,
			SourceURL: instance.SourceURL,
			IngestKey: core.IngestKeyFor(instance.ID, index),
		})
		if err != nil {
			return fmt.Errorf("%w: persisting chunk: %w", core.ErrStorage, err)
		}
		rec.ChunkID = chunk.ID
		return nil
	})
	if err != nil {
		return e.fail(instance.ID, index, core.StepPersist, err)
	}

	embedded, err := e.memoized(ctx, instance.ID, core.StepEmbed, index, func(rec *core.StepRecord) error {
		vector, err := e.embedder.EmbedText(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrEmbedding, err)
		}
		if len(vector) == 0 {
			return fmt.Errorf("%w: empty vector", core.ErrEmbedding)
		}
		rec.Vector = vector
		return nil
	})
	if err != nil {
		return e.fail(instance.ID, index, core.StepEmbed, err)
	}

	_, err = e.memoized(ctx, instance.ID, core.StepIndex, index, func(*core.StepRecord) error {
		if err := e.index.Upsert(ctx, persisted.ChunkID, embedded.Vector); err != nil {
			return fmt.Errorf("%w: %w", core.ErrIndex, err)
		}
		return nil
	})
	if err != nil {
		return e.fail(instance.ID, index, core.StepIndex, err)
	}
	return nil
}

func (e *Engine) fail(instanceID string, index int, step core.StepName, err error) *ChunkFailure {
	e.logger.Error("ingestion step failed", "instance", instanceID, "step", step, "chunk", index, "err", err)
	return &ChunkFailure{Index: index, Step: step, Err: err}
}

// memoized returns the recorded result of a step, or runs the step under the
// retry policy and records its result before returning it.
func (e *Engine) memoized(
	ctx context.Context,
	instanceID string,
	step core.StepName,
	chunkIndex int,
	run func(rec *core.StepRecord) error,
) (*core.StepRecord, error) {
	ctx, span := e.tracer.Start(ctx, "ingestion."+string(step),
		trace.WithAttributes(attribute.Int("ingestion.chunk_index", chunkIndex)))
	defer span.End()

	var cached *core.StepRecord
	err := e.retry.Do(ctx, func() error {
		var loadErr error
		cached, loadErr = e.steps.LoadStep(ctx, instanceID, step, chunkIndex)
		return loadErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s step: %w", core.ErrStorage, step, err)
	}
	if cached != nil {
		span.SetAttributes(attribute.Bool("ingestion.memoized", true))
		return cached, nil
	}

	record := &core.StepRecord{InstanceID: instanceID, Step: step, ChunkIndex: chunkIndex}
	if err := e.retry.Do(ctx, func() error { return run(record) }); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	record.CompletedAt = time.Now().UTC()
	err = e.retry.Do(ctx, func() error {
		return e.steps.SaveStep(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recording %s step: %w", core.ErrStorage, step, err)
	}
	return record, nil
}

// Wait blocks until every submitted run has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Release frees the worker pools. Runs still in flight fail to submit their
// remaining chunks and leave their instances resumable.
func (e *Engine) Release() {
	if e.instancePool != nil {
		e.instancePool.Release()
	}
	if e.chunkPool != nil {
		e.chunkPool.Release()
	}
}
