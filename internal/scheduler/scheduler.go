// Package scheduler implements the Batch Scheduler (M2): a bounded worker
// pool that runs the Per-Item Pipeline over a batch with per-item retry and
// failure isolation.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/pipeline"
)

const (
	MinConcurrency           = 1
	MaxConcurrency           = 5
	DefaultServerConcurrency = 3
	DefaultCLIConcurrency    = 1
	DefaultMaxRetries        = 2
)

// EventSink is the subset of the job registry the scheduler needs: it emits
// events and reads the job's cancellation flag. Decoupled from
// internal/jobs so the scheduler can be tested against a fake.
type EventSink interface {
	Emit(jobID string, event domain.Event)
	CancelRequested(jobID string) bool
}

// RunItemFunc executes the per-item pipeline for one request; matches
// pipeline.RunItem's signature so a test can substitute a fake.
type RunItemFunc func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome

// Scheduler runs batches of items through RunItem with a bounded worker
// pool and per-item retry, per §4.9.
type Scheduler struct {
	sink          EventSink
	runItem       RunItemFunc
	maxConcurrent int
	maxRetries    int
}

// New builds a Scheduler. maxConcurrent is clamped to [MinConcurrency,
// MaxConcurrency]; maxRetries < 0 falls back to DefaultMaxRetries.
func New(sink EventSink, runItem RunItemFunc, maxConcurrent, maxRetries int) *Scheduler {
	if maxConcurrent < MinConcurrency {
		maxConcurrent = MinConcurrency
	}
	if maxConcurrent > MaxConcurrency {
		maxConcurrent = MaxConcurrency
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Scheduler{sink: sink, runItem: runItem, maxConcurrent: maxConcurrent, maxRetries: maxRetries}
}

// RunBatch runs every item in items through the worker pool, isolating
// failures, and emits queue-start/queue-done around the run. Cancellation
// is cooperative: items not yet started are failed with Cancelled rather
// than launched, and ctx propagates to every in-flight RunItem call.
// queue-cancelled, if cancellation was requested, is emitted here (not by
// Registry.Cancel) only after wg.Wait() confirms every started item has
// finished and emitted its own outcome, per §5's ordering requirement:
// item-error{Cancelled} for every affected item, then queue-cancelled once,
// then queue-done.
func (s *Scheduler) RunBatch(ctx context.Context, jobID string, preset domain.ProcessingPreset, items []domain.TrackRequest) {
	s.sink.Emit(jobID, domain.NewQueueStart(jobID))

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for _, item := range items {
		if s.sink.CancelRequested(jobID) {
			s.sink.Emit(jobID, domain.NewItemError(jobID, item.ID, domain.ErrKindCancelled, "batch was cancelled before this item started", ""))
			continue
		}

		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.runWithRetry(ctx, jobID, preset, item)
		}()
	}

	wg.Wait()

	if s.sink.CancelRequested(jobID) {
		s.sink.Emit(jobID, domain.NewQueueCancelled(jobID))
	}
	s.sink.Emit(jobID, domain.NewQueueDone(jobID))
}

// runWithRetry runs item through RunItem, retrying retryable error kinds
// with exponential backoff (2^attempt * 1s) up to maxRetries.
func (s *Scheduler) runWithRetry(ctx context.Context, jobID string, preset domain.ProcessingPreset, item domain.TrackRequest) {
	var outcome domain.ItemOutcome
	var pendingErr *domain.Event
	attempts := 0
	// Only the first attempt's item-start and the last attempt's item-error
	// reach the sink, so a retried item emits one start and one terminal event.
	emit := func(e domain.Event) {
		if e.Type == domain.EventItemError {
			pendingErr = &e
		} else if e.Type != domain.EventItemStart || attempts == 1 {
			s.sink.Emit(jobID, e)
		}
	}

	operation := func() error {
		attempts++
		pendingErr = nil
		outcome = s.runItem(ctx, jobID, item, preset, emit)
		if outcome.Status != domain.StatusError {
			return nil
		}
		if !outcome.ErrorKind.Retryable() {
			return backoff.Permanent(errors.New(outcome.Message))
		}
		return errors.New(outcome.Message)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&fixedExponentialBackOff{}, uint64(s.maxRetries)), ctx)
	_ = backoff.Retry(operation, policy)
	if pendingErr != nil {
		s.sink.Emit(jobID, *pendingErr)
	}
}

// fixedExponentialBackOff implements backoff.BackOff with the exact
// 2^attempt * 1s schedule required by §4.9 (attempt 1 -> 2s, attempt 2 -> 4s, ...).
type fixedExponentialBackOff struct {
	attempt uint
}

func (b *fixedExponentialBackOff) NextBackOff() time.Duration {
	b.attempt++
	return (1 << b.attempt) * time.Second
}

func (b *fixedExponentialBackOff) Reset() {
	b.attempt = 0
}
