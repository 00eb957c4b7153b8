package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	events    []domain.Event
	cancelled bool
}

func (f *fakeSink) Emit(jobID string, e domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeSink) CancelRequested(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *fakeSink) setCancelled(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = v
}

func (f *fakeSink) snapshot() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, len(f.events))
	copy(out, f.events)
	return out
}

func items(n int) []domain.TrackRequest {
	out := make([]domain.TrackRequest, n)
	for i := range out {
		out[i] = domain.TrackRequest{ID: string(rune('a' + i)), URL: "https://example.invalid"}
	}
	return out
}

func TestRunBatch_EmitsQueueStartThenQueueDoneLast(t *testing.T) {
	sink := &fakeSink{}
	run := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}
	s := New(sink, run, 2, 0)
	s.RunBatch(context.Background(), "job-1", domain.ProcessingPreset{}, items(3))

	events := sink.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventQueueStart, events[0].Type)
	assert.Equal(t, domain.EventQueueDone, events[len(events)-1].Type)
}

func TestRunBatch_RespectsConcurrencyBound(t *testing.T) {
	sink := &fakeSink{}
	var current, maxSeen int32
	var mu sync.Mutex
	run := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		n := atomic.AddInt32(&current, 1)
		mu.Lock()
		if n > int32(maxSeen) {
			maxSeen = n
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}
	s := New(sink, run, 2, 0)
	s.RunBatch(context.Background(), "job-1", domain.ProcessingPreset{}, items(6))

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxSeen, 2)
}

func TestRunBatch_RetriesRetryableErrorUntilSuccess(t *testing.T) {
	sink := &fakeSink{}
	var attempts int32
	run := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return domain.ItemOutcome{ID: item.ID, Status: domain.StatusError, ErrorKind: domain.ErrKindNetworkError}
		}
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}
	s := New(sink, run, 1, 2)
	s.runWithRetryTestHook(context.Background(), "job-1", domain.ProcessingPreset{}, domain.TrackRequest{ID: "a"})

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestRunBatch_NonRetryableFailsWithoutRetry(t *testing.T) {
	sink := &fakeSink{}
	var attempts int32
	run := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		atomic.AddInt32(&attempts, 1)
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusError, ErrorKind: domain.ErrKindInputInvalid}
	}
	s := New(sink, run, 1, 3)
	s.runWithRetryTestHook(context.Background(), "job-1", domain.ProcessingPreset{}, domain.TrackRequest{ID: "a"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRunBatch_SkipsUnstartedItemsAfterCancellation(t *testing.T) {
	sink := &fakeSink{}
	var started int32
	run := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		atomic.AddInt32(&started, 1)
		sink.setCancelled(true)
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}
	s := New(sink, run, 1, 0)
	s.RunBatch(context.Background(), "job-1", domain.ProcessingPreset{}, items(5))

	assert.Less(t, int(atomic.LoadInt32(&started)), 5)

	events := sink.snapshot()
	var sawCancelledError bool
	queueCancelledCount := 0
	queueCancelledIdx, queueDoneIdx := -1, -1
	for i, e := range events {
		if e.Type == domain.EventItemError && e.ErrorKind == domain.ErrKindCancelled {
			sawCancelledError = true
		}
		if e.Type == domain.EventQueueCancelled {
			queueCancelledCount++
			queueCancelledIdx = i
		}
		if e.Type == domain.EventQueueDone {
			queueDoneIdx = i
		}
	}
	assert.True(t, sawCancelledError)
	assert.Equal(t, 1, queueCancelledCount)
	require.NotEqual(t, -1, queueCancelledIdx)
	require.NotEqual(t, -1, queueDoneIdx)
	assert.Less(t, queueCancelledIdx, queueDoneIdx, "queue-cancelled must be emitted before queue-done")
}

// TestRunBatch_EmitsQueueCancelledAfterAllStartedItemsFinish verifies the
// ordering §5 requires: every started item's outcome is emitted before
// queue-cancelled, which itself precedes queue-done, even though
// cancellation is requested mid-flight by one of the item goroutines.
func TestRunBatch_EmitsQueueCancelledAfterAllStartedItemsFinish(t *testing.T) {
	sink := &fakeSink{}
	release := make(chan struct{})
	var startedCount int32
	run := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		n := atomic.AddInt32(&startedCount, 1)
		if n == 1 {
			sink.setCancelled(true)
		}
		<-release
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}
	s := New(sink, run, 2, 0)

	done := make(chan struct{})
	go func() {
		s.RunBatch(context.Background(), "job-1", domain.ProcessingPreset{}, items(2))
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&startedCount) >= 1
	}, time.Second, time.Millisecond)

	select {
	case <-done:
		t.Fatal("RunBatch returned before started items finished")
	default:
	}

	close(release)
	<-done

	events := sink.snapshot()
	queueCancelledIdx, queueDoneIdx := -1, -1
	for i, e := range events {
		if e.Type == domain.EventQueueCancelled {
			queueCancelledIdx = i
		}
		if e.Type == domain.EventQueueDone {
			queueDoneIdx = i
		}
	}
	require.NotEqual(t, -1, queueCancelledIdx)
	require.NotEqual(t, -1, queueDoneIdx)
	assert.Less(t, queueCancelledIdx, queueDoneIdx)
}

func TestNew_ClampsConcurrencyAndDefaultsRetries(t *testing.T) {
	s := New(&fakeSink{}, nil, 100, -1)
	assert.Equal(t, MaxConcurrency, s.maxConcurrent)
	assert.Equal(t, DefaultMaxRetries, s.maxRetries)

	s2 := New(&fakeSink{}, nil, 0, -1)
	assert.Equal(t, MinConcurrency, s2.maxConcurrent)
}

// runWithRetryTestHook exposes the unexported retry loop for focused tests.
func (s *Scheduler) runWithRetryTestHook(ctx context.Context, jobID string, preset domain.ProcessingPreset, item domain.TrackRequest) {
	s.runWithRetry(ctx, jobID, preset, item)
}
