// Package jobs implements the Job Registry & Event Bus (S1): job
// creation, a bounded-history event bus with replay-then-live subscribe
// semantics, cancellation, and delayed reaping.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaki95/dropcrate/internal/domain"
)

const historyCapacity = 250

// reapDelay is a var, not a const, so tests can shrink it.
var reapDelay = 5 * time.Minute

// job is the registry's single-writer state for one batch, adapted from
// the teacher's mutex-guarded Manager shape in internal/service/job.
type job struct {
	mu              sync.Mutex
	id              string
	preset          domain.ProcessingPreset
	history         []domain.Event
	subscribers     map[int]chan domain.Event
	nextSubscriber  int
	cancelRequested bool
	cancelFunc      context.CancelFunc
	done            bool
}

// Registry owns every job for the process lifetime.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*job{}}
}

// CreateJob allocates a jobId and a cancellable context for the batch.
func (r *Registry) CreateJob(preset domain.ProcessingPreset) (jobID string, ctx context.Context) {
	jobID = uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	j := &job{
		id:          jobID,
		preset:      preset,
		subscribers: map[int]chan domain.Event{},
		cancelFunc:  cancel,
	}

	r.mu.Lock()
	r.jobs[jobID] = j
	r.mu.Unlock()
	return jobID, ctx
}

// Emit appends event to jobId's history (bounded, oldest dropped) and
// fans it out to every live subscriber; a subscriber whose channel is
// full is dropped rather than blocking the emitter.
func (r *Registry) Emit(jobID string, event domain.Event) {
	j := r.get(jobID)
	if j == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done {
		return
	}

	j.history = append(j.history, event)
	if len(j.history) > historyCapacity {
		j.history = j.history[len(j.history)-historyCapacity:]
	}

	for id, ch := range j.subscribers {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(j.subscribers, id)
		}
	}

	if event.Type == domain.EventQueueDone {
		j.done = true
	}
}

// Subscribe replays the entire current history, then streams live events,
// until ctx is cancelled.
func (r *Registry) Subscribe(ctx context.Context, jobID string) (<-chan domain.Event, bool) {
	j := r.get(jobID)
	if j == nil {
		return nil, false
	}

	j.mu.Lock()
	ch := make(chan domain.Event, historyCapacity)
	for _, e := range j.history {
		ch <- e
	}
	id := j.nextSubscriber
	j.nextSubscriber++
	if j.done {
		close(ch)
		j.mu.Unlock()
		return ch, true
	}
	j.subscribers[id] = ch
	j.mu.Unlock()

	go func() {
		<-ctx.Done()
		j.mu.Lock()
		if existing, ok := j.subscribers[id]; ok && existing == ch {
			delete(j.subscribers, id)
		}
		j.mu.Unlock()
	}()

	return ch, true
}

// Cancel flips the cancel flag (idempotent) and triggers ctx cancellation
// for every in-flight external-process call in the batch. It does not
// itself emit queue-cancelled: that has to wait until every in-flight item
// goroutine has actually observed cancellation and emitted its own
// item-error{Cancelled}, which only the scheduler's RunBatch can know (see
// its wg.Wait() call), per §5's ordering requirement.
func (r *Registry) Cancel(jobID string) bool {
	j := r.get(jobID)
	if j == nil {
		return false
	}

	j.mu.Lock()
	alreadyRequested := j.cancelRequested
	j.cancelRequested = true
	j.mu.Unlock()

	j.cancelFunc()

	return !alreadyRequested
}

// CancelRequested reports whether Cancel has been called for jobId.
func (r *Registry) CancelRequested(jobID string) bool {
	j := r.get(jobID)
	if j == nil {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

// ReapJob schedules removal of jobId's state reapDelay after it is called;
// callers invoke this once the batch's queue-done has been emitted.
func (r *Registry) ReapJob(jobID string) {
	time.AfterFunc(reapDelay, func() {
		r.mu.Lock()
		delete(r.jobs, jobID)
		r.mu.Unlock()
	})
}

// Exists reports whether jobId is still tracked by the registry, for
// callers (like the cancel handler) that need to distinguish "unknown job"
// from "already cancelled" — both of which make Cancel return false.
func (r *Registry) Exists(jobID string) bool {
	return r.get(jobID) != nil
}

func (r *Registry) get(jobID string) *job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[jobID]
}
