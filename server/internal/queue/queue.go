package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
)

// Kind classifies a job.
type Kind string

const (
	KindUpload           Kind = "UPLOAD"
	KindImageInference   Kind = "IMAGE_INFERENCE"
	KindReportGeneration Kind = "REPORT_GENERATION"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Progress steps reported while a task runs.
const (
	startProgress = 10
	progressStep  = 10
	progressCap   = 90
	doneProgress  = 100
)

// Job is a snapshot of one queued task.
type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is the work a job performs. It should return promptly once ctx is
// cancelled.
type Task func(ctx context.Context) (any, error)

// Queue runs every added task in its own goroutine. A single mutex owns the
// job list; subscribers always receive copies.
type Queue struct {
	tick      time.Duration
	retention time.Duration
	metrics   *metrics.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	jobs      []Job // newest first
	listeners map[int]func([]Job)
	nextSub   int
	closed    bool
}

// New creates a Queue. tick is the progress interval; completed jobs are
// removed after retention (0 removes them at once).
func New(tick, retention time.Duration, reg *metrics.Registry) *Queue {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		tick:      tick,
		retention: retention,
		metrics:   reg,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func([]Job)),
	}
}

// Add inserts a pending job at the top of the list and starts task. It
// returns the job ID, or "" if the queue is closed.
func (q *Queue) Add(kind Kind, title string, task Task) string {
	job := Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ""
	}
	q.jobs = append([]Job{job}, q.jobs...)
	q.wg.Add(1)
	q.notifyLocked()
	q.mu.Unlock()

	slog.Info("queue: job added", "id", job.ID, "kind", kind, "title", title)
	go q.process(job.ID, kind, task)
	return job.ID
}

func (q *Queue) process(id string, kind Kind, task Task) {
	defer q.wg.Done()

	q.update(id, func(j *Job) {
		j.Status = StatusProcessing
		j.Progress = startProgress
	})

	done := make(chan struct{})
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		ticker := time.NewTicker(q.tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				q.update(id, func(j *Job) {
					if j.Status == StatusProcessing && j.Progress < progressCap {
						j.Progress += progressStep
					}
				})
			}
		}
	}()

	result, err := task(q.ctx)
	close(done)
	progressWG.Wait()

	if err != nil {
		q.update(id, func(j *Job) {
			j.Status = StatusFailed
			j.Progress = doneProgress
			j.Error = err.Error()
		})
		q.metrics.Inc(metrics.JobsTotal, "kind", string(kind), "status", string(StatusFailed))
		slog.Error("queue: job failed", "id", id, "kind", kind, "err", err)
		return
	}

	q.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = doneProgress
		j.Result = result
	})
	q.metrics.Inc(metrics.JobsTotal, "kind", string(kind), "status", string(StatusCompleted))
	slog.Info("queue: job completed", "id", id, "kind", kind)

	if q.retention > 0 {
		timer := time.NewTimer(q.retention)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			return
		}
	}
	q.remove(id)
}

// update applies fn to the job with the given ID and notifies subscribers.
func (q *Queue) update(id string, fn func(*Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.jobs {
		if q.jobs[i].ID == id {
			next := append([]Job(nil), q.jobs...)
			fn(&next[i])
			q.jobs = next
			q.notifyLocked()
			return
		}
	}
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		if j.ID != id {
			next = append(next, j)
		}
	}
	q.jobs = next
	q.notifyLocked()
}

// Subscribe registers fn, calls it at once with the current list, and again
// with a fresh copy after every change. fn runs under the queue's lock and
// must not call back into the Queue. The returned func unsubscribes.
func (q *Queue) Subscribe(fn func([]Job)) (cancel func()) {
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.listeners[id] = fn
	fn(append([]Job{}, q.jobs...))
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.listeners, id)
			q.mu.Unlock()
		})
	}
}

func (q *Queue) notifyLocked() {
	for _, fn := range q.listeners {
		fn(append([]Job{}, q.jobs...))
	}
}

// List returns a copy of the jobs, newest first.
func (q *Queue) List() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job{}, q.jobs...)
}

// Get returns the job with the given ID.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// Close cancels running tasks and waits for every job goroutine to exit.
// Jobs added after Close are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}
