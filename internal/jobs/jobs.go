// Package jobs tracks asynchronous tool invocations announced by the
// engine. Entries stay visible for a short retention window after they
// finish, and a reaper bounds jobs whose completion event never arrives.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status of a tracked job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Defaults: terminal entries linger ~4s for presentation; a running job
// with no completion after 5 minutes is declared failed, matching the
// engine's stale-future horizon.
const (
	DefaultRetention   = 4 * time.Second
	DefaultOrphanAfter = 5 * time.Minute
)

// Job is one tracked invocation.
type Job struct {
	ID          string
	Tool        string
	Status      Status
	Output      string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Terminal reports whether the job reached a final status.
func (j Job) Terminal() bool { return j.Status != StatusRunning }

// Tracker holds the active job set. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	logger      *slog.Logger
	retention   time.Duration
	orphanAfter time.Duration
	jobs        map[string]*Job
	order       []string
	notify      func([]Job)
}

// NewTracker builds a tracker. Zero durations select the defaults.
func NewTracker(logger *slog.Logger, retention, orphanAfter time.Duration) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if orphanAfter <= 0 {
		orphanAfter = DefaultOrphanAfter
	}
	return &Tracker{
		logger:      logger,
		retention:   retention,
		orphanAfter: orphanAfter,
		jobs:        make(map[string]*Job),
	}
}

// SetNotify registers a callback invoked with a fresh snapshot whenever
// the job set changes. The callback runs outside the tracker lock.
func (t *Tracker) SetNotify(fn func([]Job)) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

// Start records a job entering the running state. A duplicate start for a
// live id is logged and ignored.
func (t *Tracker) Start(id, tool string) {
	t.mu.Lock()
	if _, exists := t.jobs[id]; exists {
		t.mu.Unlock()
		t.logger.Warn("duplicate background job start", slog.String("job_id", id))
		return
	}
	t.jobs[id] = &Job{ID: id, Tool: tool, Status: StatusRunning, StartedAt: time.Now()}
	t.order = append(t.order, id)
	t.mu.Unlock()
	t.changed()
}

// Complete transitions a running job to a terminal status and schedules
// its removal after the retention window. Unknown ids (late or duplicate
// completions) are logged and ignored.
func (t *Tracker) Complete(id string, status Status, output string) bool {
	if status != StatusCompleted && status != StatusFailed {
		status = StatusFailed
	}
	t.mu.Lock()
	j, ok := t.jobs[id]
	if !ok || j.Terminal() {
		t.mu.Unlock()
		t.logger.Warn("completion for unknown or finished job", slog.String("job_id", id))
		return false
	}
	j.Status = status
	j.Output = output
	j.CompletedAt = time.Now()
	t.mu.Unlock()

	t.changed()
	time.AfterFunc(t.retention, func() { t.remove(id) })
	return true
}

// Active returns the visible job set in arrival order: everything still
// running plus terminal entries inside their retention window.
func (t *Tracker) Active() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Job, 0, len(t.order))
	for _, id := range t.order {
		if j, ok := t.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out
}

// Reap fails running jobs older than the orphan horizon. Returns how many
// were reaped.
func (t *Tracker) Reap(now time.Time) int {
	t.mu.Lock()
	var reaped []string
	for id, j := range t.jobs {
		if j.Status == StatusRunning && now.Sub(j.StartedAt) > t.orphanAfter {
			j.Status = StatusFailed
			j.Output = "no completion event before timeout"
			j.CompletedAt = now
			reaped = append(reaped, id)
		}
	}
	t.mu.Unlock()

	for _, id := range reaped {
		t.logger.Warn("reaped orphaned background job", slog.String("job_id", id))
		id := id
		time.AfterFunc(t.retention, func() { t.remove(id) })
	}
	if len(reaped) > 0 {
		t.changed()
	}
	return len(reaped)
}

// Run ticks the reaper until the context ends.
func (t *Tracker) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.Reap(now)
		}
	}
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	j, ok := t.jobs[id]
	if !ok || !j.Terminal() {
		t.mu.Unlock()
		return
	}
	delete(t.jobs, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	t.changed()
}

func (t *Tracker) changed() {
	t.mu.Lock()
	fn := t.notify
	t.mu.Unlock()
	if fn != nil {
		fn(t.Active())
	}
}
