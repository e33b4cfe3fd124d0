package api

import (
	"context"
	"sync"
	"time"

	"BreakoutScanner/internal/model"
)

// JobStatus is the lifecycle of an asynchronous scan.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// job tracks one asynchronous scan. Fields are guarded by mu; changed is closed and
// replaced on every update so watchers can wait without polling.
type job struct {
	mu        sync.Mutex
	id        string
	status    JobStatus
	progress  float64
	batch     *model.ScanBatch
	errKind   model.ErrorKind
	errMsg    string
	createdAt time.Time
	cancel    context.CancelFunc
	changed   chan struct{}
}

// JobView is the JSON shape of a job.
type JobView struct {
	ID        string           `json:"id"`
	Status    JobStatus        `json:"status"`
	Progress  float64          `json:"progress"`
	ErrorKind model.ErrorKind  `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Batch     *model.ScanBatch `json:"batch,omitempty"`
}

func newJob(id string, cancel context.CancelFunc) *job {
	return &job{
		id:        id,
		status:    JobRunning,
		createdAt: time.Now(),
		cancel:    cancel,
		changed:   make(chan struct{}),
	}
}

func (j *job) notifyLocked() {
	close(j.changed)
	j.changed = make(chan struct{})
}

func (j *job) setProgress(p float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobRunning || p < j.progress {
		return
	}
	j.progress = p
	j.notifyLocked()
}

func (j *job) finish(batch *model.ScanBatch, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.batch = batch
	switch {
	case err == nil:
		j.status = JobDone
		j.progress = 1
	case batch != nil:
		// cancelled with a partial batch
		j.status = JobCancelled
		j.errMsg = err.Error()
	default:
		j.status = JobFailed
		j.errKind = model.KindOf(err)
		j.errMsg = err.Error()
	}
	j.notifyLocked()
}

// watch returns a snapshot and a channel closed at the next change.
func (j *job) watch() (JobView, <-chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.viewLocked(true), j.changed
}

func (j *job) view(withBatch bool) JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.viewLocked(withBatch)
}

func (j *job) viewLocked(withBatch bool) JobView {
	v := JobView{
		ID:        j.id,
		Status:    j.status,
		Progress:  j.progress,
		ErrorKind: j.errKind,
		Error:     j.errMsg,
		CreatedAt: j.createdAt,
	}
	if withBatch {
		v.Batch = j.batch
	}
	return v
}

func (j *job) result() (*model.ScanBatch, JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.batch, j.status
}

// jobStore keeps the most recent jobs in memory, evicting the oldest finished ones.
type jobStore struct {
	mu    sync.RWMutex
	max   int
	order []string
	jobs  map[string]*job
}

func newJobStore(size int) *jobStore {
	if size <= 0 {
		size = 50
	}
	return &jobStore{max: size, jobs: make(map[string]*job)}
}

func (s *jobStore) add(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.id] = j
	s.order = append(s.order, j.id)
	for len(s.order) > s.max {
		evicted := false
		for i, id := range s.order {
			if old := s.jobs[id]; old != nil {
				if _, st := old.result(); st == JobRunning {
					continue
				}
			}
			delete(s.jobs, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

func (s *jobStore) get(id string) (*job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *jobStore) list() []JobView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobView, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.jobs[s.order[i]].view(false))
	}
	return out
}

func (s *jobStore) cancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		j.cancel()
	}
}
