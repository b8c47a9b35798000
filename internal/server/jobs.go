package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/eventbus"
)

// JobStatus is the lifecycle state of an async run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ErrJobNotFound is returned for unknown or already cleaned up job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobView is the externally visible state of a job.
type JobView struct {
	ID         string              `json:"id"`
	Question   string              `json:"question"`
	Status     JobStatus           `json:"status"`
	StartTime  time.Time           `json:"start_time"`
	Duration   time.Duration       `json:"duration"`
	IsComplete bool                `json:"is_complete"`
	Error      string              `json:"error,omitempty"`
	Response   *taskweave.Response `json:"response,omitempty"`
}

type job struct {
	id       string
	question string
	status   JobStatus
	start    time.Time
	end      time.Time
	resp     *taskweave.Response
	err      error
	cancel   context.CancelFunc
}

func (j *job) view() JobView {
	v := JobView{
		ID:        j.id,
		Question:  j.question,
		Status:    j.status,
		StartTime: j.start,
		Response:  j.resp,
	}
	end := j.end
	if end.IsZero() {
		end = time.Now()
	} else {
		v.IsComplete = true
	}
	v.Duration = end.Sub(j.start)
	if j.err != nil {
		v.Error = j.err.Error()
	}
	return v
}

// RunFunc executes one question.
type RunFunc func(ctx context.Context, question string) (*taskweave.Response, error)

// Jobs tracks async runs by ID.
type Jobs struct {
	mu     sync.RWMutex
	jobs   map[string]*job
	bus    eventbus.EventBus
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewJobs creates an empty job registry. bus may be nil.
func NewJobs(bus eventbus.EventBus, logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{jobs: make(map[string]*job), bus: bus, logger: logger}
}

// Submit starts run in the background and returns the new job's ID. The job
// is detached from the caller's context; use Cancel to stop it.
func (s *Jobs) Submit(question string, run RunFunc) string {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:       uuid.NewString(),
		question: question,
		status:   JobRunning,
		start:    time.Now(),
		cancel:   cancel,
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()
	s.publish(eventbus.EventJobSubmitted, eventbus.JobPayload{JobID: j.id, Question: question, Status: string(JobRunning)})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		resp, err := run(ctx, question)
		s.finish(j, resp, err)
	}()
	return j.id
}

func (s *Jobs) finish(j *job, resp *taskweave.Response, err error) {
	s.mu.Lock()
	if j.status == JobCancelled {
		s.mu.Unlock()
		return
	}
	j.end = time.Now()
	j.resp = resp
	j.err = err
	j.status = JobCompleted
	if err != nil {
		j.status = JobFailed
	}
	payload := eventbus.JobPayload{JobID: j.id, Question: j.question, Status: string(j.status), Duration: j.end.Sub(j.start), Err: err}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("async run failed", "job_id", j.id, "error", err)
	}
	s.publish(eventbus.EventJobFinished, payload)
}

// Get returns the current view of a job.
func (s *Jobs) Get(id string) (JobView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return JobView{}, ErrJobNotFound
	}
	return j.view(), nil
}

// List returns the status of every tracked job.
func (s *Jobs) List() map[string]JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]JobStatus, len(s.jobs))
	for id, j := range s.jobs {
		out[id] = j.status
	}
	return out
}

// Cancel stops a running job. It reports false when the job already finished.
func (s *Jobs) Cancel(id string) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false, ErrJobNotFound
	}
	if j.status != JobRunning {
		s.mu.Unlock()
		return false, nil
	}
	j.cancel()
	j.status = JobCancelled
	j.end = time.Now()
	j.err = errors.New("run cancelled by user")
	payload := eventbus.JobPayload{JobID: j.id, Question: j.question, Status: string(JobCancelled), Duration: j.end.Sub(j.start), Err: j.err}
	s.mu.Unlock()

	s.publish(eventbus.EventJobFinished, payload)
	return true, nil
}

// Cleanup drops finished jobs that ended more than olderThan ago.
func (s *Jobs) Cleanup(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for id, j := range s.jobs {
		if j.status != JobRunning && now.Sub(j.end) > olderThan {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Wait blocks until every background run has returned.
func (s *Jobs) Wait() {
	s.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (s *Jobs) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cancels every running job and returns how many were cancelled.
func (s *Jobs) CancelAll() int {
	s.mu.RLock()
	ids := make([]string, 0, len(s.jobs))
	for id, j := range s.jobs {
		if j.status == JobRunning {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if ok, _ := s.Cancel(id); ok {
			n++
		}
	}
	return n
}

func (s *Jobs) publish(t eventbus.EventType, payload eventbus.JobPayload) {
	if s.bus == nil {
		return
	}
	evt := eventbus.NewEvent(t, payload, "server.Jobs", nil)
	if err := s.bus.Publish(context.Background(), evt); err != nil {
		s.logger.Debug("job event dropped", "type", t, "error", err)
	}
}
