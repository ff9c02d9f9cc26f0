package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/signing"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusPolling   Status = "polling"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

var allowedTransitions = map[Status][]Status{
	StatusCreated: {StatusPolling, StatusTimedOut},
	StatusPolling: {StatusSucceeded, StatusFailed, StatusTimedOut},
}

// Job tracks one asynchronous render. Only the coordinator moves it between
// states; terminal states are final.
type Job struct {
	mu          sync.RWMutex
	id          string
	statusURL   string
	submittedAt time.Time
	link        signing.Link
	status      Status
	result      *core.RenderResult
	failure     *core.RenderErrorDetail
}

// NewJob tracks a render that was submitted elsewhere, for example by a
// previous process.
func NewJob(id, statusURL string, submittedAt time.Time) *Job {
	return &Job{
		id:          id,
		statusURL:   statusURL,
		submittedAt: submittedAt.UTC(),
		status:      StatusCreated,
	}
}

func (j *Job) ID() string { return j.id }

func (j *Job) StatusURL() string { return j.statusURL }

func (j *Job) SubmittedAt() time.Time { return j.submittedAt }

// Link is the render link the job was submitted for. It is empty for jobs
// built with NewJob.
func (j *Job) Link() signing.Link { return j.link }

func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *Job) Result() (core.RenderResult, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return core.RenderResult{}, false
	}
	return *j.result, true
}

func (j *Job) Failure() (core.RenderErrorDetail, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.failure == nil {
		return core.RenderErrorDetail{}, false
	}
	return *j.failure, true
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	snapshot := Snapshot{
		RenderID:  j.id,
		StatusURL: j.statusURL,
		Status:    j.status,
	}
	if j.result != nil {
		result := *j.result
		snapshot.Result = &result
	}
	if j.failure != nil {
		failure := *j.failure
		snapshot.Error = &failure
	}
	return snapshot
}

func (j *Job) transition(to Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(to)
}

func (j *Job) transitionLocked(to Status) error {
	if j.status == to && !to.Terminal() {
		return nil
	}
	for _, allowed := range allowedTransitions[j.status] {
		if allowed == to {
			j.status = to
			return nil
		}
	}
	return core.UsageError(ErrInvalidTransition, fmt.Sprintf("render: job %s cannot move from %s to %s", j.id, j.status, to), map[string]any{
		"render_id": j.id,
		"from":      string(j.status),
		"to":        string(to),
	})
}

func (j *Job) succeed(result core.RenderResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusSucceeded); err != nil {
		return err
	}
	j.result = &result
	return nil
}

func (j *Job) fail(detail core.RenderErrorDetail) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.failure = &detail
	return nil
}

// Snapshot is a point-in-time view of a render.
type Snapshot struct {
	RenderID  string                  `json:"renderId"`
	StatusURL string                  `json:"statusUrl,omitempty"`
	Status    Status                  `json:"status"`
	Result    *core.RenderResult      `json:"result,omitempty"`
	Error     *core.RenderErrorDetail `json:"error,omitempty"`
}
