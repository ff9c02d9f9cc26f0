package gojob

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-renderlink/core"
)

const (
	JobIDRender      = "renderlink.render"
	ScriptPathRender = "renderlink/render"

	DedupPolicyDrop = "drop"

	ParamParams     = "params"
	ParamFormat     = "format"
	ParamDeadlineMS = "deadline_ms"
)

var ErrInvalidRenderMessage = errors.New("gojob: invalid render message")

// RetryPolicy bounds how often and how late a failed render is redelivered.
// Delays double per attempt starting at BaseDelay.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       2 * time.Second,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	}
}

// Backoff returns the redelivery delay for the given 1-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Apply clamps a retry request to the policy. Once MaxAttempts is reached the
// delivery is no longer requeued.
func (p RetryPolicy) Apply(retry core.RenderJobRetry, attempt int) core.RenderJobRetry {
	out := retry
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage wraps a render job in the go-job envelope.
func ToExecutionMessage(renderJob *core.RenderJob) *job.ExecutionMessage {
	if renderJob == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:      JobIDRender,
		ScriptPath: ScriptPathRender,
		Parameters: map[string]any{
			ParamParams:     copyAnyMap(renderJob.Params),
			ParamFormat:     strings.TrimSpace(renderJob.Format),
			ParamDeadlineMS: renderJob.Deadline.Milliseconds(),
		},
		IdempotencyKey: strings.TrimSpace(renderJob.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(DedupPolicyDrop),
	}
}

// FromExecutionMessage unwraps a render job. Parameters may have gone through
// a JSON round trip, so numbers can arrive as float64.
func FromExecutionMessage(msg *job.ExecutionMessage) (*core.RenderJob, error) {
	if msg == nil {
		return nil, core.UsageError(ErrInvalidRenderMessage, "gojob: render message is required", nil)
	}
	if strings.TrimSpace(msg.JobID) != JobIDRender {
		return nil, core.UsageError(ErrInvalidRenderMessage, fmt.Sprintf("gojob: unexpected job id %q", msg.JobID), map[string]any{
			"job_id": msg.JobID,
		})
	}
	raw, ok := msg.Parameters[ParamParams].(map[string]any)
	if !ok {
		return nil, core.UsageError(ErrInvalidRenderMessage, "gojob: render message has no parameters", nil)
	}
	deadlineMS, ok := wholeNumber(msg.Parameters[ParamDeadlineMS])
	if !ok {
		return nil, core.UsageError(ErrInvalidRenderMessage, "gojob: render message has no deadline", nil)
	}
	format, _ := msg.Parameters[ParamFormat].(string)
	return &core.RenderJob{
		Params:         copyAnyMap(raw),
		Format:         strings.TrimSpace(format),
		Deadline:       time.Duration(deadlineMS) * time.Millisecond,
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}, nil
}

func toNackOptions(retry core.RenderJobRetry) queue.NackOptions {
	return queue.NackOptions{
		Delay:      retry.Delay,
		Requeue:    retry.Requeue,
		DeadLetter: retry.DeadLetter,
		Reason:     retry.Reason,
	}
}

// Queue publishes render jobs on a go-job enqueuer.
type Queue struct {
	enqueuer queue.Enqueuer
}

func NewQueue(enqueuer queue.Enqueuer) *Queue {
	return &Queue{enqueuer: enqueuer}
}

func (q *Queue) Enqueue(ctx context.Context, renderJob *core.RenderJob) error {
	if q == nil || q.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if renderJob == nil {
		return core.UsageError(ErrInvalidRenderMessage, "gojob: render job is required", nil)
	}
	return q.enqueuer.Enqueue(ctx, ToExecutionMessage(renderJob))
}

// Delivery is a go-job delivery seen as a render job.
type Delivery struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDelivery(delivery queue.Delivery, policy RetryPolicy) *Delivery {
	return &Delivery{delivery: delivery, policy: policy}
}

func (d *Delivery) Job() (*core.RenderJob, error) {
	if d == nil || d.delivery == nil {
		return nil, fmt.Errorf("gojob: delivery is not configured")
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *Delivery) Retry(ctx context.Context, retry core.RenderJobRetry) error {
	return d.RetryAttempt(ctx, retry, 0)
}

// RetryAttempt applies the retry policy for the given attempt before nacking.
func (d *Delivery) RetryAttempt(ctx context.Context, retry core.RenderJobRetry, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, toNackOptions(d.policy.Apply(retry, attempt)))
}

// Source pulls render deliveries from a go-job dequeuer.
type Source struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewSource(dequeuer queue.Dequeuer, policy RetryPolicy) *Source {
	return &Source{dequeuer: dequeuer, policy: policy}
}

func (s *Source) Next(ctx context.Context) (core.RenderJobDelivery, error) {
	if s == nil || s.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := s.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDelivery(delivery, s.policy), nil
}

// WorkerHook forwards go-job worker events to a render job hook. Events for
// messages that are not render jobs carry a nil Job.
type WorkerHook struct {
	hook core.RenderJobHook
}

func NewWorkerHook(hook core.RenderJobHook) *WorkerHook {
	return &WorkerHook{hook: hook}
}

func (h *WorkerHook) OnStart(ctx context.Context, event worker.Event) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnStart(ctx, renderJobEvent(event))
}

func (h *WorkerHook) OnSuccess(ctx context.Context, event worker.Event) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnSuccess(ctx, renderJobEvent(event))
}

func (h *WorkerHook) OnFailure(ctx context.Context, event worker.Event) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnFailure(ctx, renderJobEvent(event))
}

func (h *WorkerHook) OnRetry(ctx context.Context, event worker.Event) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnRetry(ctx, renderJobEvent(event))
}

func renderJobEvent(event worker.Event) core.RenderJobEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	renderJob, _ := FromExecutionMessage(message)
	return core.RenderJobEvent{
		Job:       renderJob,
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func wholeNumber(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		if typed != math.Trunc(typed) || math.IsInf(typed, 0) || math.IsNaN(typed) {
			return 0, false
		}
		return int64(typed), true
	default:
		return 0, false
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.RenderJobQueue    = (*Queue)(nil)
	_ core.RenderJobDelivery = (*Delivery)(nil)
	_ core.RenderJobSource   = (*Source)(nil)
	_ worker.Hook            = (*WorkerHook)(nil)
)
