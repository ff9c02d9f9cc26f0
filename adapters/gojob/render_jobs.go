package gojob

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/render"
)

var renderKeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("renderlink:render-jobs"))

// NewRenderJob packs bag into a queueable job. The idempotency key is derived
// from the canonical query, so equivalent bags share a key.
func NewRenderJob(canonicalizer params.Canonicalizer, bag *params.Bag, deadline time.Duration) (*core.RenderJob, error) {
	query, err := canonicalizer.Canonicalize(bag)
	if err != nil {
		return nil, err
	}
	wire, err := canonicalizer.Wire(bag)
	if err != nil {
		return nil, err
	}
	format := params.FormatOf(bag, string(params.FormatPNG))
	return &core.RenderJob{
		Params:         wire,
		Format:         format,
		Deadline:       deadline,
		IdempotencyKey: uuid.NewSHA1(renderKeyNamespace, []byte(format+"?"+query.String())).String(),
	}, nil
}

// RenderJobBag rebuilds the parameter bag carried by renderJob.
func RenderJobBag(renderJob *core.RenderJob) (*params.Bag, error) {
	if renderJob == nil {
		return nil, core.UsageError(ErrInvalidRenderMessage, "gojob: render job is required", nil)
	}
	names := make([]string, 0, len(renderJob.Params))
	for name := range renderJob.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	bag := params.NewBag()
	for _, name := range names {
		value, err := valueFromWire(renderJob.Params[name])
		if err != nil {
			return nil, core.UsageError(fmt.Errorf("%w: %s: %w", ErrInvalidRenderMessage, name, err), "gojob: render job has an unsupported parameter", map[string]any{
				"parameter": name,
			})
		}
		bag.Set(name, value)
	}
	if format := strings.TrimSpace(renderJob.Format); format != "" {
		bag.Set(params.FormatParameter, params.Enum(format))
	}
	return bag, nil
}

func valueFromWire(value any) (params.Value, error) {
	switch typed := value.(type) {
	case bool:
		return params.Bool(typed), nil
	case string:
		return params.String(typed), nil
	case []string:
		return params.List(typed...), nil
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return params.Value{}, fmt.Errorf("list item %T", item)
			}
			items = append(items, text)
		}
		return params.List(items...), nil
	case float64:
		if whole, ok := wholeNumber(typed); ok {
			return params.Int(whole), nil
		}
		return params.Float(typed), nil
	case float32:
		return valueFromWire(float64(typed))
	}
	if whole, ok := wholeNumber(value); ok {
		return params.Int(whole), nil
	}
	return params.Value{}, fmt.Errorf("type %T", value)
}

// RenderEnqueuer queues render requests for a RenderWorker.
type RenderEnqueuer struct {
	Queue         core.RenderJobQueue
	Canonicalizer params.Canonicalizer
}

func (e RenderEnqueuer) EnqueueRender(ctx context.Context, bag *params.Bag, deadline time.Duration) (*core.RenderJob, error) {
	if e.Queue == nil {
		return nil, fmt.Errorf("gojob: render queue is not configured")
	}
	renderJob, err := NewRenderJob(e.Canonicalizer, bag, deadline)
	if err != nil {
		return nil, err
	}
	if err := e.Queue.Enqueue(ctx, renderJob); err != nil {
		return nil, core.TransportFailure(err, "gojob: enqueue render", map[string]any{"idempotency_key": renderJob.IdempotencyKey})
	}
	return renderJob, nil
}

type RenderRunner interface {
	RenderAndWait(ctx context.Context, bag *params.Bag, deadline time.Duration) (core.RenderResult, *render.Job, error)
}

// ResultHandler receives every completed render. Its error is treated like a
// render failure.
type ResultHandler func(ctx context.Context, renderJob *core.RenderJob, result core.RenderResult, job *render.Job) error

// RenderWorker runs queued renders one delivery at a time. Timeouts and
// transport failures are requeued with backoff; everything else is
// dead-lettered.
type RenderWorker struct {
	Source   core.RenderJobSource
	Runner   RenderRunner
	Hook     core.RenderJobHook
	OnResult ResultHandler
	Policy   RetryPolicy
	Now      func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewRenderWorker(source core.RenderJobSource, runner RenderRunner) *RenderWorker {
	return &RenderWorker{
		Source: source,
		Runner: runner,
		Policy: DefaultRetryPolicy(),
	}
}

// ProcessNext pulls and processes one delivery.
func (w *RenderWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.Source == nil {
		return fmt.Errorf("gojob: render source is not configured")
	}
	delivery, err := w.Source.Next(ctx)
	if err != nil {
		return err
	}
	return w.Process(ctx, delivery)
}

// Run processes deliveries until ctx is done or the source fails. Render
// failures are handed back to the queue and reported through the hook.
func (w *RenderWorker) Run(ctx context.Context) error {
	if w == nil || w.Source == nil {
		return fmt.Errorf("gojob: render source is not configured")
	}
	for ctx.Err() == nil {
		delivery, err := w.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = w.Process(ctx, delivery)
	}
	return nil
}

func (w *RenderWorker) Process(ctx context.Context, delivery core.RenderJobDelivery) error {
	if w == nil || w.Runner == nil {
		return fmt.Errorf("gojob: render runner is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	renderJob, err := delivery.Job()
	key := deliveryKey(renderJob)
	attempt := w.nextAttempt(key)
	event := core.RenderJobEvent{Job: renderJob, Attempt: attempt, StartedAt: w.now()}
	w.hook().OnStart(ctx, event)

	if err == nil {
		err = w.run(ctx, renderJob)
	}
	event.Duration = w.now().Sub(event.StartedAt)

	if err == nil {
		w.forget(key)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			return ackErr
		}
		w.hook().OnSuccess(ctx, event)
		return nil
	}

	event.Err = err
	retry := core.RenderJobRetry{Reason: err.Error()}
	if Retryable(err) {
		retry.Requeue = true
		retry.Delay = w.Policy.Backoff(attempt)
		event.Delay = retry.Delay
	} else {
		retry.DeadLetter = true
	}
	if retryErr := retryDelivery(ctx, delivery, retry, attempt); retryErr != nil {
		return errors.Join(err, retryErr)
	}
	if retry.Requeue {
		w.hook().OnRetry(ctx, event)
	} else {
		w.forget(key)
		w.hook().OnFailure(ctx, event)
	}
	return err
}

func (w *RenderWorker) run(ctx context.Context, renderJob *core.RenderJob) error {
	bag, err := RenderJobBag(renderJob)
	if err != nil {
		return err
	}
	result, job, err := w.Runner.RenderAndWait(ctx, bag, renderJob.Deadline)
	if err != nil {
		return err
	}
	if w.OnResult != nil {
		return w.OnResult(ctx, renderJob, result, job)
	}
	return nil
}

// Retryable reports whether a failed render may succeed on redelivery.
func Retryable(err error) bool {
	return core.IsTimeout(err) || core.TextCode(err) == core.ErrorTransportFailure
}

type attemptRetrier interface {
	RetryAttempt(ctx context.Context, retry core.RenderJobRetry, attempt int) error
}

func retryDelivery(ctx context.Context, delivery core.RenderJobDelivery, retry core.RenderJobRetry, attempt int) error {
	if bounded, ok := delivery.(attemptRetrier); ok {
		return bounded.RetryAttempt(ctx, retry, attempt)
	}
	return delivery.Retry(ctx, retry)
}

func (w *RenderWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempts == nil {
		w.attempts = map[string]int{}
	}
	w.attempts[key]++
	return w.attempts[key]
}

func (w *RenderWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *RenderWorker) hook() core.RenderJobHook {
	if w.Hook == nil {
		return nopHook{}
	}
	return w.Hook
}

func (w *RenderWorker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

func deliveryKey(renderJob *core.RenderJob) string {
	if renderJob == nil {
		return ""
	}
	return strings.TrimSpace(renderJob.IdempotencyKey)
}

// ObserverHook logs worker events and records them as render_job metrics.
type ObserverHook struct {
	Observer core.Observer
}

func (h ObserverHook) OnStart(ctx context.Context, event core.RenderJobEvent) {
	h.Observer.Debug(ctx, "render job started", eventFields(event))
}

func (h ObserverHook) OnSuccess(ctx context.Context, event core.RenderJobEvent) {
	h.Observer.Observe(ctx, event.StartedAt, "render_job", nil, eventFields(event))
}

func (h ObserverHook) OnFailure(ctx context.Context, event core.RenderJobEvent) {
	h.Observer.Observe(ctx, event.StartedAt, "render_job", event.Err, eventFields(event))
}

func (h ObserverHook) OnRetry(ctx context.Context, event core.RenderJobEvent) {
	fields := eventFields(event)
	fields["retry_delay_ms"] = event.Delay.Milliseconds()
	h.Observer.Observe(ctx, event.StartedAt, "render_job_retry", event.Err, fields)
}

func eventFields(event core.RenderJobEvent) map[string]any {
	fields := map[string]any{"attempt": event.Attempt}
	if event.Job != nil {
		fields["format"] = event.Job.Format
		fields["idempotency_key"] = event.Job.IdempotencyKey
		fields["deadline_ms"] = event.Job.Deadline.Milliseconds()
	}
	return fields
}

type nopHook struct{}

func (nopHook) OnStart(context.Context, core.RenderJobEvent)   {}
func (nopHook) OnSuccess(context.Context, core.RenderJobEvent) {}
func (nopHook) OnFailure(context.Context, core.RenderJobEvent) {}
func (nopHook) OnRetry(context.Context, core.RenderJobEvent)   {}

var (
	_ core.RenderJobHook = ObserverHook{}
	_ core.RenderJobHook = nopHook{}
	_ attemptRetrier     = (*Delivery)(nil)
)
