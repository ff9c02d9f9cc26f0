package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/signing"
)

const (
	remoteCreated   = "created"
	remotePending   = "pending"
	remoteSucceeded = "succeeded"
	remoteFailed    = "failed"
)

// Coordinator drives submit, poll and terminal state for async renders.
// It holds read-only configuration and is safe for concurrent use across
// jobs; each AwaitCompletion call runs its own deadline clock.
type Coordinator struct {
	config    core.Config
	signer    signing.LinkSigner
	transport core.TransportAdapter
	clock     core.Clock
	observer  core.Observer
	validator *params.Validator
}

type Option func(*Coordinator)

func WithClock(clock core.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithObserver(observer core.Observer) Option {
	return func(c *Coordinator) {
		c.observer = observer
	}
}

// WithValidator checks every submitted bag against a rule table.
func WithValidator(validator params.Validator) Option {
	return func(c *Coordinator) {
		c.validator = &validator
	}
}

func NewCoordinator(
	config core.Config,
	signer signing.LinkSigner,
	transport core.TransportAdapter,
	options ...Option,
) (*Coordinator, error) {
	if transport == nil {
		return nil, core.UsageError(nil, "render: transport is required", nil)
	}
	c := &Coordinator{
		config:    config,
		signer:    signer,
		transport: transport,
		clock:     core.SystemClock{},
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type acceptance struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	RenderID  string `json:"renderId"`
	StatusURL string `json:"statusUrl"`
}

func (a acceptance) renderID() string {
	if id := strings.TrimSpace(a.RenderID); id != "" {
		return id
	}
	return strings.TrimSpace(a.ID)
}

type statusPayload struct {
	acceptance
	core.RenderResult
	Error *core.RenderErrorDetail `json:"error"`
}

// Submit issues the async render request for bag and returns a Created job.
func (c *Coordinator) Submit(ctx context.Context, bag *params.Bag) (job *Job, err error) {
	startedAt := time.Now().UTC()
	format := params.FormatOf(bag, string(params.FormatPNG))
	fields := map[string]any{"format": format}
	defer func() {
		if job != nil {
			fields["render_id"] = job.ID()
		}
		c.observer.Observe(ctx, startedAt, "render_submit", err, fields)
	}()

	if strings.TrimSpace(c.config.APISecret) == "" {
		return nil, core.UsageError(ErrMissingSecret, "render: api secret is required for async renders", nil)
	}
	if c.validator != nil {
		if err := c.validator.Validate(bag); err != nil {
			return nil, err
		}
	}
	link, err := c.signer.Link(bag, format)
	if err != nil {
		return nil, err
	}
	wire, err := c.signer.Canonicalizer.Wire(bag)
	if err != nil {
		return nil, err
	}
	wire[params.FormatParameter] = format
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, core.InternalError(err, "render: encode submission")
	}

	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:               http.MethodPost,
		URL:                  c.config.NormalizedBaseURL() + "/v1/render/async",
		Headers:              c.authHeaders(),
		Body:                 body,
		Timeout:              c.config.HTTPTimeout(),
		MaxResponseBodyBytes: c.config.HTTP.MaxResponseBodyBytes,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, core.DecodeAPIError(res.StatusCode, res.Body)
	}

	var accepted acceptance
	if err := json.Unmarshal(res.Body, &accepted); err != nil {
		return nil, core.ProtocolError(err, "render: decode submission response", nil)
	}
	if accepted.renderID() == "" {
		return nil, core.ProtocolError(ErrMalformedResponse, "render: submission response has no render id", nil)
	}
	if status := strings.ToLower(strings.TrimSpace(accepted.Status)); status != remoteCreated && status != remotePending {
		return nil, core.ProtocolError(ErrUnexpectedStatus, fmt.Sprintf("render: submission returned status %q", accepted.Status), map[string]any{
			"render_id": accepted.renderID(),
		})
	}

	job = NewJob(accepted.renderID(), strings.TrimSpace(accepted.StatusURL), c.clock.Now())
	job.link = link
	return job, nil
}

// AwaitCompletion polls job until it reaches a terminal state or deadline
// elapses since submission. The deadline is checked against the configured
// bounds before any request is made.
func (c *Coordinator) AwaitCompletion(
	ctx context.Context,
	job *Job,
	deadline time.Duration,
	interval time.Duration,
) (result core.RenderResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"deadline_ms": deadline.Milliseconds()}
	polls := 0
	defer func() {
		fields["polls"] = polls
		if job != nil {
			fields["render_id"] = job.ID()
			fields["job_status"] = string(job.Status())
		}
		c.observer.Observe(ctx, startedAt, "render_await", err, fields)
	}()

	if err := c.CheckDeadline(deadline); err != nil {
		return core.RenderResult{}, err
	}
	if job == nil {
		return core.RenderResult{}, core.UsageError(ErrJobRequired, "render: job is required", nil)
	}
	if status := job.Status(); status.Terminal() {
		if result, ok := job.Result(); ok {
			return result, nil
		}
		return core.RenderResult{}, core.UsageError(ErrInvalidTransition, fmt.Sprintf("render: job %s is already %s", job.ID(), status), nil)
	}
	if interval <= 0 {
		interval = c.config.PollInterval()
	}

	for {
		elapsed := c.clock.Now().Sub(job.SubmittedAt())
		if elapsed >= deadline {
			return core.RenderResult{}, c.timeout(job, deadline, nil)
		}

		if err := job.transition(StatusPolling); err != nil {
			return core.RenderResult{}, err
		}
		polls++
		payload, err := c.query(ctx, job.ID(), job.StatusURL())
		if err != nil {
			return core.RenderResult{}, err
		}

		switch strings.ToLower(strings.TrimSpace(payload.Status)) {
		case remoteSucceeded:
			if err := job.succeed(payload.RenderResult); err != nil {
				return core.RenderResult{}, err
			}
			return payload.RenderResult, nil
		case remoteFailed:
			detail := core.RenderErrorDetail{Message: "render failed"}
			if payload.Error != nil {
				detail = *payload.Error
			}
			if err := job.fail(detail); err != nil {
				return core.RenderResult{}, err
			}
			return core.RenderResult{}, core.RenderFailedError(ErrRenderFailed, "render: "+detail.Message, map[string]any{
				"render_id": job.ID(),
				"code":      detail.Code,
			})
		case remotePending, remoteCreated:
		default:
			return core.RenderResult{}, core.ProtocolError(ErrUnexpectedStatus, fmt.Sprintf("render: status endpoint returned %q", payload.Status), map[string]any{
				"render_id": job.ID(),
			})
		}

		elapsed = c.clock.Now().Sub(job.SubmittedAt())
		if elapsed >= deadline {
			return core.RenderResult{}, c.timeout(job, deadline, nil)
		}
		wait := interval
		if remaining := deadline - elapsed; remaining < wait {
			wait = remaining
		}
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return core.RenderResult{}, c.timeout(job, deadline, err)
		}
	}
}

// RenderAndWait submits bag and waits for it with the configured interval.
func (c *Coordinator) RenderAndWait(ctx context.Context, bag *params.Bag, deadline time.Duration) (core.RenderResult, *Job, error) {
	if err := c.CheckDeadline(deadline); err != nil {
		return core.RenderResult{}, nil, err
	}
	job, err := c.Submit(ctx, bag)
	if err != nil {
		return core.RenderResult{}, nil, err
	}
	result, err := c.AwaitCompletion(ctx, job, deadline, c.config.PollInterval())
	return result, job, err
}

// Status queries the remote status of a render once, without tracking it.
func (c *Coordinator) Status(ctx context.Context, renderID string) (snapshot Snapshot, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		c.observer.Observe(ctx, startedAt, "render_status", err, map[string]any{"render_id": renderID})
	}()
	renderID = strings.TrimSpace(renderID)
	if renderID == "" {
		return Snapshot{}, core.UsageError(ErrJobRequired, "render: render id is required", nil)
	}
	payload, err := c.query(ctx, renderID, "")
	if err != nil {
		return Snapshot{}, err
	}
	status, ok := localStatus(payload.Status)
	if !ok {
		return Snapshot{}, core.ProtocolError(ErrUnexpectedStatus, fmt.Sprintf("render: status endpoint returned %q", payload.Status), map[string]any{
			"render_id": renderID,
		})
	}
	snapshot = Snapshot{
		RenderID:  renderID,
		StatusURL: payload.StatusURL,
		Status:    status,
		Error:     payload.Error,
	}
	if snapshot.Status == StatusSucceeded {
		result := payload.RenderResult
		snapshot.Result = &result
	}
	return snapshot, nil
}

// localStatus maps a remote status onto the job states. A pending render is
// reported as polling.
func localStatus(remote string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case remoteCreated:
		return StatusCreated, true
	case remotePending:
		return StatusPolling, true
	case remoteSucceeded:
		return StatusSucceeded, true
	case remoteFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// CheckDeadline rejects deadlines outside the configured bounds.
func (c *Coordinator) CheckDeadline(deadline time.Duration) error {
	minimum, maximum := c.config.TimeoutBounds()
	if deadline < minimum || deadline > maximum {
		return core.UsageError(ErrDeadlineOutOfBounds, fmt.Sprintf("render: deadline %s is outside [%s, %s]", deadline, minimum, maximum), map[string]any{
			"deadline_ms": deadline.Milliseconds(),
			"min_ms":      minimum.Milliseconds(),
			"max_ms":      maximum.Milliseconds(),
		})
	}
	return nil
}

func (c *Coordinator) query(ctx context.Context, renderID, statusURL string) (statusPayload, error) {
	target := strings.TrimSpace(statusURL)
	if target == "" {
		target = c.config.NormalizedBaseURL() + "/v1/render/" + url.PathEscape(renderID)
	}
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:               http.MethodGet,
		URL:                  target,
		Headers:              c.authHeaders(),
		Timeout:              c.config.HTTPTimeout(),
		MaxResponseBodyBytes: c.config.HTTP.MaxResponseBodyBytes,
	})
	if err != nil {
		return statusPayload{}, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusPayload{}, core.DecodeAPIError(res.StatusCode, res.Body)
	}
	var payload statusPayload
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return statusPayload{}, core.ProtocolError(err, "render: decode status response", map[string]any{"render_id": renderID})
	}
	if strings.TrimSpace(payload.Status) == "" {
		return statusPayload{}, core.ProtocolError(ErrMalformedResponse, "render: status response has no status", map[string]any{"render_id": renderID})
	}
	return payload, nil
}

func (c *Coordinator) timeout(job *Job, deadline time.Duration, cause error) error {
	if err := job.transition(StatusTimedOut); err != nil {
		return err
	}
	source := ErrDeadlineExceeded
	if cause != nil {
		source = fmt.Errorf("%w: %w", ErrDeadlineExceeded, cause)
	}
	return core.TimeoutError(source, fmt.Sprintf("render: job %s did not finish within %s", job.ID(), deadline), map[string]any{
		"render_id":   job.ID(),
		"deadline_ms": deadline.Milliseconds(),
	})
}

func (c *Coordinator) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(c.config.APISecret),
	}
}
