package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/render"
	"github.com/goliatone/go-renderlink/webhooks"
)

type RenderService interface {
	Submit(ctx context.Context, bag *params.Bag) (*render.Job, error)
	AwaitCompletion(ctx context.Context, job *render.Job, deadline, interval time.Duration) (core.RenderResult, error)
	RenderAndWait(ctx context.Context, bag *params.Bag, deadline time.Duration) (core.RenderResult, *render.Job, error)
}

type WebhookVerifier interface {
	VerifyWebhook(ctx context.Context, header string, body []byte) (webhooks.Payload, error)
}

// RenderOutcome is stored by RenderAndWaitCommand. Job is set whenever the
// submission was accepted, including when waiting failed.
type RenderOutcome struct {
	Result core.RenderResult
	Job    *render.Job
}

type SubmitRenderCommand struct {
	service RenderService
}

func NewSubmitRenderCommand(service RenderService) *SubmitRenderCommand {
	return &SubmitRenderCommand{service: service}
}

func (c *SubmitRenderCommand) Execute(ctx context.Context, msg SubmitRenderMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "render service")
	}
	job, err := c.service.Submit(ctx, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, job)
	return nil
}

type AwaitRenderCommand struct {
	service RenderService
}

func NewAwaitRenderCommand(service RenderService) *AwaitRenderCommand {
	return &AwaitRenderCommand{service: service}
}

func (c *AwaitRenderCommand) Execute(ctx context.Context, msg AwaitRenderMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "render service")
	}
	if msg.Job == nil {
		return core.UsageError(nil, "command: job is required", nil)
	}
	result, err := c.service.AwaitCompletion(ctx, msg.Job, msg.Deadline, msg.Interval)
	if err != nil {
		return err
	}
	storeResult(ctx, result)
	return nil
}

type RenderAndWaitCommand struct {
	service RenderService
}

func NewRenderAndWaitCommand(service RenderService) *RenderAndWaitCommand {
	return &RenderAndWaitCommand{service: service}
}

func (c *RenderAndWaitCommand) Execute(ctx context.Context, msg RenderAndWaitMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "render service")
	}
	result, job, err := c.service.RenderAndWait(ctx, msg.Params, msg.Deadline)
	storeResult(ctx, RenderOutcome{Result: result, Job: job})
	return err
}

type VerifyWebhookCommand struct {
	verifier WebhookVerifier
}

func NewVerifyWebhookCommand(verifier WebhookVerifier) *VerifyWebhookCommand {
	return &VerifyWebhookCommand{verifier: verifier}
}

func (c *VerifyWebhookCommand) Execute(ctx context.Context, msg VerifyWebhookMessage) error {
	if c == nil || c.verifier == nil {
		return core.MissingDependency("command", "webhook verifier")
	}
	payload, err := c.verifier.VerifyWebhook(ctx, msg.Header, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, payload)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

// MessageType lets registries key handlers without a message value.
func (*SubmitRenderCommand) MessageType() string { return TypeSubmitRender }

func (*AwaitRenderCommand) MessageType() string { return TypeAwaitRender }

func (*RenderAndWaitCommand) MessageType() string { return TypeRenderAndWait }

func (*VerifyWebhookCommand) MessageType() string { return TypeVerifyWebhook }
