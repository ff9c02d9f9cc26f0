package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/render"
)

const (
	TypeSubmitRender  = "renderlink.command.render.submit"
	TypeAwaitRender   = "renderlink.command.render.await"
	TypeRenderAndWait = "renderlink.command.render.run"
	TypeVerifyWebhook = "renderlink.command.webhook.verify"
)

type SubmitRenderMessage struct {
	Params *params.Bag
}

func (SubmitRenderMessage) Type() string { return TypeSubmitRender }

func (m SubmitRenderMessage) Validate() error {
	return validateParams(m.Params)
}

type AwaitRenderMessage struct {
	Job      *render.Job
	Deadline time.Duration
	// Interval falls back to the configured poll interval when zero.
	Interval time.Duration
}

func (AwaitRenderMessage) Type() string { return TypeAwaitRender }

func (m AwaitRenderMessage) Validate() error {
	if m.Job == nil {
		return core.FieldError("command", "job", "job is required")
	}
	if m.Deadline <= 0 {
		return core.FieldError("command", "deadline", "deadline must be positive")
	}
	if m.Interval < 0 {
		return core.FieldError("command", "interval", "interval must not be negative")
	}
	return nil
}

type RenderAndWaitMessage struct {
	Params   *params.Bag
	Deadline time.Duration
}

func (RenderAndWaitMessage) Type() string { return TypeRenderAndWait }

func (m RenderAndWaitMessage) Validate() error {
	if err := validateParams(m.Params); err != nil {
		return err
	}
	if m.Deadline <= 0 {
		return core.FieldError("command", "deadline", "deadline must be positive")
	}
	return nil
}

type VerifyWebhookMessage struct {
	Header string
	Body   []byte
}

func (VerifyWebhookMessage) Type() string { return TypeVerifyWebhook }

func (m VerifyWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Header) == "" {
		return core.FieldError("command", "header", "signature header is required")
	}
	if len(m.Body) == 0 {
		return core.FieldError("command", "body", "body is required")
	}
	return nil
}

func validateParams(bag *params.Bag) error {
	if bag == nil || bag.Len() == 0 {
		return core.FieldError("command", "params", "render parameters are required")
	}
	return nil
}
