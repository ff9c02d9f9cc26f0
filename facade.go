package renderlink

import (
	"fmt"

	renderlinkcommand "github.com/goliatone/go-renderlink/command"
	renderlinkquery "github.com/goliatone/go-renderlink/query"
)

type CommandQueryService interface {
	renderlinkcommand.RenderService
	renderlinkcommand.WebhookVerifier
	renderlinkquery.RenderStatusReader
	renderlinkquery.LinkGenerator
}

type Commands struct {
	SubmitRender  *renderlinkcommand.SubmitRenderCommand
	AwaitRender   *renderlinkcommand.AwaitRenderCommand
	RenderAndWait *renderlinkcommand.RenderAndWaitCommand
	VerifyWebhook *renderlinkcommand.VerifyWebhookCommand
}

type Queries struct {
	RenderStatus *renderlinkquery.RenderStatusQuery
	GenerateURL  *renderlinkquery.GenerateURLQuery
}

// Facade exposes a client's operations as go-command handlers.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	verifier renderlinkcommand.WebhookVerifier
}

// WithWebhookVerifier routes VerifyWebhook through verifier instead of the
// service, for hosts that verify with a different secret.
func WithWebhookVerifier(verifier renderlinkcommand.WebhookVerifier) FacadeOption {
	return func(options *facadeOptions) {
		options.verifier = verifier
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("renderlink: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	verifier := cfg.verifier
	if verifier == nil {
		verifier = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitRender:  renderlinkcommand.NewSubmitRenderCommand(service),
		AwaitRender:   renderlinkcommand.NewAwaitRenderCommand(service),
		RenderAndWait: renderlinkcommand.NewRenderAndWaitCommand(service),
		VerifyWebhook: renderlinkcommand.NewVerifyWebhookCommand(verifier),
	}
	facade.queries = Queries{
		RenderStatus: renderlinkquery.NewRenderStatusQuery(service),
		GenerateURL:  renderlinkquery.NewGenerateURLQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Client)(nil)
