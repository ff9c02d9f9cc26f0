package renderlink

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/render"
	"github.com/goliatone/go-renderlink/signing"
	"github.com/goliatone/go-renderlink/transport"
	"github.com/goliatone/go-renderlink/webhooks"
)

// Client composes canonicalization, link signing, async render coordination
// and webhook verification over one resolved Runtime. All state is read-only
// after New, so a Client is safe for concurrent use.
type Client struct {
	runtime       core.Runtime
	canonicalizer params.Canonicalizer
	validator     params.Validator
	signer        signing.LinkSigner
	coordinator   *render.Coordinator
	status        render.StatusReader
	verifier      webhooks.Verifier
}

func New(cfg Config, opts ...Option) (*Client, error) {
	runtime, err := core.Build(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewFromRuntime(runtime)
}

func NewFromRuntime(runtime core.Runtime) (*Client, error) {
	if runtime.Transport == nil {
		runtime.Transport = transport.NewRESTAdapter(&http.Client{Timeout: runtime.Config.HTTPTimeout()})
	}
	if runtime.Clock == nil {
		runtime.Clock = core.SystemClock{}
	}

	canonicalizer := params.NewCanonicalizer(runtime.NameSynonyms)
	validator := params.NewValidator(nil, runtime.NameSynonyms)
	signer := signing.NewLinkSigner(runtime.Config, canonicalizer)
	coordinator, err := render.NewCoordinator(runtime.Config, signer, runtime.Transport,
		render.WithClock(runtime.Clock),
		render.WithObserver(runtime.Observer()),
		render.WithValidator(validator),
	)
	if err != nil {
		return nil, err
	}

	status, err := statusReader(runtime.Config, coordinator)
	if err != nil {
		return nil, err
	}

	verifier := webhooks.NewVerifier(runtime.Config.Webhook.Secret)
	if window := runtime.Config.ReplayWindow(); window > 0 {
		verifier.Replay = webhooks.NewReplayGuard(window, runtime.Clock.Now)
	}

	runtime.Observer().Debug(context.Background(), "renderlink client ready", map[string]any{
		"base_url":   runtime.Config.NormalizedBaseURL(),
		"transport":  runtime.Transport.Kind(),
		"sign_links": runtime.Config.SignLinks,
		"status_ttl": runtime.Config.StatusCacheTTL().String(),
	})

	return &Client{
		runtime:       runtime,
		canonicalizer: canonicalizer,
		validator:     validator,
		signer:        signer,
		coordinator:   coordinator,
		status:        status,
		verifier:      verifier,
	}, nil
}

func statusReader(cfg Config, coordinator *render.Coordinator) (render.StatusReader, error) {
	ttl := cfg.StatusCacheTTL()
	if ttl <= 0 {
		return coordinator, nil
	}
	cacheService, err := render.NewStatusCacheService(ttl)
	if err != nil {
		return nil, core.InternalError(err, "renderlink: build status cache")
	}
	return render.NewCachedStatusReader(coordinator, cacheService)
}

func (c *Client) Runtime() core.Runtime { return c.runtime }

func (c *Client) Config() Config { return c.runtime.Config }

func (c *Client) Canonicalizer() params.Canonicalizer { return c.canonicalizer }

func (c *Client) Coordinator() *render.Coordinator { return c.coordinator }

func (c *Client) Verifier() webhooks.Verifier { return c.verifier }

// Canonicalize returns the deterministic query string for bag.
func (c *Client) Canonicalize(bag *Bag) (params.Query, error) {
	return c.canonicalizer.Canonicalize(bag)
}

// Validate checks bag against the default option dependency rules.
func (c *Client) Validate(bag *Bag) error {
	return c.validator.Validate(bag)
}

// GenerateURL builds a direct render link, signed when the config enables
// link signing. An empty format falls back to the bag's format parameter.
func (c *Client) GenerateURL(bag *Bag, format string) (string, error) {
	link, err := c.signer.Link(bag, c.format(bag, format))
	if err != nil {
		return "", err
	}
	return link.String(), nil
}

func (c *Client) GenerateSignedURL(bag *Bag, format string) (string, error) {
	link, err := c.signer.SignedLink(bag, c.format(bag, format))
	if err != nil {
		return "", err
	}
	return link.String(), nil
}

func (c *Client) GenerateUnsignedURL(bag *Bag, format string) (string, error) {
	link, err := c.signer.UnsignedLink(bag, c.format(bag, format))
	if err != nil {
		return "", err
	}
	return link.String(), nil
}

func (c *Client) Submit(ctx context.Context, bag *Bag) (*Job, error) {
	return c.coordinator.Submit(ctx, bag)
}

// AwaitCompletion polls job; a non-positive interval uses the configured one.
func (c *Client) AwaitCompletion(ctx context.Context, job *Job, deadline, interval time.Duration) (RenderResult, error) {
	return c.coordinator.AwaitCompletion(ctx, job, deadline, interval)
}

func (c *Client) RenderAndWait(ctx context.Context, bag *Bag, deadline time.Duration) (RenderResult, *Job, error) {
	return c.coordinator.RenderAndWait(ctx, bag, deadline)
}

// Render submits bag and waits up to the configured default timeout.
func (c *Client) Render(ctx context.Context, bag *Bag) (RenderResult, *Job, error) {
	return c.coordinator.RenderAndWait(ctx, bag, c.runtime.Config.DefaultTimeout())
}

func (c *Client) Status(ctx context.Context, renderID string) (Snapshot, error) {
	return c.status.Status(ctx, renderID)
}

func (c *Client) VerifyWebhook(ctx context.Context, header string, body []byte) (WebhookPayload, error) {
	return c.verifier.Verify(ctx, header, body)
}

// WebhookReceiver returns an http.Handler that verifies deliveries with the
// client's webhook secret and dispatches them to handler.
func (c *Client) WebhookReceiver(handler WebhookHandler) *webhooks.Receiver {
	receiver := webhooks.NewReceiver(c.verifier, handler)
	receiver.Header = c.runtime.Config.SignatureHeader()
	receiver.Observer = c.runtime.Observer()
	return receiver
}

func (c *Client) format(bag *Bag, format string) string {
	if format != "" {
		return format
	}
	return params.FormatOf(bag, string(params.FormatPNG))
}
