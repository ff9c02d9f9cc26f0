package renderlink

import (
	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/render"
	"github.com/goliatone/go-renderlink/webhooks"
)

type Config = core.Config

type WebhookConfig = core.WebhookConfig
type PollingConfig = core.PollingConfig
type HTTPConfig = core.HTTPConfig
type CacheConfig = core.CacheConfig

type Option = core.Option

type Runtime = core.Runtime

type APIError = core.APIError

type RenderResult = core.RenderResult
type RenderErrorDetail = core.RenderErrorDetail

type Bag = params.Bag
type Entry = params.Entry
type Value = params.Value
type RenderOptions = params.RenderOptions

type Job = render.Job
type JobStatus = render.Status
type Snapshot = render.Snapshot

type WebhookPayload = webhooks.Payload
type WebhookHandler = webhooks.Handler
type WebhookHandlerFunc = webhooks.HandlerFunc

const (
	StatusCreated   = render.StatusCreated
	StatusPolling   = render.StatusPolling
	StatusSucceeded = render.StatusSucceeded
	StatusFailed    = render.StatusFailed
	StatusTimedOut  = render.StatusTimedOut
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithRawConfig       = core.WithRawConfig
	WithOptionsResolver = core.WithOptionsResolver
	WithTransport       = core.WithTransport
	WithClock           = core.WithClock
	WithNameSynonyms    = core.WithNameSynonyms
)

var (
	IsUsageError    = core.IsUsageError
	IsUnauthentic   = core.IsUnauthentic
	IsTimeout       = core.IsTimeout
	IsProtocolError = core.IsProtocolError
	IsRenderFailed  = core.IsRenderFailed
	AsAPIError      = core.AsAPIError
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
