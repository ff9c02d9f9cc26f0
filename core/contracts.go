package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// TransportAdapter sends a request and returns the status code and body.
// Non-2xx responses are not errors at this layer.
type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// RenderJob is a render request waiting in a queue. Params holds the wire
// form of a parameter bag.
type RenderJob struct {
	Params         map[string]any
	Format         string
	Deadline       time.Duration
	IdempotencyKey string
}

// RenderJobRetry tells a queue what to do with a failed delivery.
type RenderJobRetry struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type RenderJobQueue interface {
	Enqueue(ctx context.Context, job *RenderJob) error
}

type RenderJobDelivery interface {
	Job() (*RenderJob, error)
	Ack(ctx context.Context) error
	Retry(ctx context.Context, retry RenderJobRetry) error
}

type RenderJobSource interface {
	Next(ctx context.Context) (RenderJobDelivery, error)
}

type RenderJobHook interface {
	OnStart(ctx context.Context, event RenderJobEvent)
	OnSuccess(ctx context.Context, event RenderJobEvent)
	OnFailure(ctx context.Context, event RenderJobEvent)
	OnRetry(ctx context.Context, event RenderJobEvent)
}

type RenderJobEvent struct {
	Job       *RenderJob
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
