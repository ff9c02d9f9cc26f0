package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-renderlink/core"
)

const KindREST = "rest"

const (
	HeaderRequestID = "X-Request-Id"
	userAgent       = "go-renderlink"
)

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter sends render API requests. Any status code is a response;
// only failures to exchange bytes are errors.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	NewRequestID         func() string
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client: client,
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
		NewRequestID:         uuid.NewString,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, core.InternalError(
			fmt.Errorf("transport: rest adapter requires an http client"),
			"transport: rest adapter is not configured",
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	requestID := httpReq.Header.Get(HeaderRequestID)

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, core.TransportFailure(err, "transport: execute http request", map[string]any{
			"adapter":    KindREST,
			"method":     httpReq.Method,
			"request_id": requestID,
		})
	}
	defer httpRes.Body.Close()

	// The API echoes its own id when it assigns one.
	if echoed := strings.TrimSpace(httpRes.Header.Get(HeaderRequestID)); echoed != "" {
		requestID = echoed
	}
	body, err := readBody(httpRes, resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes), requestID)
	if err != nil {
		return core.TransportResponse{}, err
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
			"request_id":  requestID,
		},
	}, nil
}

func (a *RESTAdapter) newRequest(ctx context.Context, req core.TransportRequest) (*http.Request, error) {
	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, core.UsageError(nil, "transport: request url is required", map[string]any{"adapter": KindREST})
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return nil, core.UsageError(err, "transport: invalid request url", map[string]any{
			"adapter": KindREST,
			"url":     rawURL,
		})
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, core.UsageError(err, "transport: create http request", map[string]any{
			"adapter": KindREST,
			"method":  method,
		})
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(HeaderRequestID) == "" && a.NewRequestID != nil {
		httpReq.Header.Set(HeaderRequestID, a.NewRequestID())
	}
	return httpReq, nil
}

func setHeaders(dst http.Header, headers map[string]string) {
	for key, value := range headers {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		dst.Set(key, strings.TrimSpace(value))
	}
}

// readBody reads at most limit bytes. A longer body is a transport failure
// rather than a silently truncated document.
func readBody(res *http.Response, limit int64, requestID string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, core.TransportFailure(err, "transport: read response body", map[string]any{
			"adapter":     KindREST,
			"status_code": res.StatusCode,
			"request_id":  requestID,
		})
	}
	if int64(len(body)) > limit {
		return nil, core.TransportFailure(nil,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			map[string]any{
				"adapter":          KindREST,
				"status_code":      res.StatusCode,
				"request_id":       requestID,
				"response_limit_b": limit,
			},
		)
	}
	return body, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
