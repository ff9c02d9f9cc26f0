package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-renderlink/core"
)

const defaultMaxBodyBytes int64 = 1 << 20

type Handler interface {
	HandleWebhook(ctx context.Context, payload Payload) error
}

type HandlerFunc func(ctx context.Context, payload Payload) error

func (f HandlerFunc) HandleWebhook(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// Receiver verifies inbound webhook deliveries and dispatches authentic
// payloads to Handler.
type Receiver struct {
	Verifier     Verifier
	Handler      Handler
	Header       string
	MaxBodyBytes int64
	Observer     core.Observer
}

func NewReceiver(verifier Verifier, handler Handler) *Receiver {
	return &Receiver{
		Verifier:     verifier,
		Handler:      handler,
		Header:       core.DefaultSignatureHeader,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// Process runs verification and dispatch for one delivery.
func (r *Receiver) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if r == nil || r.Handler == nil {
		return core.InboundResult{}, core.InternalError(fmt.Errorf("webhooks: receiver requires a handler"), "webhooks: receiver is not configured")
	}
	startedAt := time.Now().UTC()

	payload, err := r.Verifier.VerifyRequest(ctx, r.header(), req)
	if err != nil {
		r.Observer.Observe(ctx, startedAt, "webhook_verify", err, nil)
		return core.InboundResult{
			Accepted:   false,
			StatusCode: statusFor(err),
			Metadata:   map[string]any{"rejected": true},
		}, err
	}
	fields := map[string]any{
		"render_id": payload.RenderID,
		"event":     payload.Event,
	}
	if err := r.Handler.HandleWebhook(ctx, payload); err != nil {
		r.Observer.Observe(ctx, startedAt, "webhook_dispatch", err, fields)
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusInternalServerError,
			Metadata:   fields,
		}, err
	}
	r.Observer.Observe(ctx, startedAt, "webhook_dispatch", nil, fields)
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   fields,
	}, nil
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	body, err := io.ReadAll(io.LimitReader(req.Body, r.maxBodyBytes()+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(core.ErrorBadInput, "webhooks: read body failed"))
		return
	}
	if int64(len(body)) > r.maxBodyBytes() {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(core.ErrorBadInput, "webhooks: body too large"))
		return
	}
	headers := make(map[string]string, len(req.Header))
	for key := range req.Header {
		headers[key] = req.Header.Get(key)
	}

	result, err := r.Process(req.Context(), core.InboundRequest{
		Headers: headers,
		Body:    body,
		Metadata: map[string]any{
			"remote_addr": req.RemoteAddr,
		},
	})
	if err != nil {
		mapped := core.MapError(err)
		writeJSON(w, result.StatusCode, errorBody(mapped.TextCode, publicMessage(mapped)))
		return
	}
	writeJSON(w, result.StatusCode, map[string]any{
		"accepted":  true,
		"render_id": result.Metadata["render_id"],
	})
}

// Mount registers the receiver for POST requests on pattern.
func (r *Receiver) Mount(router chi.Router, pattern string) {
	router.Post(pattern, r.ServeHTTP)
}

// Routes returns a standalone router serving the receiver at "/".
func (r *Receiver) Routes() http.Handler {
	router := chi.NewRouter()
	r.Mount(router, "/")
	return router
}

func (r *Receiver) header() string {
	if r != nil && strings.TrimSpace(r.Header) != "" {
		return r.Header
	}
	return core.DefaultSignatureHeader
}

func (r *Receiver) maxBodyBytes() int64 {
	if r != nil && r.MaxBodyBytes > 0 {
		return r.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func statusFor(err error) int {
	switch {
	case core.IsUnauthentic(err):
		return http.StatusUnauthorized
	case core.IsUsageError(err):
		return http.StatusBadRequest
	default:
		var richErr *goerrors.Error
		if errors.As(err, &richErr) && richErr.Code > 0 {
			return richErr.Code
		}
		return http.StatusInternalServerError
	}
}

// publicMessage keeps signature failures opaque.
func publicMessage(err *goerrors.Error) string {
	if err == nil {
		return ""
	}
	if err.TextCode == core.ErrorUnauthentic {
		return "authenticity could not be verified"
	}
	if err.Category == goerrors.CategoryInternal {
		return "internal error"
	}
	return err.Message
}

func errorBody(code, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
