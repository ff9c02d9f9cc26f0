package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/signing"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type stubResponse struct {
	status int
	body   string
}

type stubTransport struct {
	mu        sync.Mutex
	requests  []core.TransportRequest
	responses []stubResponse
	fallback  *stubResponse
	err       error
}

func (*stubTransport) Kind() string { return "stub" }

func (s *stubTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return core.TransportResponse{}, s.err
	}
	var next stubResponse
	switch {
	case len(s.responses) > 0:
		next = s.responses[0]
		s.responses = s.responses[1:]
	case s.fallback != nil:
		next = *s.fallback
	default:
		return core.TransportResponse{}, errors.New("stub: no response queued")
	}
	return core.TransportResponse{StatusCode: next.status, Body: []byte(next.body)}, nil
}

func (s *stubTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.BaseURL = "https://api.example/"
	cfg.APIKey = "key_1"
	cfg.APISecret = "secret"
	return cfg
}

func newTestCoordinator(t *testing.T, transport *stubTransport, clock *fakeClock) *Coordinator {
	t.Helper()
	cfg := testConfig()
	coordinator, err := NewCoordinator(cfg, signing.NewLinkSigner(cfg, params.NewCanonicalizer()), transport, WithClock(clock))
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return coordinator
}

const pendingBody = `{"status":"pending","renderId":"r_1","statusUrl":"https://api.example/v1/render/r_1"}`

const succeededBody = `{"status":"succeeded","renderId":"r_1","renderUrl":"https://cdn.example/r_1.png","size":2048,"htmlUrl":"https://cdn.example/r_1.html"}`

func TestSubmit_CreatesJobFromAcceptance(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: http.StatusOK, body: `{"status":"created","renderId":"r_1","statusUrl":"https://api.example/v1/render/r_1"}`},
	}}
	clock := newFakeClock()
	coordinator := newTestCoordinator(t, transport, clock)

	opts := params.RenderOptions{URL: "https://example.com", Format: params.FormatPDF, FailOn4xx: true}
	job, err := coordinator.Submit(context.Background(), opts.Bag())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID() != "r_1" || job.Status() != StatusCreated || !job.SubmittedAt().Equal(clock.Now()) {
		t.Fatalf("unexpected job %#v", job.Snapshot())
	}
	if job.Link().Format != "pdf" || job.Link().Query != "fail_on_4xx=true&url=https%3A%2F%2Fexample.com" {
		t.Fatalf("unexpected job link %#v", job.Link())
	}

	req := transport.requests[0]
	if req.Method != http.MethodPost || req.URL != "https://api.example/v1/render/async" {
		t.Fatalf("unexpected submit request %s %s", req.Method, req.URL)
	}
	if req.Headers["Authorization"] != "Bearer secret" {
		t.Fatalf("expected bearer secret, got %q", req.Headers["Authorization"])
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode submit body: %v", err)
	}
	if body["format"] != "pdf" || body["url"] != "https://example.com" || body["fail_on_4xx"] != true {
		t.Fatalf("unexpected submit body %#v", body)
	}
	if _, ok := body["width"]; ok {
		t.Fatalf("expected defaults to be elided from submit body")
	}
}

func TestSubmit_RejectsMalformedAcceptance(t *testing.T) {
	cases := map[string]string{
		"no id":      `{"status":"created"}`,
		"bad status": `{"status":"succeeded","renderId":"r_1"}`,
		"not json":   `<html>`,
	}
	for name, body := range cases {
		transport := &stubTransport{responses: []stubResponse{{status: http.StatusOK, body: body}}}
		_, err := newTestCoordinator(t, transport, newFakeClock()).Submit(context.Background(), params.RenderOptions{URL: "u"}.Bag())
		if !core.IsProtocolError(err) {
			t.Fatalf("%s: expected protocol error, got %v", name, err)
		}
	}
}

func TestSubmit_SurfacesAPIErrorWithoutRetry(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: http.StatusUnauthorized, body: `{"error":{"message":"invalid api key","code":"InvalidCredentials"},"requestId":"req_9"}`},
	}}
	_, err := newTestCoordinator(t, transport, newFakeClock()).Submit(context.Background(), params.RenderOptions{URL: "u"}.Bag())
	apiErr, ok := core.AsAPIError(err)
	if !ok {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Code != "InvalidCredentials" || apiErr.RequestID != "req_9" || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected api error %#v", apiErr)
	}
	if transport.count() != 1 {
		t.Fatalf("expected a single request, got %d", transport.count())
	}
}

func TestSubmit_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.APISecret = ""
	transport := &stubTransport{}
	coordinator, _ := NewCoordinator(cfg, signing.NewLinkSigner(cfg, params.NewCanonicalizer()), transport)
	_, err := coordinator.Submit(context.Background(), params.RenderOptions{URL: "u"}.Bag())
	if !errors.Is(err, ErrMissingSecret) || transport.count() != 0 {
		t.Fatalf("expected missing secret before any request, got %v", err)
	}
}

func TestSubmit_AppliesValidator(t *testing.T) {
	cfg := testConfig()
	transport := &stubTransport{}
	coordinator, _ := NewCoordinator(cfg, signing.NewLinkSigner(cfg, params.NewCanonicalizer()), transport,
		WithValidator(params.NewValidator(nil)))
	_, err := coordinator.Submit(context.Background(), params.RenderOptions{}.Bag())
	if !errors.Is(err, params.ErrRuleViolation) || transport.count() != 0 {
		t.Fatalf("expected rule violation before any request, got %v", err)
	}
}

func TestAwaitCompletion_ConvergesAfterPending(t *testing.T) {
	const pending = 3
	responses := make([]stubResponse, 0, pending+1)
	for i := 0; i < pending; i++ {
		responses = append(responses, stubResponse{status: http.StatusOK, body: pendingBody})
	}
	responses = append(responses, stubResponse{status: http.StatusOK, body: succeededBody})
	transport := &stubTransport{responses: responses}
	clock := newFakeClock()
	coordinator := newTestCoordinator(t, transport, clock)

	job := NewJob("r_1", "https://api.example/v1/render/r_1", clock.Now())
	result, err := coordinator.AwaitCompletion(context.Background(), job, 10*time.Second, time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if transport.count() != pending+1 {
		t.Fatalf("expected %d queries, got %d", pending+1, transport.count())
	}
	if result.RenderURL != "https://cdn.example/r_1.png" || result.Size != 2048 || result.HTMLURL == "" {
		t.Fatalf("unexpected result %#v", result)
	}
	if job.Status() != StatusSucceeded {
		t.Fatalf("expected succeeded job, got %s", job.Status())
	}
	stored, ok := job.Result()
	if !ok || stored.RenderURL != result.RenderURL {
		t.Fatalf("expected job to hold result")
	}
	for _, req := range transport.requests {
		if req.Method != http.MethodGet || req.URL != "https://api.example/v1/render/r_1" {
			t.Fatalf("unexpected poll request %s %s", req.Method, req.URL)
		}
	}
}

func TestAwaitCompletion_TimesOutWithoutFurtherRequests(t *testing.T) {
	transport := &stubTransport{fallback: &stubResponse{status: http.StatusOK, body: pendingBody}}
	clock := newFakeClock()
	coordinator := newTestCoordinator(t, transport, clock)
	start := clock.Now()

	job := NewJob("r_1", "", start)
	_, err := coordinator.AwaitCompletion(context.Background(), job, 5*time.Second, 2*time.Second)
	if !core.IsTimeout(err) || !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if _, ok := core.AsAPIError(err); ok {
		t.Fatalf("expected timeout to be distinct from an api error")
	}
	if job.Status() != StatusTimedOut {
		t.Fatalf("expected timed out job, got %s", job.Status())
	}
	if transport.count() != 3 {
		t.Fatalf("expected 3 queries before the deadline, got %d", transport.count())
	}
	if elapsed := clock.Now().Sub(start); elapsed != 5*time.Second {
		t.Fatalf("expected to stop at the deadline, elapsed %s", elapsed)
	}
	if last := clock.sleeps[len(clock.sleeps)-1]; last != time.Second {
		t.Fatalf("expected final sleep clamped to the remaining time, got %s", last)
	}
	if transport.requests[0].URL != "https://api.example/v1/render/r_1" {
		t.Fatalf("expected fallback status url, got %s", transport.requests[0].URL)
	}

	if _, err := coordinator.AwaitCompletion(context.Background(), job, 5*time.Second, time.Second); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected terminal job to reject polling, got %v", err)
	}
	if transport.count() != 3 {
		t.Fatalf("expected no requests for a terminal job")
	}
}

func TestAwaitCompletion_DeadlineBounds(t *testing.T) {
	cases := []struct {
		deadline time.Duration
		accepted bool
	}{
		{deadline: 4999 * time.Millisecond},
		{deadline: 120001 * time.Millisecond},
		{deadline: 5000 * time.Millisecond, accepted: true},
		{deadline: 120000 * time.Millisecond, accepted: true},
	}
	for _, tc := range cases {
		transport := &stubTransport{fallback: &stubResponse{status: http.StatusOK, body: succeededBody}}
		clock := newFakeClock()
		coordinator := newTestCoordinator(t, transport, clock)
		_, err := coordinator.AwaitCompletion(context.Background(), NewJob("r_1", "", clock.Now()), tc.deadline, time.Second)
		if tc.accepted {
			if err != nil {
				t.Fatalf("%s: expected accepted deadline, got %v", tc.deadline, err)
			}
			continue
		}
		if !errors.Is(err, ErrDeadlineOutOfBounds) || !core.IsUsageError(err) {
			t.Fatalf("%s: expected out of bounds usage error, got %v", tc.deadline, err)
		}
		if transport.count() != 0 {
			t.Fatalf("%s: expected no network activity, got %d requests", tc.deadline, transport.count())
		}
	}
}

func TestAwaitCompletion_RemoteFailure(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: http.StatusOK, body: pendingBody},
		{status: http.StatusOK, body: `{"status":"failed","renderId":"r_1","error":{"message":"navigation timeout","code":"NavigationTimeout"}}`},
	}}
	clock := newFakeClock()
	job := NewJob("r_1", "", clock.Now())
	_, err := newTestCoordinator(t, transport, clock).AwaitCompletion(context.Background(), job, 30*time.Second, time.Second)
	if !core.IsRenderFailed(err) || !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected render failed error, got %v", err)
	}
	if job.Status() != StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status())
	}
	detail, ok := job.Failure()
	if !ok || detail.Code != "NavigationTimeout" {
		t.Fatalf("unexpected failure detail %#v", detail)
	}
}

func TestAwaitCompletion_APIErrorIsNotRetried(t *testing.T) {
	transport := &stubTransport{
		responses: []stubResponse{{status: http.StatusNotFound, body: `{"error":{"message":"render not found"},"requestId":"req_2"}`}},
		fallback:  &stubResponse{status: http.StatusOK, body: succeededBody},
	}
	clock := newFakeClock()
	_, err := newTestCoordinator(t, transport, clock).AwaitCompletion(context.Background(), NewJob("r_1", "", clock.Now()), 30*time.Second, time.Second)
	apiErr, ok := core.AsAPIError(err)
	if !ok || apiErr.RequestID != "req_2" {
		t.Fatalf("expected api error, got %v", err)
	}
	if transport.count() != 1 {
		t.Fatalf("expected a single request, got %d", transport.count())
	}
}

func TestAwaitCompletion_MalformedErrorBodyIsProtocolError(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: http.StatusInternalServerError, body: `{"error":{"message":"boom"}}`},
	}}
	clock := newFakeClock()
	_, err := newTestCoordinator(t, transport, clock).AwaitCompletion(context.Background(), NewJob("r_1", "", clock.Now()), 30*time.Second, time.Second)
	if !core.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if _, ok := core.AsAPIError(err); ok {
		t.Fatalf("expected malformed error body not to be an api error")
	}
}

func TestAwaitCompletion_UnknownStatusIsProtocolError(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{status: http.StatusOK, body: `{"status":"exploded"}`}}}
	clock := newFakeClock()
	_, err := newTestCoordinator(t, transport, clock).AwaitCompletion(context.Background(), NewJob("r_1", "", clock.Now()), 30*time.Second, time.Second)
	if !errors.Is(err, ErrUnexpectedStatus) || !core.IsProtocolError(err) {
		t.Fatalf("expected unexpected status protocol error, got %v", err)
	}
}

func TestAwaitCompletion_PollsJobsIndependently(t *testing.T) {
	transport := &stubTransport{fallback: &stubResponse{status: http.StatusOK, body: succeededBody}}
	coordinator := newTestCoordinator(t, transport, newFakeClock())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := NewJob("r_1", "", coordinator.clock.Now())
			if _, err := coordinator.AwaitCompletion(context.Background(), job, 10*time.Second, time.Second); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent await: %v", err)
	}
}

func TestRenderAndWait(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: http.StatusOK, body: `{"status":"created","renderId":"r_1"}`},
		{status: http.StatusOK, body: pendingBody},
		{status: http.StatusOK, body: succeededBody},
	}}
	clock := newFakeClock()
	result, job, err := newTestCoordinator(t, transport, clock).RenderAndWait(context.Background(), params.RenderOptions{URL: "u"}.Bag(), 30*time.Second)
	if err != nil {
		t.Fatalf("render and wait: %v", err)
	}
	if job.Status() != StatusSucceeded || result.Size != 2048 {
		t.Fatalf("unexpected outcome %#v", job.Snapshot())
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 2*time.Second {
		t.Fatalf("expected one sleep of the configured interval, got %v", clock.sleeps)
	}
}

func TestStatus_SingleQuery(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{status: http.StatusOK, body: succeededBody}}}
	snapshot, err := newTestCoordinator(t, transport, newFakeClock()).Status(context.Background(), "r_1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snapshot.Status != StatusSucceeded || snapshot.Result == nil || !strings.HasSuffix(snapshot.Result.RenderURL, ".png") {
		t.Fatalf("unexpected snapshot %#v", snapshot)
	}
}

func TestStatus_MapsRemoteStatuses(t *testing.T) {
	cases := []struct {
		body string
		want Status
	}{
		{body: `{"status":"created","renderId":"r_1"}`, want: StatusCreated},
		{body: pendingBody, want: StatusPolling},
		{body: `{"status":"FAILED","renderId":"r_1","error":{"message":"boom"}}`, want: StatusFailed},
		{body: succeededBody, want: StatusSucceeded},
	}
	for _, tc := range cases {
		transport := &stubTransport{responses: []stubResponse{{status: http.StatusOK, body: tc.body}}}
		snapshot, err := newTestCoordinator(t, transport, newFakeClock()).Status(context.Background(), "r_1")
		if err != nil {
			t.Fatalf("%s: status: %v", tc.body, err)
		}
		if snapshot.Status != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.body, tc.want, snapshot.Status)
		}
	}

	transport := &stubTransport{responses: []stubResponse{{status: http.StatusOK, body: `{"status":"exploded"}`}}}
	_, err := newTestCoordinator(t, transport, newFakeClock()).Status(context.Background(), "r_1")
	if !errors.Is(err, ErrUnexpectedStatus) || !core.IsProtocolError(err) {
		t.Fatalf("expected unexpected status protocol error, got %v", err)
	}
}
