package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-renderlink/core"
)

type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestRESTAdapter_SendsRequestAndReturnsNon2xxAsResponse(t *testing.T) {
	var gotAuth, gotRequestID, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(HeaderRequestID)
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad"},"requestId":"req_1"}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.NewRequestID = func() string { return "rid-1" }
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL + "/v1/render/async",
		Headers: map[string]string{"Authorization": "Bearer secret"},
		Body:    []byte(`{"url":"https://example.com"}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.StatusCode)
	}
	if !strings.Contains(string(res.Body), "req_1") {
		t.Fatalf("unexpected body %s", res.Body)
	}
	if gotAuth != "Bearer secret" || gotRequestID != "rid-1" || gotContentType != "application/json" {
		t.Fatalf("unexpected headers auth=%q request_id=%q content_type=%q", gotAuth, gotRequestID, gotContentType)
	}
	if gotBody != `{"url":"https://example.com"}` {
		t.Fatalf("unexpected request body %q", gotBody)
	}
	if res.Metadata["request_id"] != "rid-1" {
		t.Fatalf("expected request id metadata, got %#v", res.Metadata)
	}
}

func TestRESTAdapter_GeneratesRequestIDByDefault(t *testing.T) {
	var gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get(HeaderRequestID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if _, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{URL: server.URL}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(gotRequestID) != 36 {
		t.Fatalf("expected uuid request id, got %q", gotRequestID)
	}
}

func TestRESTAdapter_PrefersEchoedRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRequestID, "srv-"+r.Header.Get(HeaderRequestID))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.NewRequestID = func() string { return "rid-2" }
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		URL:     server.URL,
		Headers: map[string]string{" ": "ignored", "X-Trace": " t1 "},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.Metadata["request_id"] != "srv-rid-2" {
		t.Fatalf("expected echoed request id, got %#v", res.Metadata)
	}
}

func TestRESTAdapter_ClientFailureIsTransportFailure(t *testing.T) {
	adapter := NewRESTAdapter(failingDoer{err: errors.New("connection refused")})
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://api.example/v1/render/r_1"})
	if core.TextCode(err) != core.ErrorTransportFailure {
		t.Fatalf("expected transport failure, got %v", err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %#v", err)
	}
}

func TestRESTAdapter_RejectsInvalidURL(t *testing.T) {
	adapter := NewRESTAdapter(failingDoer{})
	for _, raw := range []string{"", "not a url", "/relative"} {
		_, err := adapter.Do(context.Background(), core.TransportRequest{URL: raw})
		if !core.IsUsageError(err) {
			t.Fatalf("%q: expected usage error, got %v", raw, err)
		}
	}
}

func TestRESTAdapter_EnforcesResponseBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	_, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{
		URL:                  server.URL,
		MaxResponseBodyBytes: 16,
	})
	if core.TextCode(err) != core.ErrorTransportFailure {
		t.Fatalf("expected body limit failure, got %v", err)
	}
}
