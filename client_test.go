package renderlink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	renderlinkquery "github.com/goliatone/go-renderlink/query"
	"github.com/goliatone/go-renderlink/webhooks"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

type renderAPI struct {
	mu          sync.Mutex
	pending     int
	polls       int
	submissions []map[string]any
	auth        []string
}

func (a *renderAPI) handler(t *testing.T, baseURL func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/render/async", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		a.mu.Lock()
		a.submissions = append(a.submissions, payload)
		a.auth = append(a.auth, r.Header.Get("Authorization"))
		a.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "created",
			"renderId":  "r_1",
			"statusUrl": baseURL() + "/v1/render/r_1",
		})
	})
	mux.HandleFunc("/v1/render/r_1", func(w http.ResponseWriter, _ *http.Request) {
		a.mu.Lock()
		a.polls++
		done := a.polls > a.pending
		a.mu.Unlock()
		if !done {
			_, _ = w.Write([]byte(`{"status":"pending","renderId":"r_1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"succeeded","renderId":"r_1","renderUrl":"https://cdn.example/r_1.png","size":2048}`))
	})
	mux.HandleFunc("/v1/render/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"render not found","code":"not_found"},"requestId":"req_9"}`))
	})
	return mux
}

func newTestClient(t *testing.T, api *renderAPI, cfg Config, opts ...Option) (*Client, *stepClock) {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(api.handler(t, func() string { return server.URL }))
	t.Cleanup(server.Close)

	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "key_1"
	}
	client, err := New(cfg, append([]Option{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, clock
}

func TestNew_RequiresAccountKey(t *testing.T) {
	_, err := New(Config{BaseURL: "https://api.example"})
	if err == nil {
		t.Fatalf("expected missing api key to fail")
	}
	if !IsUsageError(err) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestClient_GenerateURLFollowsSigningConfig(t *testing.T) {
	unsignedClient, _ := newTestClient(t, &renderAPI{}, Config{})
	bag := RenderOptions{URL: "https://example.com", Width: 800}.Bag()

	unsigned, err := unsignedClient.GenerateURL(bag, "")
	if err != nil {
		t.Fatalf("generate unsigned: %v", err)
	}
	base := unsignedClient.Config().NormalizedBaseURL()
	if unsigned != base+"/v1/key_1/png?url=https%3A%2F%2Fexample.com&width=800" {
		t.Fatalf("unexpected unsigned url %q", unsigned)
	}

	signedClient, _ := newTestClient(t, &renderAPI{}, Config{APISecret: "secret", SignLinks: true})
	signed, err := signedClient.GenerateURL(bag, "JPEG")
	if err != nil {
		t.Fatalf("generate signed: %v", err)
	}
	if !strings.HasSuffix(signed, "/jpeg?url=https%3A%2F%2Fexample.com&width=800") || strings.Count(signed, "/") != strings.Count(unsigned, "/")+1 {
		t.Fatalf("expected token segment in signed url %q", signed)
	}
	again, _ := signedClient.GenerateURL(bag, "jpeg")
	if again != signed {
		t.Fatalf("expected deterministic signed url, got %q and %q", signed, again)
	}
}

func TestClient_RenderAndWaitConvergesOverHTTP(t *testing.T) {
	api := &renderAPI{pending: 2}
	client, clock := newTestClient(t, api, Config{APISecret: "secret"})
	start := clock.Now()

	bag := RenderOptions{URL: "https://example.com", FullPage: true}.Bag()
	result, job, err := client.RenderAndWait(context.Background(), bag, 30*time.Second)
	if err != nil {
		t.Fatalf("render and wait: %v", err)
	}
	if result.RenderURL != "https://cdn.example/r_1.png" || result.Size != 2048 {
		t.Fatalf("unexpected result %#v", result)
	}
	if job.Status() != StatusSucceeded || job.ID() != "r_1" {
		t.Fatalf("unexpected job state %s %s", job.ID(), job.Status())
	}
	if api.polls != 3 {
		t.Fatalf("expected three status queries, got %d", api.polls)
	}
	if elapsed := clock.Now().Sub(start); elapsed != 4*time.Second {
		t.Fatalf("expected two default poll intervals, got %s", elapsed)
	}
	if len(api.submissions) != 1 || api.submissions[0]["url"] != "https://example.com" || api.submissions[0]["format"] != "png" || api.submissions[0]["full_page"] != true {
		t.Fatalf("unexpected submission %#v", api.submissions)
	}
	if api.auth[0] != "Bearer secret" {
		t.Fatalf("unexpected authorization header %q", api.auth[0])
	}
}

func TestClient_RenderRejectsInvalidOptionsBeforeSubmitting(t *testing.T) {
	api := &renderAPI{}
	client, _ := newTestClient(t, api, Config{APISecret: "secret"})

	_, _, err := client.Render(context.Background(), RenderOptions{URL: "https://example.com", HTML: "<p>x</p>"}.Bag())
	if !IsUsageError(err) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if len(api.submissions) != 0 {
		t.Fatalf("expected no submission for invalid options")
	}
}

func TestClient_StatusSurfacesAPIError(t *testing.T) {
	client, _ := newTestClient(t, &renderAPI{}, Config{APISecret: "secret"})

	_, err := client.Status(context.Background(), "missing")
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected API error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.RequestID != "req_9" {
		t.Fatalf("unexpected API error %#v", apiErr)
	}
}

func TestClient_StatusCacheServesFinishedRenders(t *testing.T) {
	api := &renderAPI{pending: 1}
	client, _ := newTestClient(t, api, Config{
		APISecret: "secret",
		Cache:     CacheConfig{StatusTTLMS: 60000},
	})
	ctx := context.Background()

	snapshot, err := client.Status(ctx, "r_1")
	if err != nil || snapshot.Status != StatusPolling {
		t.Fatalf("expected pending snapshot, got %#v (%v)", snapshot, err)
	}
	for i := 0; i < 3; i++ {
		snapshot, err = client.Status(ctx, "r_1")
		if err != nil || snapshot.Status != StatusSucceeded {
			t.Fatalf("expected succeeded snapshot, got %#v (%v)", snapshot, err)
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.polls != 2 {
		t.Fatalf("expected one pending and one terminal request, got %d", api.polls)
	}
}

func TestClient_VerifyWebhookUsesConfiguredSecretAndReplayWindow(t *testing.T) {
	body := []byte(`{"event":"render.succeeded","renderId":"r_1","result":{"renderUrl":"u","size":1}}`)
	client, clock := newTestClient(t, &renderAPI{}, Config{
		Webhook: webhooksConfig("whsec", 300000),
	})

	header := webhooks.Sign("whsec", "1767225600", body)
	payload, err := client.VerifyWebhook(context.Background(), header, body)
	if err != nil {
		t.Fatalf("verify webhook: %v", err)
	}
	if payload.RenderID != "r_1" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if _, err := client.VerifyWebhook(context.Background(), header, body); !errors.Is(err, webhooks.ErrReplayedDelivery) {
		t.Fatalf("expected replay rejection, got %v", err)
	}

	_ = clock.Sleep(context.Background(), time.Hour)
	late := webhooks.Sign("whsec", "1767225601", body)
	if _, err := client.VerifyWebhook(context.Background(), late, body); !errors.Is(err, webhooks.ErrStaleTimestamp) {
		t.Fatalf("expected stale timestamp, got %v", err)
	}
}

func TestClient_WebhookReceiverHonoursHeaderName(t *testing.T) {
	cfg := Config{Webhook: webhooksConfig("whsec", 0)}
	cfg.Webhook.Header = "X-Custom-Signature"
	client, _ := newTestClient(t, &renderAPI{}, cfg)

	var got []WebhookPayload
	receiver := client.WebhookReceiver(WebhookHandlerFunc(func(_ context.Context, payload WebhookPayload) error {
		got = append(got, payload)
		return nil
	}))

	body := `{"event":"render.failed","renderId":"r_2","error":{"message":"boom"}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("X-Custom-Signature", webhooks.Sign("whsec", "1", []byte(body)))
	rec := httptest.NewRecorder()
	receiver.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(got) != 1 || got[0].Succeeded() {
		t.Fatalf("unexpected deliveries %#v", got)
	}
}

func TestFacade_WiresClientHandlers(t *testing.T) {
	client, _ := newTestClient(t, &renderAPI{}, Config{APISecret: "secret"})
	facade, err := NewFacade(client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.SubmitRender == nil || commands.AwaitRender == nil || commands.VerifyWebhook == nil {
		t.Fatalf("expected command handlers to be wired")
	}

	link, err := facade.Queries().GenerateURL.Query(context.Background(), renderlinkquery.GenerateURLMessage{
		Params: RenderOptions{URL: "x"}.Bag(),
		Format: "pdf",
		Mode:   renderlinkquery.LinkModeSigned,
	})
	if err != nil {
		t.Fatalf("generate url query: %v", err)
	}
	if !strings.Contains(link, "/pdf?url=x") {
		t.Fatalf("unexpected link %q", link)
	}

	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil service to fail")
	}
}

func webhooksConfig(secret string, replayWindowMS int) WebhookConfig {
	cfg := DefaultConfig().Webhook
	cfg.Secret = secret
	cfg.ReplayWindowMS = replayWindowMS
	return cfg
}
