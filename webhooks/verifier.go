package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/goliatone/go-renderlink/core"
)

var (
	ErrMissingSecret     = errors.New("webhooks: webhook secret is required")
	ErrSignatureMismatch = errors.New("webhooks: authenticity could not be verified")
	ErrPayloadConflict   = errors.New("webhooks: payload must carry exactly one of result or error")
)

// Payload is the authenticated body of a render webhook.
type Payload struct {
	Event    string                  `json:"event"`
	RenderID string                  `json:"renderId"`
	Result   *core.RenderResult      `json:"result,omitempty"`
	Error    *core.RenderErrorDetail `json:"error,omitempty"`
	Meta     Meta                    `json:"meta"`
}

type Meta struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

func (p Payload) Succeeded() bool { return p.Result != nil }

// Verifier authenticates webhook bodies against a shared secret. Replay is
// nil unless the caller opts into a replay policy.
type Verifier struct {
	Secret string
	Replay *ReplayGuard
}

func NewVerifier(secret string) Verifier {
	return Verifier{Secret: secret}
}

// Verify is the stateless form of Verifier.Verify.
func Verify(header string, body []byte, secret string) (Payload, error) {
	return Verifier{Secret: secret}.Verify(context.Background(), header, body)
}

func (v Verifier) Verify(ctx context.Context, header string, body []byte) (Payload, error) {
	if v.Secret == "" {
		return Payload{}, core.UsageError(ErrMissingSecret, "webhooks: webhook secret is required", nil)
	}
	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		return Payload{}, err
	}
	expected := Digest(v.Secret, parsed.Timestamp, body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(parsed.Digest))) != 1 {
		return Payload{}, core.UnauthenticError(ErrSignatureMismatch, "webhooks: authenticity could not be verified")
	}
	if err := v.Replay.Check(ctx, parsed); err != nil {
		return Payload{}, err
	}
	return DecodePayload(body)
}

// VerifyRequest reads the signature from headerName on req.
func (v Verifier) VerifyRequest(ctx context.Context, headerName string, req core.InboundRequest) (Payload, error) {
	return v.Verify(ctx, headerValue(req.Headers, headerName), req.Body)
}

// DecodePayload decodes an already authenticated body.
func DecodePayload(body []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Payload{}, core.ProtocolError(err, "webhooks: decode webhook payload", nil)
	}
	if (payload.Result == nil) == (payload.Error == nil) {
		return Payload{}, core.UsageError(ErrPayloadConflict, "webhooks: payload must carry exactly one of result or error", map[string]any{
			"render_id": payload.RenderID,
		})
	}
	return payload, nil
}

// Digest returns hex(HMAC-SHA256(secret, timestamp + "." + body)).
func Digest(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign builds the signature header value for body.
func Sign(secret, timestamp string, body []byte) string {
	return SignatureHeader{Timestamp: timestamp, Digest: Digest(secret, timestamp, body)}.String()
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
