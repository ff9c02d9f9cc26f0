// Package webhooks authenticates render callbacks.
//
// A delivery carries `t=<timestamp>,sha256=<digest>` where digest is the
// HMAC-SHA256 of "<timestamp>.<body>" under the shared webhook secret.
// Verification fails with a typed error and never reports a bare boolean.
// Replay checks are opt-in through ReplayGuard.
package webhooks
