// Package signing assembles render links and computes their HMAC-SHA1 token
// over the canonical query. Everything here is a pure function of its inputs.
package signing
