package webhooks

import (
	"errors"
	"strings"

	"github.com/goliatone/go-renderlink/core"
)

const (
	timestampPrefix = "t="
	signaturePrefix = "sha256="
)

// ErrMalformedHeader matches every signature header parse failure.
var ErrMalformedHeader = errors.New("webhooks: malformed signature header")

type headerError struct{ message string }

func (e *headerError) Error() string { return e.message }

func (e *headerError) Is(target error) bool { return target == ErrMalformedHeader }

var (
	ErrHeaderMissingTimestamp = &headerError{"webhooks: signature header has no t= segment"}
	ErrHeaderMissingSignature = &headerError{"webhooks: signature header has no sha256= segment"}
	ErrHeaderMissingSeparator = &headerError{"webhooks: signature header has no comma separator"}
	ErrHeaderMalformed        = &headerError{"webhooks: signature header must be t=<timestamp>,sha256=<digest>"}
	ErrEmptyTimestamp         = &headerError{"webhooks: signature header timestamp is empty"}
	ErrEmptySignature         = &headerError{"webhooks: signature header digest is empty"}
)

type SignatureHeader struct {
	Timestamp string
	Digest    string
}

func (h SignatureHeader) String() string {
	return timestampPrefix + h.Timestamp + "," + signaturePrefix + h.Digest
}

// ParseSignatureHeader parses `t=<timestamp>,sha256=<digest>`. Each way the
// header can be wrong maps to its own sentinel.
func ParseSignatureHeader(header string) (SignatureHeader, error) {
	header = strings.TrimSpace(header)
	switch {
	case !strings.Contains(header, timestampPrefix):
		return SignatureHeader{}, headerUsageError(ErrHeaderMissingTimestamp)
	case !strings.Contains(header, signaturePrefix):
		return SignatureHeader{}, headerUsageError(ErrHeaderMissingSignature)
	}
	switch strings.Count(header, ",") {
	case 0:
		return SignatureHeader{}, headerUsageError(ErrHeaderMissingSeparator)
	case 1:
	default:
		return SignatureHeader{}, headerUsageError(ErrHeaderMalformed)
	}

	first, second, _ := strings.Cut(header, ",")
	first = strings.TrimSpace(first)
	second = strings.TrimSpace(second)
	if !strings.HasPrefix(first, timestampPrefix) || !strings.HasPrefix(second, signaturePrefix) {
		return SignatureHeader{}, headerUsageError(ErrHeaderMalformed)
	}
	parsed := SignatureHeader{
		Timestamp: strings.TrimSpace(strings.TrimPrefix(first, timestampPrefix)),
		Digest:    strings.TrimSpace(strings.TrimPrefix(second, signaturePrefix)),
	}
	if parsed.Timestamp == "" {
		return SignatureHeader{}, headerUsageError(ErrEmptyTimestamp)
	}
	if parsed.Digest == "" {
		return SignatureHeader{}, headerUsageError(ErrEmptySignature)
	}
	return parsed, nil
}

func headerUsageError(sentinel *headerError) error {
	return core.UsageError(sentinel, sentinel.message, nil)
}
