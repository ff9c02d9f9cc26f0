package signing

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
)

var (
	ErrMissingBaseURL    = errors.New("signing: base url is required")
	ErrMissingAccountKey = errors.New("signing: account key is required")
	ErrMissingSecret     = errors.New("signing: secret is required to sign links")
	ErrMissingFormat     = errors.New("signing: format is required")
)

// Token returns the lowercase hex HMAC-SHA1 of the canonical query bytes.
func Token(secret string, query params.Query) string {
	mac := hmac.New(sha1.New, []byte(secret))
	_, _ = mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Link is an immutable render link. Token is empty for unsigned links.
type Link struct {
	Base       string
	AccountKey string
	Token      string
	Format     string
	Query      params.Query
}

func (l Link) Signed() bool { return l.Token != "" }

func (l Link) String() string {
	var b strings.Builder
	b.WriteString(l.Base)
	b.WriteString("/v1/")
	b.WriteString(l.AccountKey)
	if l.Token != "" {
		b.WriteByte('/')
		b.WriteString(l.Token)
	}
	b.WriteByte('/')
	b.WriteString(l.Format)
	b.WriteByte('?')
	b.WriteString(string(l.Query))
	return b.String()
}

// NewLink assembles a link over an already canonical query.
func NewLink(base, accountKey, secret string, query params.Query, format string, signed bool) (Link, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	accountKey = strings.TrimSpace(accountKey)
	format = strings.ToLower(strings.TrimSpace(format))
	switch {
	case base == "":
		return Link{}, core.UsageError(ErrMissingBaseURL, "signing: base url is required", nil)
	case accountKey == "":
		return Link{}, core.UsageError(ErrMissingAccountKey, "signing: account key is required", nil)
	case format == "":
		return Link{}, core.UsageError(ErrMissingFormat, "signing: format is required", nil)
	case signed && secret == "":
		return Link{}, core.UsageError(ErrMissingSecret, "signing: secret is required to sign links", nil)
	}
	link := Link{
		Base:       base,
		AccountKey: accountKey,
		Format:     format,
		Query:      query,
	}
	if signed {
		link.Token = Token(secret, query)
	}
	return link, nil
}

func Sign(base, accountKey, secret string, query params.Query, format string, signed bool) (string, error) {
	link, err := NewLink(base, accountKey, secret, query, format, signed)
	if err != nil {
		return "", err
	}
	return link.String(), nil
}

// LinkSigner binds read-only account configuration to a canonicalizer.
type LinkSigner struct {
	BaseURL       string
	AccountKey    string
	Secret        string
	Signed        bool
	Canonicalizer params.Canonicalizer
}

func NewLinkSigner(cfg core.Config, canonicalizer params.Canonicalizer) LinkSigner {
	return LinkSigner{
		BaseURL:       cfg.NormalizedBaseURL(),
		AccountKey:    cfg.APIKey,
		Secret:        cfg.APISecret,
		Signed:        cfg.SignLinks,
		Canonicalizer: canonicalizer,
	}
}

// Link canonicalizes bag and assembles a link, signed when configured.
func (s LinkSigner) Link(bag *params.Bag, format string) (Link, error) {
	return s.link(bag, format, s.Signed)
}

func (s LinkSigner) SignedLink(bag *params.Bag, format string) (Link, error) {
	return s.link(bag, format, true)
}

func (s LinkSigner) UnsignedLink(bag *params.Bag, format string) (Link, error) {
	return s.link(bag, format, false)
}

func (s LinkSigner) link(bag *params.Bag, format string, signed bool) (Link, error) {
	query, err := s.Canonicalizer.Canonicalize(bag)
	if err != nil {
		return Link{}, err
	}
	return NewLink(s.BaseURL, s.AccountKey, s.Secret, query, format, signed)
}
