package params

import (
	"errors"
	"testing"

	"github.com/goliatone/go-renderlink/core"
)

func TestCanonicalize_IgnoresInsertionOrder(t *testing.T) {
	first := NewBag(
		Entry{Name: "Width", Value: Int(1280)},
		Entry{Name: "URL", Value: String("https://example.com")},
		Entry{Name: "BlockAds", Value: Bool(true)},
	)
	second := NewBag(
		Entry{Name: "BlockAds", Value: Bool(true)},
		Entry{Name: "URL", Value: String("https://example.com")},
		Entry{Name: "Width", Value: Int(1280)},
	)

	a, err := Canonicalize(first)
	if err != nil {
		t.Fatalf("canonicalize first: %v", err)
	}
	b, err := Canonicalize(second)
	if err != nil {
		t.Fatalf("canonicalize second: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical output, got %q and %q", a, b)
	}
	want := Query("block_ads=true&url=https%3A%2F%2Fexample.com&width=1280")
	if a != want {
		t.Fatalf("expected %q, got %q", want, a)
	}
	again, _ := Canonicalize(first)
	if again != a {
		t.Fatalf("expected repeated canonicalization to be stable")
	}
}

func TestCanonicalize_ElidesDefaults(t *testing.T) {
	withDefaults := NewBag(
		Entry{Name: "URL", Value: String("https://example.com")},
		Entry{Name: "Width", Value: Int(0)},
		Entry{Name: "FullPage", Value: Bool(false)},
		Entry{Name: "BlockURLs", Value: List()},
		Entry{Name: "Selector", Value: String("")},
		Entry{Name: "Scale", Value: Float(0)},
		Entry{Name: "Engine", Value: Enum("")},
	)
	without := NewBag(Entry{Name: "URL", Value: String("https://example.com")})

	a, err := Canonicalize(withDefaults)
	if err != nil {
		t.Fatalf("canonicalize with defaults: %v", err)
	}
	b, err := Canonicalize(without)
	if err != nil {
		t.Fatalf("canonicalize without defaults: %v", err)
	}
	if a != b {
		t.Fatalf("expected default elision, got %q and %q", a, b)
	}
}

func TestCanonicalize_DropsReservedFormatAnyCase(t *testing.T) {
	for _, name := range []string{"format", "Format", "FORMAT"} {
		bag := NewBag(
			Entry{Name: name, Value: Enum("Pdf")},
			Entry{Name: "URL", Value: String("x")},
		)
		query, err := Canonicalize(bag)
		if err != nil {
			t.Fatalf("canonicalize %s: %v", name, err)
		}
		if query != "url=x" {
			t.Fatalf("expected format to be dropped for %q, got %q", name, query)
		}
	}

	zero := Canonicalizer{}
	query, err := zero.Canonicalize(NewBag(Entry{Name: "format", Value: String("png")}))
	if err != nil {
		t.Fatalf("canonicalize with zero canonicalizer: %v", err)
	}
	if query != "" {
		t.Fatalf("expected format to be reserved without configuration, got %q", query)
	}
}

func TestCanonicalize_StringifiesValues(t *testing.T) {
	bag := NewBag(
		Entry{Name: "Retina", Value: Bool(true)},
		Entry{Name: "Engine", Value: Enum("WebKit")},
		Entry{Name: "Scale", Value: Float(0.5)},
		Entry{Name: "Delay", Value: Int(-250)},
		Entry{Name: "BlockURLs", Value: List("ads.example", "track er")},
		Entry{Name: "Selector", Value: String("#main ~ p*")},
	)
	query, err := Canonicalize(bag)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := Query("block_urls=ads.example%2Ctrack%20er&delay=-250&engine=webkit&retina=true&scale=0.5&selector=%23main%20~%20p%2A")
	if query != want {
		t.Fatalf("expected %q, got %q", want, query)
	}
}

func TestCanonicalize_UnsetUnionFailsFast(t *testing.T) {
	bag := NewBag(
		Entry{Name: "URL", Value: String("x")},
		Entry{Name: "Cookie", Value: StringOrList{}.Value()},
	)
	_, err := Canonicalize(bag)
	if err == nil {
		t.Fatalf("expected unconvertible value error")
	}
	if !errors.Is(err, ErrUnconvertibleValue) {
		t.Fatalf("expected ErrUnconvertibleValue, got %v", err)
	}
	if !core.IsUsageError(err) {
		t.Fatalf("expected usage error text code, got %q", core.TextCode(err))
	}
}

func TestCanonicalize_DuplicateWireNameFails(t *testing.T) {
	bag := NewBag(
		Entry{Name: "FullPage", Value: Bool(true)},
		Entry{Name: "full_page", Value: Bool(true)},
	)
	_, err := Canonicalize(bag)
	if !errors.Is(err, ErrDuplicateParameter) {
		t.Fatalf("expected ErrDuplicateParameter, got %v", err)
	}
}

func TestCanonicalize_SynonymsOverrideTranslation(t *testing.T) {
	canonicalizer := NewCanonicalizer(map[string]string{"Darkmode": "dark_mode"})
	query, err := canonicalizer.Canonicalize(NewBag(Entry{Name: "Darkmode", Value: Bool(true)}))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if query != "dark_mode=true" {
		t.Fatalf("expected synonym wire name, got %q", query)
	}
}

func TestCanonicalizer_WireReturnsRawValues(t *testing.T) {
	wire, err := NewCanonicalizer().Wire(NewBag(
		Entry{Name: "Width", Value: Int(800)},
		Entry{Name: "FullPage", Value: Bool(true)},
		Entry{Name: "Height", Value: Int(0)},
		Entry{Name: "Format", Value: Enum("png")},
	))
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	if len(wire) != 2 {
		t.Fatalf("expected two wire parameters, got %#v", wire)
	}
	if wire["width"] != int64(800) || wire["full_page"] != true {
		t.Fatalf("unexpected wire values %#v", wire)
	}
}

func TestEscape_UsesRFC3986QueryRules(t *testing.T) {
	cases := map[string]string{
		"a b":     "a%20b",
		"a+b":     "a%2Bb",
		"~tilde":  "~tilde",
		"star*":   "star%2A",
		"a,b":     "a%2Cb",
		"safe-_.": "safe-_.",
	}
	for input, want := range cases {
		if got := Escape(input); got != want {
			t.Fatalf("escape %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestFormatOf(t *testing.T) {
	if got := FormatOf(NewBag(Entry{Name: "Format", Value: Enum("PDF")}), "png"); got != "pdf" {
		t.Fatalf("expected pdf, got %q", got)
	}
	if got := FormatOf(NewBag(Entry{Name: "URL", Value: String("x")}), "PNG"); got != "png" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := FormatOf(RenderOptions{URL: "x"}.Bag(), "png"); got != "png" {
		t.Fatalf("expected empty enum to fall back, got %q", got)
	}
}
