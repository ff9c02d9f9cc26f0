package params

import (
	"net/url"
	"sort"
	"strings"
)

// FormatParameter selects the output format; it travels in the URL path.
const FormatParameter = "format"

// Query is a canonical, percent-encoded query string.
type Query string

func (q Query) String() string { return string(q) }

// Canonicalizer holds the configuration data used to canonicalize a Bag. It is
// safe for concurrent use once built. The format selector is always reserved.
type Canonicalizer struct {
	Translator NameTranslator
	Reserved   []string
}

func NewCanonicalizer(synonyms ...map[string]string) Canonicalizer {
	tables := append([]map[string]string{DefaultSynonyms}, synonyms...)
	return Canonicalizer{
		Translator: NewNameTranslator(tables...),
		Reserved:   []string{FormatParameter},
	}
}

type wireEntry struct {
	name  string
	value Value
}

// Canonicalize renders bag as a query string: defaults and reserved names
// are dropped, names are translated, pairs are sorted byte-wise by name.
func (c Canonicalizer) Canonicalize(bag *Bag) (Query, error) {
	entries, err := c.collect(bag)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		formatted, err := entry.value.Format()
		if err != nil {
			return "", usageError(err, "params: parameter "+entry.name+" cannot be formatted", map[string]any{"parameter": entry.name})
		}
		parts = append(parts, Escape(entry.name)+"="+Escape(formatted))
	}
	return Query(strings.Join(parts, "&")), nil
}

// Wire returns the filtered parameters keyed by wire name, with JSON friendly
// values.
func (c Canonicalizer) Wire(bag *Bag) (map[string]any, error) {
	entries, err := c.collect(bag)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		out[entry.name] = entry.value.Raw()
	}
	return out, nil
}

func (c Canonicalizer) collect(bag *Bag) ([]wireEntry, error) {
	entries := make([]wireEntry, 0, bag.Len())
	seen := map[string]string{}
	var failure error
	bag.Each(func(name string, value Value) bool {
		if value.Kind() == KindUnset {
			failure = usageError(ErrUnconvertibleValue, "params: parameter "+name+" has no value", map[string]any{"parameter": name})
			return false
		}
		wire := c.Translator.Translate(name)
		if wire == "" {
			failure = usageError(ErrEmptyName, "params: parameter "+name+" translates to an empty wire name", map[string]any{"parameter": name})
			return false
		}
		if c.reserved(name, wire) || value.IsDefault() {
			return true
		}
		if previous, ok := seen[wire]; ok {
			failure = usageError(ErrDuplicateParameter, "params: parameters "+previous+" and "+name+" share wire name "+wire, map[string]any{
				"parameter": name,
				"wire_name": wire,
			})
			return false
		}
		seen[wire] = name
		entries = append(entries, wireEntry{name: wire, value: value})
		return true
	})
	if failure != nil {
		return nil, failure
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

func (c Canonicalizer) reserved(name, wire string) bool {
	if strings.EqualFold(name, FormatParameter) || strings.EqualFold(wire, FormatParameter) {
		return true
	}
	for _, reserved := range c.Reserved {
		if strings.EqualFold(reserved, name) || strings.EqualFold(reserved, wire) {
			return true
		}
	}
	return false
}

// Escape percent-encodes s as an RFC 3986 query component.
func Escape(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	escaped = strings.ReplaceAll(escaped, "*", "%2A")
	escaped = strings.ReplaceAll(escaped, "%7E", "~")
	return escaped
}

// Canonicalize uses the default canonicalizer.
func Canonicalize(bag *Bag) (Query, error) {
	return NewCanonicalizer().Canonicalize(bag)
}

// FormatOf returns the lowercase output format named in bag, or fallback.
func FormatOf(bag *Bag, fallback string) string {
	format := ""
	bag.Each(func(name string, value Value) bool {
		if !strings.EqualFold(strings.TrimSpace(name), FormatParameter) {
			return true
		}
		if formatted, err := value.Format(); err == nil {
			format = strings.ToLower(strings.TrimSpace(formatted))
		}
		return false
	})
	if format == "" {
		return strings.ToLower(strings.TrimSpace(fallback))
	}
	return format
}
