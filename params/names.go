package params

import (
	"strings"
	"unicode"

	"github.com/stoewer/go-strcase"
)

// DefaultSynonyms lists declared names whose wire form cannot be recovered by
// splitting on case boundaries.
var DefaultSynonyms = map[string]string{
	"S3Endpoint":       "s3_endpoint",
	"S3Bucket":         "s3_bucket",
	"S3Path":           "s3_path",
	"S3Region":         "s3_region",
	"S3StorageClass":   "s3_storageclass",
	"UseS3":            "use_s3",
	"PdfPageSize":      "pdf_page_size",
	"PdfAutoCrop":      "pdf_auto_crop",
	"DisableJs":        "disable_js",
	"BlockUrls":        "block_urls",
	"BlockURLs":        "block_urls",
	"UserAgent":        "user_agent",
	"TTL":              "ttl",
	"HTML":             "html",
	"URL":              "url",
	"WebhookURL":       "webhook_url",
	"ResponseType":     "response_type",
	"HideCookieBanner": "hide_cookie_banners",
}

// NameTranslator maps declared parameter names to their wire form. The
// synonym table is copied on construction and never mutated.
type NameTranslator struct {
	synonyms map[string]string
}

func NewNameTranslator(synonyms ...map[string]string) NameTranslator {
	merged := map[string]string{}
	for _, table := range synonyms {
		for declared, wire := range table {
			declared = strings.TrimSpace(declared)
			wire = strings.TrimSpace(wire)
			if declared == "" || wire == "" {
				continue
			}
			merged[declared] = wire
		}
	}
	return NameTranslator{synonyms: merged}
}

func (t NameTranslator) Translate(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if wire, ok := t.synonyms[name]; ok {
		return wire
	}
	return strcase.SnakeCase(splitDigitRuns(name))
}

// splitDigitRuns inserts word boundaries around digit runs the snake caser
// would otherwise glue to a neighbour. A digit-led suffix (FailOn4xx,
// FailOn4XX) starts a new word; a capitalised word after digits (Html5Mode)
// starts a new word.
func splitDigitRuns(name string) string {
	runes := []rune(name)
	var out strings.Builder
	out.Grow(len(name) + 4)
	for i := 0; i < len(runes); {
		if !unicode.IsDigit(runes[i]) {
			out.WriteRune(runes[i])
			i++
			continue
		}
		end := i
		for end < len(runes) && unicode.IsDigit(runes[end]) {
			end++
		}
		suffix := digitLedSuffix(runes, end)
		if suffix && i > 0 && unicode.IsLetter(runes[i-1]) {
			out.WriteRune('_')
		}
		out.WriteString(string(runes[i:end]))
		if !suffix && end < len(runes) && unicode.IsUpper(runes[end]) {
			out.WriteRune('_')
		}
		i = end
	}
	return out.String()
}

// digitLedSuffix reports whether the letters starting at pos belong to the
// preceding digits: a lowercase run, or an uppercase run that is not the
// start of a capitalised word.
func digitLedSuffix(runes []rune, pos int) bool {
	if pos >= len(runes) {
		return false
	}
	if unicode.IsLower(runes[pos]) {
		return true
	}
	if !unicode.IsUpper(runes[pos]) {
		return false
	}
	end := pos
	for end < len(runes) && unicode.IsUpper(runes[end]) {
		end++
	}
	if end == len(runes) {
		return true
	}
	return !unicode.IsLetter(runes[end]) && end-pos > 1
}
