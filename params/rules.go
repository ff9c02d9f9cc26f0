package params

import (
	"fmt"
	"sort"
	"strings"
)

type RuleKind string

const (
	// RuleExactlyOne requires exactly one of Names to be present.
	RuleExactlyOne RuleKind = "exactly_one"
	// RuleRequires requires Requires to be present when any parameter matching
	// Names or Prefix is present. With Value set, Requires must also equal it.
	RuleRequires RuleKind = "requires"
	// RuleRange bounds the numeric value of each of Names to [Min, Max].
	RuleRange RuleKind = "range"
)

// Rule is one entry of a dependency table. Rules are plain data and operate
// on wire names.
type Rule struct {
	Kind     RuleKind
	Names    []string
	Prefix   string
	Requires string
	Value    string
	Min      float64
	Max      float64
}

var defaultRules = []Rule{
	{Kind: RuleExactlyOne, Names: []string{"url", "html"}},
	{Kind: RuleRequires, Prefix: "pdf_", Requires: FormatParameter, Value: string(FormatPDF)},
	{Kind: RuleRequires, Names: []string{"full_page_mode"}, Requires: "full_page"},
	{Kind: RuleRequires, Prefix: "s3_", Requires: "use_s3"},
	{Kind: RuleRange, Names: []string{"quality"}, Min: 0, Max: 100},
	{Kind: RuleRange, Names: []string{"width", "height"}, Min: 0, Max: 10000},
}

func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

type Violation struct {
	Rule    Rule
	Message string
}

// Validator checks a Bag against a rule table.
type Validator struct {
	Translator NameTranslator
	Rules      []Rule
}

func NewValidator(rules []Rule, synonyms ...map[string]string) Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	tables := append([]map[string]string{DefaultSynonyms}, synonyms...)
	return Validator{
		Translator: NewNameTranslator(tables...),
		Rules:      append([]Rule(nil), rules...),
	}
}

func (v Validator) Validate(bag *Bag) error {
	violations := v.Violations(bag)
	if len(violations) == 0 {
		return nil
	}
	messages := make([]string, 0, len(violations))
	for _, violation := range violations {
		messages = append(messages, violation.Message)
	}
	return usageError(ErrRuleViolation, "params: "+strings.Join(messages, "; "), map[string]any{
		"violations": messages,
	})
}

func (v Validator) Violations(bag *Bag) []Violation {
	present := map[string]Value{}
	bag.Each(func(name string, value Value) bool {
		if value.Kind() == KindUnset || value.IsDefault() {
			return true
		}
		present[v.Translator.Translate(name)] = value
		return true
	})

	var violations []Violation
	for _, rule := range v.Rules {
		if message := checkRule(rule, present); message != "" {
			violations = append(violations, Violation{Rule: rule, Message: message})
		}
	}
	return violations
}

func checkRule(rule Rule, present map[string]Value) string {
	switch rule.Kind {
	case RuleExactlyOne:
		count := 0
		for _, name := range rule.Names {
			if _, ok := present[name]; ok {
				count++
			}
		}
		if count != 1 {
			return fmt.Sprintf("exactly one of %s is required", strings.Join(rule.Names, ", "))
		}
	case RuleRequires:
		triggers := matching(rule, present)
		if len(triggers) == 0 {
			return ""
		}
		requirement := rule.Requires
		if rule.Value != "" {
			requirement += "=" + rule.Value
		}
		required, ok := present[rule.Requires]
		if !ok {
			return fmt.Sprintf("%s requires %s", strings.Join(triggers, ", "), requirement)
		}
		if rule.Value != "" {
			formatted, _ := required.Format()
			if !strings.EqualFold(formatted, rule.Value) {
				return fmt.Sprintf("%s requires %s", strings.Join(triggers, ", "), requirement)
			}
		}
	case RuleRange:
		for _, name := range rule.Names {
			value, ok := present[name]
			if !ok {
				continue
			}
			number, ok := value.Number()
			if !ok {
				return fmt.Sprintf("%s must be numeric", name)
			}
			if number < rule.Min || number > rule.Max {
				return fmt.Sprintf("%s must be between %g and %g", name, rule.Min, rule.Max)
			}
		}
	}
	return ""
}

func matching(rule Rule, present map[string]Value) []string {
	var names []string
	for name := range present {
		if name == rule.Requires {
			continue
		}
		if rule.Prefix != "" && strings.HasPrefix(name, rule.Prefix) {
			names = append(names, name)
			continue
		}
		for _, candidate := range rule.Names {
			if candidate == name {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}
