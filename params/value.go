package params

import (
	"strconv"
	"strings"
)

type Kind int

const (
	// KindUnset marks a multi-representation slot with no representation populated.
	KindUnset Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindEnum:
		return "enum"
	default:
		return "unset"
	}
}

// Value is a tagged parameter value. The zero Value is KindUnset.
type Value struct {
	kind    Kind
	boolean bool
	integer int64
	number  float64
	text    string
	list    []string
}

func Bool(v bool) Value { return Value{kind: KindBool, boolean: v} }

func Int(v int64) Value { return Value{kind: KindInt, integer: v} }

func Float(v float64) Value { return Value{kind: KindFloat, number: v} }

func String(v string) Value { return Value{kind: KindString, text: v} }

func List(values ...string) Value {
	return Value{kind: KindList, list: append([]string(nil), values...)}
}

// Enum holds an enumerated token; it renders as its lowercase wire name.
func Enum(token string) Value { return Value{kind: KindEnum, text: token} }

func (v Value) Kind() Kind { return v.kind }

// IsDefault reports whether v equals the empty sentinel of its kind.
func (v Value) IsDefault() bool {
	switch v.kind {
	case KindBool:
		return !v.boolean
	case KindInt:
		return v.integer == 0
	case KindFloat:
		return v.number == 0
	case KindString, KindEnum:
		return v.text == ""
	case KindList:
		return len(v.list) == 0
	default:
		return false
	}
}

// Format renders v in its wire form, before percent-encoding.
func (v Value) Format() (string, error) {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.boolean), nil
	case KindInt:
		return strconv.FormatInt(v.integer, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.number, 'f', -1, 64), nil
	case KindString:
		return v.text, nil
	case KindEnum:
		return strings.ToLower(v.text), nil
	case KindList:
		return strings.Join(v.list, ","), nil
	default:
		return "", ErrUnconvertibleValue
	}
}

// Raw returns a JSON friendly representation of v.
func (v Value) Raw() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindInt:
		return v.integer
	case KindFloat:
		return v.number
	case KindString:
		return v.text
	case KindEnum:
		return strings.ToLower(v.text)
	case KindList:
		return append([]string(nil), v.list...)
	default:
		return nil
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	default:
		return v.boolean == other.boolean &&
			v.integer == other.integer &&
			v.number == other.number &&
			v.text == other.text
	}
}

// StringOrList is a slot that takes either a single string or a list.
type StringOrList struct {
	Single *string
	Many   []string
}

func OneString(v string) StringOrList { return StringOrList{Single: &v} }

func ManyStrings(values ...string) StringOrList {
	return StringOrList{Many: append([]string(nil), values...)}
}

func (s StringOrList) Value() Value {
	switch {
	case s.Single != nil:
		return String(*s.Single)
	case s.Many != nil:
		return List(s.Many...)
	default:
		return Value{}
	}
}

// BoolNumberOrString is a slot that takes a boolean, a number or a string.
type BoolNumberOrString struct {
	Flag   *bool
	Number *float64
	Text   *string
}

func FlagValue(v bool) BoolNumberOrString { return BoolNumberOrString{Flag: &v} }

func NumberValue(v float64) BoolNumberOrString { return BoolNumberOrString{Number: &v} }

func TextValue(v string) BoolNumberOrString { return BoolNumberOrString{Text: &v} }

func (b BoolNumberOrString) Value() Value {
	switch {
	case b.Flag != nil:
		return Bool(*b.Flag)
	case b.Number != nil:
		return Float(*b.Number)
	case b.Text != nil:
		return String(*b.Text)
	default:
		return Value{}
	}
}

// Number returns the numeric form of an Int or Float value.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.integer), true
	case KindFloat:
		return v.number, true
	default:
		return 0, false
	}
}
