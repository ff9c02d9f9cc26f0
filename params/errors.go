package params

import (
	"errors"

	"github.com/goliatone/go-renderlink/core"
)

var (
	ErrUnconvertibleValue = errors.New("params: value has no populated representation")
	ErrDuplicateParameter = errors.New("params: parameter translates to an existing wire name")
	ErrEmptyName          = errors.New("params: parameter name is required")
	ErrRuleViolation      = errors.New("params: parameter rule violated")
)

func usageError(source error, message string, metadata map[string]any) error {
	return core.UsageError(source, message, metadata)
}
