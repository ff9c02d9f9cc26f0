package core

import (
	"context"
	"fmt"
	"strings"
)

// MetricsRecorder receives one counter and one duration histogram per
// observed operation, named renderlink.<operation>.total and
// renderlink.<operation>.duration_ms.
type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

const metricPrefix = "renderlink."

// Fields promoted from log fields to metric tags. Anything else stays out of
// the tag set to keep cardinality bounded.
var metricTagFields = []string{"format", "event", "text_code"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func counterName(operation string) string {
	return metricPrefix + operation + ".total"
}

func durationName(operation string) string {
	return metricPrefix + operation + ".duration_ms"
}

func metricTags(operation, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range metricTagFields {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
