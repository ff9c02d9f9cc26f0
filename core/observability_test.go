package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestObserver_SuccessRecordsMetricsAndDebugLog(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	observer := Observer{Logger: logger, Metrics: metrics}

	observer.Observe(context.Background(), time.Now().Add(-5*time.Millisecond), "Render Submit", nil, map[string]any{
		"render_id": "r_1",
		"format":    "png",
	})

	if len(metrics.counters) != 1 || metrics.counters[0].name != "renderlink.render_submit.total" {
		t.Fatalf("unexpected counters %#v", metrics.counters)
	}
	tags := metrics.counters[0].tags
	if tags["status"] != "success" || tags["format"] != "png" {
		t.Fatalf("unexpected counter tags %#v", tags)
	}
	if _, ok := tags["render_id"]; ok {
		t.Fatalf("expected render id to stay out of metric tags, got %#v", tags)
	}
	if len(metrics.histograms) != 1 || metrics.histograms[0].name != "renderlink.render_submit.duration_ms" {
		t.Fatalf("unexpected histograms %#v", metrics.histograms)
	}

	records := logger.snapshot()
	if len(records) != 1 || records[0].level != "debug" || records[0].msg != "render_submit succeeded" {
		t.Fatalf("unexpected log records %#v", records)
	}
	if records[0].fields["status"] != "success" || records[0].fields["render_id"] != "r_1" {
		t.Fatalf("expected structured fields on log record, got %#v", records[0].fields)
	}
}

func TestObserver_FailureCarriesTextCode(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	observer := Observer{Logger: logger, Metrics: metrics}

	err := TimeoutError(errors.New("deadline"), "render: deadline elapsed", map[string]any{"render_id": "r_2"})
	observer.Observe(context.Background(), time.Now(), "render_await", err, map[string]any{"render_id": "r_2"})

	if metrics.counters[0].tags["status"] != "failure" || metrics.counters[0].tags["text_code"] != ErrorTimeout {
		t.Fatalf("unexpected failure tags %#v", metrics.counters[0].tags)
	}
	records := logger.snapshot()
	if len(records) != 1 || records[0].level != "error" || records[0].msg != "render_await failed" {
		t.Fatalf("unexpected log records %#v", records)
	}
	if records[0].fields["text_code"] != ErrorTimeout || records[0].fields["error"] == "" {
		t.Fatalf("expected error fields on failure log, got %#v", records[0].fields)
	}
}

func TestObserver_ZeroValueIsSafe(t *testing.T) {
	var observer Observer
	observer.Observe(context.Background(), time.Now(), "", nil, nil)
	observer.Info(context.Background(), "ignored", nil)
	observer.Debug(context.Background(), "ignored", map[string]any{"k": "v"})
}

func TestObserver_InfoFlattensFieldsForPlainLoggers(t *testing.T) {
	logger := &plainLogger{}
	observer := Observer{Logger: logger}
	observer.Info(context.Background(), "client ready", map[string]any{"b": 2, "a": 1})

	if logger.msg != "client ready" {
		t.Fatalf("unexpected message %q", logger.msg)
	}
	if len(logger.args) != 4 || logger.args[0] != "a" || logger.args[2] != "b" {
		t.Fatalf("expected sorted key/value args, got %#v", logger.args)
	}
}

type plainLogger struct {
	msg  string
	args []any
}

func (l *plainLogger) Trace(string, ...any) {}
func (l *plainLogger) Debug(string, ...any) {}
func (l *plainLogger) Info(msg string, args ...any) {
	l.msg = msg
	l.args = args
}
func (l *plainLogger) Warn(string, ...any)                {}
func (l *plainLogger) Error(string, ...any)               {}
func (l *plainLogger) Fatal(string, ...any)               {}
func (l *plainLogger) WithContext(context.Context) Logger { return l }
