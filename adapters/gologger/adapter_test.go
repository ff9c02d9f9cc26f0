package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-renderlink/core"
)

func TestComponent_ResolvesProviderThenLogger(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	got := Component(core.Runtime{LoggerProvider: provider, Logger: loggerOnly}, "worker").(*capturingLogger)
	if got.id != "provider" || provider.lastName != "renderlink.worker" {
		t.Fatalf("expected provider logger for renderlink.worker, got %q from %q", got.id, provider.lastName)
	}

	got = Component(core.Runtime{Logger: loggerOnly}, "worker").(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}

	if Component(core.Runtime{}, "worker") == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestComponentName(t *testing.T) {
	cases := map[string]string{
		"":           "renderlink",
		" webhook ":  "renderlink.webhook",
		".status.":   "renderlink.status",
		"render.job": "renderlink.render.job",
	}
	for component, want := range cases {
		if got := ComponentName(component); got != want {
			t.Fatalf("ComponentName(%q) = %q, want %q", component, got, want)
		}
	}
}

func TestClientOptions_InstallResolvedLogger(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	runtime, err := core.Build(core.Config{APIKey: "key_1"}, ClientOptions(provider, nil)...)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	runtime.Observer().Info(context.Background(), "hello", nil)
	if providerLogger.lastInfo.msg != "hello" {
		t.Fatalf("expected runtime to log through provider logger, got %#v", providerLogger.lastInfo)
	}
}

func TestGoJobBridgeCompatibility(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	jobProvider, jobLogger := ResolveForJob(core.Runtime{LoggerProvider: provider})
	if jobProvider == nil {
		t.Fatalf("expected go-job provider bridge")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job logger bridge")
	}

	bridged := jobProvider.GetLogger("renderlink.worker")
	bridged.Info("hello", "k", "v")

	captured := providerLogger.lastInfo
	if captured.msg != "hello" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if captured.args[0] != "k" || captured.args[1] != "v" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger   *capturingLogger
	lastName string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	p.lastName = name
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
