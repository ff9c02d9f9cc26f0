package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-renderlink/core"
)

// Namespace is the logger name of the render client. Components log under
// Namespace + "." + component.
const Namespace = "renderlink"

// ComponentName returns the logger name for a client component.
func ComponentName(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" {
		return Namespace
	}
	return Namespace + "." + component
}

// ClientOptions resolves a logger pair (provider > logger > nop) and returns
// the client options that install it, so a host and its render client log
// through the same provider.
func ClientOptions(provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := glog.Resolve(Namespace, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}

// Component returns the logger for one part of a built client, falling back
// to the runtime logger and then to a nop logger.
func Component(runtime core.Runtime, component string) glog.Logger {
	_, logger := glog.Resolve(ComponentName(component), runtime.LoggerProvider, runtime.Logger)
	return logger
}

// ResolveForJob bridges the runtime loggers to go-job for render workers.
func ResolveForJob(runtime core.Runtime) (job.LoggerProvider, job.Logger) {
	provider, logger := glog.Resolve(ComponentName("worker"), runtime.LoggerProvider, runtime.Logger)
	return job.GoLoggerProvider(provider), job.GoLogger(logger)
}
