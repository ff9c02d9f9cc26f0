package main

import (
	"io"
	"os"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/mattn/go-isatty"
)

// newLogger builds the CLI logger. Pretty output is reserved for terminals.
func newLogger(level string, w io.Writer, pretty bool) *glog.BaseLogger {
	if pretty {
		return glog.NewLogger(
			glog.WithName("renderlink"),
			glog.WithLevel(level),
			glog.WithLoggerTypePretty(),
			glog.WithWriter(w),
		)
	}
	return glog.NewLogger(
		glog.WithName("renderlink"),
		glog.WithLevel(level),
		glog.WithLoggerTypeConsole(),
		glog.WithWriter(w),
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	_ glog.Logger         = (*glog.BaseLogger)(nil)
	_ glog.LoggerProvider = (*glog.BaseLogger)(nil)
)
