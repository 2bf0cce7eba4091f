package accounts

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

func defaultLogger() Logger {
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	).GetLogger("accounts")
}

// ResolveLogger returns the named logger from provider, or fallback when the
// provider is nil or yields nothing. A nil fallback resolves to the default
// logger.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) Logger {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return defaultLogger()
}
