package logger

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var l = newDefault()

func newDefault() logr.Logger {
	if !envBool(envLogEnable, true) {
		return logr.Discard()
	}

	stdr.SetVerbosity(envInt(envLogLevel, 0))
	if envBool(envDebug, false) {
		stdr.SetVerbosity(1)
	}

	return stdr.New(log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile)).WithName("comet")
}

// Replace replaces the package logger, e.g. with one built by the host application.
func Replace(logger logr.Logger) {
	l = logger
}

// Get returns a named child of the package logger.
func Get(name string) logr.Logger {
	return l.WithName(name)
}

func Info(msg string, keysAndValues ...interface{}) {
	l.WithCallDepth(1).Info(msg, keysAndValues...)
}

// Debug logs at verbosity 1, enabled with LOG_LEVEL>=1 or DEBUG=true.
func Debug(msg string, keysAndValues ...interface{}) {
	l.WithCallDepth(1).V(1).Info(msg, keysAndValues...)
}

func Error(err error, msg string, keysAndValues ...interface{}) {
	l.WithCallDepth(1).Error(err, msg, keysAndValues...)
}
