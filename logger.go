package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider vends named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

type staticLoggerProvider struct {
	logger Logger
}

func (p staticLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

// ResolveLogger picks the logger for a named component. A provider wins when
// it returns a logger for name; otherwise the explicit logger is used and,
// failing that, the default stdout logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if scoped := provider.GetLogger(name); scoped != nil {
			return provider, scoped
		}
	}

	if logger == nil {
		logger = defLogger{name: name}
	}

	return staticLoggerProvider{logger: logger}, logger
}

type defLogger struct {
	name string
}

func (d defLogger) Trace(msg string, args ...any) { d.print("TRC", msg, args...) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }
func (d defLogger) Fatal(msg string, args ...any) { d.print("FTL", msg, args...) }

func (d defLogger) WithContext(context.Context) Logger {
	return d
}

func (d defLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] IDENTITY ")
	if d.name != "" {
		b.WriteString(d.name)
		b.WriteString(" ")
	}
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	fmt.Println(b.String())
}
