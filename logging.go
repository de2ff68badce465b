package probegi

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/gekko3d/probegi/gi/core"
)

// Logger is the logging surface taken by every probegi package.
type Logger = core.Logger

// ComponentLogger is implemented by loggers that can tag the lines of one
// part of the system, such as the probe volume or the data store.
type ComponentLogger interface {
	Logger
	Component(name string) Logger
}

// componentLogger tags l for name when it supports it, else returns l.
func componentLogger(l Logger, name string) Logger {
	if cl, ok := l.(ComponentLogger); ok {
		return cl.Component(name)
	}
	return l
}

type debugSwitch struct {
	mu sync.Mutex
	on bool
}

// DefaultLogger writes "[component] LEVEL: message" lines. Loggers derived
// through Component share the writers and one debug switch with their root.
type DefaultLogger struct {
	debug     *debugSwitch
	component string
	out       *log.Logger
	err       *log.Logger
}

func NewDefaultLogger(component string, debug bool) *DefaultLogger {
	return NewWriterLogger(component, debug, os.Stdout, os.Stderr)
}

// NewWriterLogger logs debug and info lines to out, warnings and errors to errOut.
func NewWriterLogger(component string, debug bool, out, errOut io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:     &debugSwitch{on: debug},
		component: component,
		out:       log.New(out, "", flags),
		err:       log.New(errOut, "", flags),
	}
}

// Component returns a logger tagged "parent/name".
func (l *DefaultLogger) Component(name string) Logger {
	c := *l
	if l.component != "" {
		c.component = l.component + "/" + name
	} else {
		c.component = name
	}
	return &c
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.debug.mu.Lock()
	defer l.debug.mu.Unlock()
	return l.debug.on
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.debug.mu.Lock()
	l.debug.on = enabled
	l.debug.mu.Unlock()
}

func (l *DefaultLogger) line(level string, format string, args ...any) string {
	if l.component != "" {
		return fmt.Sprintf("[%s] %s: %s", l.component, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.line("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.line("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.line("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.line("ERROR", format, args...))
}

func NewNopLogger() Logger { return core.NewNopLogger() }
