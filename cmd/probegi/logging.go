package main

import (
	"os"

	"github.com/gekko3d/probegi"
	"github.com/op/go-logging"
	"github.com/urfave/cli"
)

const logModule = "probegi"

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var leveledBackend logging.LeveledBackend

func init() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	leveledBackend = logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))
	leveledBackend.SetLevel(logging.NOTICE, "")
	logging.SetBackend(leveledBackend)
}

// leveledLogger adapts a go-logging logger to the probegi Logger interface.
type leveledLogger struct {
	log *logging.Logger
}

func newLogger() *leveledLogger {
	return &leveledLogger{log: logging.MustGetLogger(logModule)}
}

// Component logs under the go-logging module "probegi.name", which follows
// the default level set by -v and -vv.
func (l *leveledLogger) Component(name string) probegi.Logger {
	return &leveledLogger{log: logging.MustGetLogger(logModule + "." + name)}
}

func (l *leveledLogger) DebugEnabled() bool {
	return leveledBackend.IsEnabledFor(logging.DEBUG, logModule)
}

func (l *leveledLogger) SetDebug(enabled bool) {
	if enabled {
		leveledBackend.SetLevel(logging.DEBUG, "")
		return
	}
	leveledBackend.SetLevel(logging.INFO, "")
}

func (l *leveledLogger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *leveledLogger) Infof(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *leveledLogger) Warnf(format string, args ...any)  { l.log.Warningf(format, args...) }
func (l *leveledLogger) Errorf(format string, args ...any) { l.log.Errorf(format, args...) }
func (l *leveledLogger) Noticef(format string, args ...any) {
	l.log.Noticef(format, args...)
}

var logger = newLogger()

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		leveledBackend.SetLevel(logging.INFO, "")
	}
	if ctx.GlobalBool("vv") {
		logger.SetDebug(true)
	}
}
