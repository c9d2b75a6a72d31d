// Package logging provides the default application.Logger implementation, a
// thin wrapper over the standard library's log.Logger with level prefixes.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// StdLogger writes level-prefixed lines through a *log.Logger. It satisfies
// application.Logger without importing that package, so it has no
// dependency on the engines that consume it.
type StdLogger struct {
	logger *log.Logger
}

// New returns a StdLogger writing to w with the standard date/time flags.
func New(w io.Writer) *StdLogger {
	return &StdLogger{logger: log.New(w, "", log.LstdFlags)}
}

// Default returns a StdLogger writing to os.Stderr.
func Default() *StdLogger {
	return New(os.Stderr)
}

func (l *StdLogger) Debugf(format string, v ...any) { l.logger.Output(2, "DEBUG "+fmt.Sprintf(format, v...)) }
func (l *StdLogger) Infof(format string, v ...any)  { l.logger.Output(2, "INFO  "+fmt.Sprintf(format, v...)) }
func (l *StdLogger) Warnf(format string, v ...any)  { l.logger.Output(2, "WARN  "+fmt.Sprintf(format, v...)) }
func (l *StdLogger) Errorf(format string, v ...any) { l.logger.Output(2, "ERROR "+fmt.Sprintf(format, v...)) }
