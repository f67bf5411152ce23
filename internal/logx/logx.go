// Package logx provides small prefixed loggers, one per subsystem, in the
// style the teacher uses throughout execution_service.go and main.go
// (log.Printf with a bracketed tag and an emoji marker).
package logx

import (
	"log"
	"os"
)

// Logger wraps the standard library logger with a fixed subsystem tag.
type Logger struct {
	tag string
	std *log.Logger
}

// New returns a Logger that prefixes every line with "[tag] ".
func New(tag string) *Logger {
	return &Logger{
		tag: tag,
		std: log.New(os.Stdout, "", log.LstdFlags),
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.std.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.std.Printf("⚠️ [%s] "+format, append([]any{l.tag}, args...)...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.std.Printf("🚨 [%s] "+format, append([]any{l.tag}, args...)...)
}
