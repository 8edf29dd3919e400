package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/rs/zerolog"
)

type DefaultLogger struct {
	zl       zerolog.Logger
	debug    bool
	safeLogs bool
	prefix   string
}

var Default = New(os.Stdout, os.Getenv("DEBUG") == "true", os.Getenv("SAFE_LOGS") == "true")

var urlRegex = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*:\/\/[a-zA-Z0-9+%/.\-:_?&=#@+]+`)

// New builds a console logger writing to out.
func New(out io.Writer, debug, safeLogs bool) *DefaultLogger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return &DefaultLogger{
		zl:       zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stdout}).Level(level).With().Timestamp().Logger(),
		debug:    debug,
		safeLogs: safeLogs,
	}
}

// Configure replaces Default with a logger using the given switches.
func Configure(debug, safeLogs bool) {
	Default = New(os.Stdout, debug, safeLogs)
}

func cleanString(text string) string {
	return urlRegex.ReplaceAllString(text, "[redacted url]")
}

func (l *DefaultLogger) format(format string, v ...any) string {
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	if l.safeLogs {
		return cleanString(msg)
	}
	return msg
}

func (l *DefaultLogger) With(prefix string) Logger {
	child := *l
	if l.prefix != "" {
		prefix = l.prefix + "] [" + prefix
	}
	child.prefix = prefix
	return &child
}

func (l *DefaultLogger) Log(format string) {
	l.zl.Info().Msg(l.format(format))
}

func (l *DefaultLogger) Logf(format string, v ...any) {
	l.zl.Info().Msg(l.format(format, v...))
}

func (l *DefaultLogger) Debug(format string) {
	if l.debug {
		l.zl.Debug().Msg(l.format(format))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...any) {
	if l.debug {
		l.zl.Debug().Msg(l.format(format, v...))
	}
}

func (l *DefaultLogger) Error(format string) {
	l.zl.Error().Msg(l.format(format))
}

func (l *DefaultLogger) Errorf(format string, v ...any) {
	l.zl.Error().Msg(l.format(format, v...))
}

func (l *DefaultLogger) Warn(format string) {
	l.zl.Warn().Msg(l.format(format))
}

func (l *DefaultLogger) Warnf(format string, v ...any) {
	l.zl.Warn().Msg(l.format(format, v...))
}

func (l *DefaultLogger) Fatal(format string) {
	l.zl.Fatal().Msg(l.format(format))
}

func (l *DefaultLogger) Fatalf(format string, v ...any) {
	l.zl.Fatal().Msg(l.format(format, v...))
}
