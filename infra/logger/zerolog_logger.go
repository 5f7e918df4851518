package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// defaultComponent labels log lines from call sites that did not name one.
const defaultComponent = "aidline"

// ZerologLogger adapts rs/zerolog to the core logger interface.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a logger tagged with the service and component
// fields. APP_ENV=dev selects the human-readable console writer; anything
// else emits JSON lines for log shipping.
func NewZerologLogger(component string) Logger {
	if component == "" {
		component = defaultComponent
	}
	var z zerolog.Logger
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		z = zerolog.New(writer)
	} else {
		z = zerolog.New(os.Stdout)
	}
	z = z.With().Timestamp().
		Str("service", "aidline").
		Str("component", component).
		Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

// Debugw attaches the fields map to one debug line.
func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
