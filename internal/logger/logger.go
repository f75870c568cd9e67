package logger

import (
	"io"
	"os"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"prepcuet/internal/config"
)

var rollbarEnabled bool

// Init configures the global zerolog logger. Error and above are forwarded to
// Rollbar when a token is configured.
func Init(cfg config.LogConfig) error {
	return initWithWriter(cfg, os.Stdout)
}

func initWithWriter(cfg config.LogConfig, out io.Writer) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).With().Timestamp().Str("env", cfg.Environment).Logger()

	if cfg.RollbarToken != "" {
		rollbar.SetToken(cfg.RollbarToken)
		rollbar.SetEnvironment(cfg.Environment)
		rollbar.SetEnabled(true)
		rollbarEnabled = true
		logger = logger.Hook(rollbarHook{})
	}
	log.Logger = logger
	return nil
}

// Close flushes pending Rollbar reports.
func Close() {
	if rollbarEnabled {
		rollbar.Close()
	}
}

type rollbarHook struct{}

func (rollbarHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.ErrorLevel:
		rollbar.Error(msg)
	case zerolog.FatalLevel, zerolog.PanicLevel:
		rollbar.Critical(msg)
	}
}
