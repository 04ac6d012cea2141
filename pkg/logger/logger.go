// Package logger предоставляет структурированное логирование на базе zerolog.
// В production пишет JSON, в development использует ConsoleWriter.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log - глобальный логгер процесса.
var log zerolog.Logger

// Config содержит настройки логгера.
type Config struct {
	// Level: "trace", "debug", "info", "warn", "error". По умолчанию "info".
	Level string

	// Pretty включает человекочитаемый вывод вместо JSON.
	Pretty bool

	// Service добавляется в каждую запись полем "service".
	Service string

	// Output по умолчанию os.Stdout.
	Output io.Writer
}

func init() {
	Init(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Pretty: strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
	})
}

// Init настраивает глобальный логгер. Вызывается один раз в main.
func Init(cfg Config) {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)

	lctx := zerolog.New(output).Level(level).With().Timestamp().Caller()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	log = lctx.Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug создает событие уровня debug.
func Debug() *zerolog.Event { return log.Debug() }

// Info создает событие уровня info.
func Info() *zerolog.Event { return log.Info() }

// Warn создает событие уровня warn.
func Warn() *zerolog.Event { return log.Warn() }

// Error создает событие уровня error.
func Error() *zerolog.Event { return log.Error() }

// Fatal создает событие уровня fatal. После Msg() процесс завершится с кодом 1.
func Fatal() *zerolog.Event { return log.Fatal() }

// With возвращает контекст для построения дочернего логгера.
func With() zerolog.Context { return log.With() }

// Logger возвращает глобальный логгер.
func Logger() zerolog.Logger { return log }

// SetGlobalLogger подменяет глобальный логгер (используется в тестах).
func SetGlobalLogger(l zerolog.Logger) { log = l }
