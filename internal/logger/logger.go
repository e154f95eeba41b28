package logger

import (
	"io"
	"os"
	"path/filepath"

	"osintdeck/internal/webconfig"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log zerolog.Logger

// Module sub-loggers
var (
	Auth          zerolog.Logger
	Config        zerolog.Logger
	Audit         zerolog.Logger
	WS            zerolog.Logger
	DB            zerolog.Logger
	Enrich        zerolog.Logger
	Investigation zerolog.Logger
	Notify        zerolog.Logger
	RateLimit     zerolog.Logger
)

func Init(cfg webconfig.LogConfig) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var writer io.Writer
	if cfg.Mode == "debug" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	} else if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		writer = os.Stderr
	} else {
		writer = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	SetOutput(writer)
}

// SetOutput rebuilds the root logger and every module logger on top of w.
func SetOutput(w io.Writer) {
	Log = zerolog.New(w).With().Timestamp().Caller().Logger()

	Auth = module("auth")
	Config = module("config")
	Audit = module("audit")
	WS = module("websocket")
	DB = module("database")
	Enrich = module("enrich")
	Investigation = module("investigation")
	Notify = module("notify")
	RateLimit = module("ratelimit")
}

func module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
