// Package observability provides the process logger and Prometheus metrics.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/gofish/internal/config"
)

// Field keys shared by every gofishd log entry.
const (
	FieldService    = "service"
	FieldRoom       = "room"
	FieldSession    = "session"
	FieldConnection = "connection"
	FieldAction     = "action"
	FieldEvent      = "event"
)

// Room tags an entry with a room code.
func Room(code string) zap.Field { return zap.String(FieldRoom, code) }

// Session tags an entry with a session id.
func Session(id string) zap.Field { return zap.String(FieldSession, id) }

// Connection tags an entry with a transport connection id.
func Connection(id string) zap.Field { return zap.String(FieldConnection, id) }

// Action tags an entry with an inbound action name.
func Action(name string) zap.Field { return zap.String(FieldAction, name) }

// Event tags an entry with an outbound event kind.
func Event(kind string) zap.Field { return zap.String(FieldEvent, kind) }

// NewLogger creates the process logger. Every entry carries a "service"
// field naming the binary.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, service string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Sampling = nil
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if service != "" {
		zapCfg.InitialFields = map[string]any{FieldService: service}
	}

	logger, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
