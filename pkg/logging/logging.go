// Package logging builds the process ectologger on top of zap.
package logging

import (
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "github.com/Ramsey-B/clover/pkg/context"
)

// NewZap returns a JSON production logger, or a console logger when pretty is set.
func NewZap(level string, pretty bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build(zap.AddCallerSkip(3))
}

// New returns an ectologger whose messages are written by z.
func New(z *zap.Logger) ectologger.Logger {
	return ectologger.NewEctoLogger(Sink(z))
}

// Sink forwards ectologger messages to z. Request and tenant ids carried by
// the message context are added as fields.
func Sink(z *zap.Logger) ectologger.EctoLogFunc {
	return func(msg ectologger.EctoLogMessage) {
		ce := z.Check(levelOf(msg.Level), msg.Message)
		if ce == nil {
			return
		}

		fields := make([]zap.Field, 0, len(msg.Fields)+3)
		for k, v := range msg.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if msg.Err != nil {
			fields = append(fields, zap.Error(msg.Err))
		}
		if msg.Ctx != nil {
			if id := appctx.GetRequestID(msg.Ctx); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if _, set := msg.Fields["tenant_id"]; !set {
				if id := appctx.GetTenantID(msg.Ctx); id != "" {
					fields = append(fields, zap.String("tenant_id", id))
				}
			}
		}
		ce.Write(fields...)
	}
}

func levelOf(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal", "panic":
		// the process decides when to exit, not the log call
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}
