package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	events "github.com/hanpama/usergraph/internal/events"
	reqid "github.com/hanpama/usergraph/internal/reqid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing to stderr. format is "json" or "console".
func New(level, format string) (*zap.Logger, error) {
	return newLogger(os.Stderr, level, format)
}

func newLogger(w io.Writer, level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

// Subscribe logs finished HTTP requests, GraphQL operations and upstream
// fetches. HTTP requests log at info, or warn on a 5xx status. Failed
// operations and fetches log at warn, successful ones at debug.
func Subscribe(log *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
			}
			if e.Status >= 500 {
				log.Warn("http request", fields...)
				return
			}
			log.Info("http request", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("operation", e.OperationName),
				zap.String("type", e.OperationType),
				zap.Duration("duration", e.Duration),
			}
			if len(e.Errors) > 0 {
				log.Warn("graphql operation", append(fields, zap.Errors("errors", e.Errors))...)
				return
			}
			log.Debug("graphql operation", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("method", e.Method),
				zap.String("url", e.URL),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				log.Warn("upstream fetch", append(fields, zap.Error(e.Err))...)
				return
			}
			log.Debug("upstream fetch", fields...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) zap.Field {
	id, _ := reqid.FromContext(ctx)
	return zap.String("request_id", id)
}
