package logging

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	events "github.com/hanpama/usergraph/internal/events"
	reqid "github.com/hanpama/usergraph/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSubscribeLogsFetchFailures(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	core, logs := observer.New(zapcore.DebugLevel)
	unsubscribe := Subscribe(zap.New(core))
	t.Cleanup(unsubscribe)

	ctx, rid := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.FetchFinish{Method: "GET", URL: "http://upstream/users/999", Status: 404, Err: errors.New("status 404")})
	eventbus.Publish(ctx, events.FetchFinish{Method: "GET", URL: "http://upstream/users/23", Status: 200, Duration: time.Millisecond})

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, rid, entries[0].ContextMap()["request_id"])
	require.Equal(t, int64(404), entries[0].ContextMap()["status"])
	require.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestSubscribeLogsHTTPStatus(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	core, logs := observer.New(zapcore.DebugLevel)
	unsubscribe := Subscribe(zap.New(core))
	t.Cleanup(unsubscribe)

	ctx, _ := reqid.NewContext(context.Background())
	r := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 200})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 413})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 503})

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.InfoLevel, entries[1].Level)
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)
	require.Equal(t, "/graphql", entries[2].ContextMap()["path"])
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "info", "json")
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("shown", zap.String("k", "v"))
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"k":"v"`)

	_, err = newLogger(&buf, "info", "xml")
	require.Error(t, err)
	_, err = newLogger(&buf, "loud", "json")
	require.Error(t, err)
}
