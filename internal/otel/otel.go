package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	events "github.com/hanpama/usergraph/internal/events"
	reqid "github.com/hanpama/usergraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "usergraph"

// Setup exports spans over OTLP/gRPC and subscribes to the event bus.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(tp)
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe turns bus events into spans from tp:
// http.request > graphql.operation > http.client.
func Subscribe(tp trace.TracerProvider) (unsubscribe func()) {
	s := &subscriber{tracer: tp.Tracer(tracerName)}
	return s.register()
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // request id -> trace.Span
	gqlSpans   sync.Map // request id -> trace.Span
	fetchSpans sync.Map // fetch id -> trace.Span
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context) context.Context {
	rid, ok := reqid.FromContext(ctx)
	if !ok {
		return ctx
	}
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.httpSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.gqlSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
			_, span := s.tracer.Start(s.parent(ctx), "http.client", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Method),
				semconv.HTTPURLKey.String(e.URL),
			)
			s.fetchSpans.Store(e.ID, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
			v, ok := s.fetchSpans.LoadAndDelete(e.ID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			if e.Status != 0 {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			}
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
