package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	events "github.com/hanpama/usergraph/internal/events"
	executor "github.com/hanpama/usergraph/internal/executor"
	language "github.com/hanpama/usergraph/internal/language"
	reqid "github.com/hanpama/usergraph/internal/reqid"
	"google.golang.org/grpc/metadata"
)

// Executor runs one GraphQL request.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) *executor.ExecutionResult
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req executor.Request) *executor.ExecutionResult

func (f ExecutorFunc) Execute(ctx context.Context, req executor.Request) *executor.ExecutionResult {
	return f(ctx, req)
}

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	exec Executor
	opt  Options
}

type Options struct {
	// Timeout bounds a request whose context has no deadline. 0 means none.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists inbound HTTP headers forwarded to upstream
	// requests. Header names are case-insensitive. Default is none.
	MetadataHeaders []string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler around exec.
func New(exec Executor, opts ...Option) *Handler {
	var op Options
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: exec, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md[reqid.Header] = []string{rid}
	ctx = metadata.NewOutgoingContext(ctx, md)

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = berr.status
		writeJSON(w, status, errorResponse(berr.message), h.opt.Pretty)
		return
	}

	if r.Method == http.MethodGet && isMutation(req) {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "POST")
		writeJSON(w, status, errorResponse("mutations are not allowed over GET"), h.opt.Pretty)
		return
	}

	if batch != nil {
		out := make([]*executor.ExecutionResult, len(batch))
		for i := range batch {
			out[i] = h.exec.Execute(ctx, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	writeJSON(w, status, h.exec.Execute(ctx, req), h.opt.Pretty)
}

// ------------------ Request parsing ------------------

type requestError struct {
	status  int
	message string
}

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

func parseRequest(r *http.Request, maxBody int64) (executor.Request, []executor.Request, *requestError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return executor.Request{}, nil, badRequest("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return executor.Request{}, nil, badRequest("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return executor.Request{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return executor.Request{}, nil, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return executor.Request{}, nil, badRequest("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return executor.Request{}, nil, &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []executor.Request
		if err := json.Unmarshal(body, &arr); err != nil {
			return executor.Request{}, nil, badRequest("invalid JSON")
		}
		if len(arr) == 0 {
			return executor.Request{}, nil, badRequest("empty batch")
		}
		return executor.Request{}, arr, nil
	}

	var req executor.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return executor.Request{}, nil, badRequest("invalid JSON")
	}
	if req.Query == "" {
		return executor.Request{}, nil, badRequest("missing 'query'")
	}
	return req, nil, nil
}

// isMutation reports whether req selects a mutation. Unparsable queries are
// left for the executor to report.
func isMutation(req executor.Request) bool {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return false
	}
	var op *language.OperationDefinition
	if req.OperationName == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	} else {
		op = doc.Operations.ForName(req.OperationName)
	}
	return op != nil && op.Operation == language.Mutation
}

// ------------------ Response formatting ------------------

func errorResponse(message string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: message}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := contains(opts.AllowedOrigins, "*")
	if !wildcard && !contains(opts.AllowedOrigins, origin) {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
