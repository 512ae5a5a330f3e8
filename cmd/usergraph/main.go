package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	graph "github.com/hanpama/usergraph/internal/graph"
	logging "github.com/hanpama/usergraph/internal/logging"
	otel "github.com/hanpama/usergraph/internal/otel"
	server "github.com/hanpama/usergraph/internal/server"
	store "github.com/hanpama/usergraph/internal/store"
	upstream "github.com/hanpama/usergraph/internal/upstream"
	users "github.com/hanpama/usergraph/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "USERGRAPH"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "usergraph",
		Short:        "GraphQL API over a users and companies REST backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "",
		"Configuration file. Overridden by environment variables and flags.")
	root.PersistentFlags().String("log.level", "info", "Log level: debug, info, warn or error")
	root.PersistentFlags().String("log.format", "json", "Log format: json or console")

	root.AddCommand(newServeCmd(), newSchemaCmd(), newQueryCmd())
	return root
}

// configure returns a viper instance for cmd: flags, then USERGRAPH_* env,
// then the --config file.
func configure(cmd *cobra.Command) (*viper.Viper, error) {
	conf := viper.New()
	if err := conf.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := conf.BindPFlags(cmd.InheritedFlags()); err != nil {
		return nil, err
	}
	conf.SetEnvPrefix(envPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	conf.AutomaticEnv()

	if cfg := conf.GetString("config"); cfg != "" {
		conf.SetConfigFile(cfg)
		if err := conf.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return conf, nil
}

func addSourceFlags(fs *pflag.FlagSet) {
	fs.String("source", "rest", "Data source: rest or memory")
	fs.String("upstream.url", "http://localhost:3000", "Base URL of the REST backend")
	fs.Duration("upstream.timeout", 0, "Timeout of one upstream fetch. 0 disables it")
	fs.String("memory.seed", "", "JSON file with users and companies for --source memory")
	fs.Bool("graphql.batch-companies", false, "Fetch each distinct User.company once per depth")
	fs.Int("graphql.max-concurrency", 0, "Max concurrent resolvers per depth. 0 is unbounded")
}

func newSource(conf *viper.Viper) (users.Source, error) {
	switch src := conf.GetString("source"); src {
	case "rest":
		return upstream.New(conf.GetString("upstream.url"),
			upstream.WithTimeout(conf.GetDuration("upstream.timeout")))
	case "memory":
		if path := conf.GetString("memory.seed"); path != "" {
			return store.LoadFile(path)
		}
		return store.NewMemory(store.Seed())
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

func newSchema(conf *viper.Viper) (*graph.Schema, error) {
	src, err := newSource(conf)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	var opts []users.Option
	if conf.GetBool("graphql.batch-companies") {
		opts = append(opts, users.WithCompanyBatching())
	}
	if n := conf.GetInt("graphql.max-concurrency"); n > 0 {
		opts = append(opts, users.WithMaxConcurrency(n))
	}
	return users.NewSchema(src, opts...)
}

// ------------------ serve ------------------

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GraphQL endpoint at /graphql",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configure(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), conf)
		},
	}
	fs := cmd.Flags()
	fs.String("server.addr", ":4000", "HTTP listen address")
	fs.Bool("server.pretty", false, "Pretty-print JSON responses")
	fs.Duration("server.timeout", 0, "Per-request timeout. 0 disables it")
	fs.Int64("server.max-body-bytes", 1<<20, "Max request body size. 0 is unlimited")
	fs.StringSlice("server.cors-origin", nil, "Allowed CORS origin. Repeatable; * allows any")
	fs.StringSlice("server.metadata-header", nil, "Forward an inbound header to the upstream. Repeatable")
	fs.String("otel.endpoint", "", "OTLP/gRPC collector endpoint. Empty disables tracing")
	fs.String("otel.service", "usergraph", "OpenTelemetry service name")
	addSourceFlags(fs)
	return cmd
}

func newHandler(conf *viper.Viper) (http.Handler, error) {
	s, err := newSchema(conf)
	if err != nil {
		return nil, err
	}
	var sopts []server.Option
	if conf.GetBool("server.pretty") {
		sopts = append(sopts, server.WithPretty())
	}
	if d := conf.GetDuration("server.timeout"); d > 0 {
		sopts = append(sopts, server.WithTimeout(d))
	}
	if n := conf.GetInt64("server.max-body-bytes"); n > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(n))
	}
	if origins := conf.GetStringSlice("server.cors-origin"); len(origins) > 0 {
		sopts = append(sopts, server.WithCORS(origins...))
	}
	if hdrs := conf.GetStringSlice("server.metadata-header"); len(hdrs) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(hdrs...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", s.Handler(sopts...))
	return mux, nil
}

func serve(ctx context.Context, conf *viper.Viper) error {
	log, err := logging.New(conf.GetString("log.level"), conf.GetString("log.format"))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	eventbus.Use(eventbus.New())
	defer logging.Subscribe(log)()

	shutdownTracing, err := otel.Setup(conf.GetString("otel.endpoint"), conf.GetString("otel.service"))
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	h, err := newHandler(conf)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              conf.GetString("server.addr"),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("GraphQL server listening",
		zap.String("addr", srv.Addr),
		zap.String("source", conf.GetString("source")))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ------------------ schema ------------------

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema in SDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configure(cmd)
			if err != nil {
				return err
			}
			out := conf.GetString("out")
			conf.Set("source", "memory")
			s, err := newSchema(conf)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), s.SDL())
				return err
			}
			return os.WriteFile(out, []byte(s.SDL()), 0o644)
		},
	}
	cmd.Flags().String("out", "", "Write the SDL to a file instead of stdout")
	return cmd
}

// ------------------ query ------------------

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <document>",
		Short: "Execute one GraphQL document and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configure(cmd)
			if err != nil {
				return err
			}
			req := graph.Request{Query: args[0], OperationName: conf.GetString("operation-name")}
			if v := conf.GetString("variables"); v != "" {
				if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
					return fmt.Errorf("invalid --variables: %w", err)
				}
			}
			s, err := newSchema(conf)
			if err != nil {
				return err
			}
			res := s.Execute(cmd.Context(), req)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	fs := cmd.Flags()
	fs.String("variables", "", "Variables as a JSON object")
	fs.String("operation-name", "", "Operation to run when the document has several")
	addSourceFlags(fs)
	return cmd
}
