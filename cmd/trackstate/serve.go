package main

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vango-dev/trackstate/internal/config"
	"github.com/vango-dev/trackstate/internal/errors"
	"github.com/vango-dev/trackstate/internal/host"
	"github.com/vango-dev/trackstate/internal/source"
	"github.com/vango-dev/trackstate/pkg/extension"
	"github.com/vango-dev/trackstate/pkg/state"
)

type serveFlags struct {
	configPath string
	document   string
	addr       string
	logLevel   string
	logFormat  string
	metrics    bool
	tracing    bool
	readOnly   bool
}

func serveCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a document over HTTP",
		Long: `Serve a document over HTTP.

The document is loaded from --document, or from the "document" field of
trackstate.json. Until it has loaded, reads answer 503.

Routes:
  GET/PUT/PATCH/DELETE /state/<path>   read, set, merge, delete
  GET /watch?path=a.b                   websocket stream of a subtree
  GET /metrics                          Prometheus metrics (--metrics)

Examples:
  trackstate serve --document settings.yaml
  trackstate serve --config deploy/trackstate.json --metrics
  trackstate serve --document s3://bucket/settings.json --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to trackstate.json (default: nearest one above the working directory)")
	cmd.Flags().StringVarP(&flags.document, "document", "d", "", "Document to serve (file path or s3://bucket/key)")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "Listen address (overrides server.host and server.port)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")
	cmd.Flags().BoolVar(&flags.metrics, "metrics", false, "Serve Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&flags.tracing, "tracing", false, "Trace writes with OpenTelemetry")
	cmd.Flags().BoolVar(&flags.readOnly, "read-only", false, "Reject writes")

	return cmd
}

// loadServeConfig merges trackstate.json with command-line flags.
func loadServeConfig(flags serveFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
		if errors.HasCode(err, "E405") {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if flags.document != "" {
		cfg.Document = flags.document
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if flags.metrics {
		cfg.Metrics.Enabled = true
	}
	if flags.tracing {
		cfg.Tracing.Enabled = true
	}
	if flags.readOnly {
		cfg.Server.ReadOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Document == "" {
		return nil, errors.New("E401").
			WithDetail("No document to serve.").
			WithSuggestion("Pass --document or set \"document\" in trackstate.json")
	}
	if flags.addr != "" {
		hostPart, portPart, err := net.SplitHostPort(flags.addr)
		if err != nil {
			return nil, errors.New("E401").WithDetail("--addr must be host:port or :port").Wrap(err)
		}
		port, err := strconv.Atoi(portPart)
		if err != nil {
			return nil, errors.New("E401").WithDetail("--addr port is not a number").Wrap(err)
		}
		cfg.Server.Host, cfg.Server.Port = hostPart, port
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ping, _ := cfg.PingInterval()

	opts := host.Options{
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingInterval:   ping,
		ReadOnly:       cfg.Server.ReadOnly,
	}
	exts := []state.Extension{extension.Logging(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exts = append(exts, extension.Prometheus(
			extension.WithRegistry(reg),
			extension.WithNamespace(cfg.Metrics.Namespace),
			extension.WithConstLabels(prometheus.Labels{"document": cfg.Name}),
		))
		opts.Gatherer = reg
	}
	if cfg.Tracing.Enabled {
		exts = append(exts, extension.OpenTelemetry(
			extension.WithTracerName(cfg.Tracing.TracerName),
			extension.WithParentContext(ctx),
		))
	}

	h := host.New(opts)

	// The document loads in the background; the store is pending until then.
	// Loading waits for the store so settlement never races New.
	attached := make(chan struct{})
	loading := state.Go(ctx, func(ctx context.Context) (any, error) {
		<-attached
		return source.Load(ctx, cfg.Document, source.WithS3Config(source.S3Config{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		}))
	})
	s, err := state.New(loading, state.WithExtensions(exts...), state.WithDispatcher(h.Dispatch))
	if err != nil {
		close(attached)
		return err
	}
	h.Attach(s)
	close(attached)
	loading.Then(
		func(any) { logger.Info("document loaded", "document", cfg.Document) },
		func(err error) { logger.Error("document failed to load", "document", cfg.Document, "error", err) },
	)

	addr := cfg.Address()
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	success(cmd.OutOrStdout(), "Serving %s on http://%s", cfg.Document, addr)
	if cfg.Metrics.Enabled {
		info(cmd.OutOrStdout(), "Metrics on http://%s/metrics", addr)
	}

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	h.Dispatch(s.Destroy)
	return err
}
