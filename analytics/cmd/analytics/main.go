package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"product-catalog-platform/analytics/internal/archive"
	"product-catalog-platform/analytics/internal/projector"
	"product-catalog-platform/analytics/internal/query"
	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/awsx"
	"product-catalog-platform/shared/config"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/httpx"
	"product-catalog-platform/shared/influxx"
	"product-catalog-platform/shared/logx"
	"product-catalog-platform/shared/metricsx"
	"product-catalog-platform/shared/mqx"
	"product-catalog-platform/shared/observability"
	"product-catalog-platform/shared/sellerx"
)

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Env     string `json:"env,omitempty"`
	Version string `json:"version,omitempty"`
}

func main() {
	cfg, problems := config.Load("analytics", 8081)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.AnalyticsTable == "" {
		problems = append(problems, config.Problem{Field: "ANALYTICS_TABLE", Message: "ANALYTICS_TABLE is required"})
	}
	if cfg.HistoricalBucket == "" || cfg.ArchiveBucket == "" {
		problems = append(problems, config.Problem{Field: "S3_HISTORICAL_BUCKET", Message: "both archive buckets are required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	metricsx.Register()

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		}); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	awsCfg, err := awsx.LoadConfig(context.Background(), cfg)
	if err != nil {
		logger.Error(context.Background(), "aws_init_failed", "aws config init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	st := store.New(awsx.NewDynamoDB(awsCfg, cfg), cfg.AnalyticsTable)
	ar := archive.New(awsx.NewS3(awsCfg, cfg), cfg.HistoricalBucket, cfg.ArchiveBucket)

	var timeSeries projector.TimeSeries
	if cfg.InfluxURL != "" {
		influx, err := influxx.New(cfg)
		if err != nil {
			logger.Error(context.Background(), "influx_init_failed", "influx init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		} else {
			defer influx.Close()
			timeSeries = influx
		}
	}

	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "analytics-service"
	}
	reader, err := mqx.NewConsumer(cfg, events.TopicProductEvents, groupID)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka reader init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer reader.Close()

	proj := projector.New(st, ar, timeSeries, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info(ctx, "consumer_start", "product events consumer started",
			slog.String("topic", events.TopicProductEvents),
			slog.String("group", groupID),
		)
		mqx.RunConsumer(ctx, reader, groupID, proj.Handle, logger)
		logger.Info(context.Background(), "consumer_stop", "product events consumer stopped")
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ok",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})
	mux.Handle("GET /metrics", metricsx.Handler())
	query.Handler{Store: st}.Register(mux)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})

	handler := httpx.WrapServeMux(mux, notFound)
	handler = sellerHeaderMiddleware(handler)
	handler = httpx.WithTimeout(cfg.RequestTimeout, handler)
	handler = metricsx.Instrument(handler)
	handler = httpx.WithRequestID(handler)
	handler = httpx.WithRecover(logger, handler)
	handler = httpx.WithRequestLog(logger, httpx.RequestLogOptions{SkipPaths: map[string]bool{"/healthz": true, "/metrics": true}}, handler)
	handler = otelhttp.NewHandler(handler, "http")

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "service_start", "starting service",
			slog.String("addr", server.Addr),
			slog.Int("http_port", cfg.HTTPPort),
		)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server_failed", "server failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "shutdown_failed", "shutdown failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	wg.Wait()
	logger.Info(context.Background(), "service_stop", "service stopped")
}

// sellerHeaderMiddleware scopes analytics reads behind the gateway, which
// forwards the verified seller identity as a header.
func sellerHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := strings.TrimSpace(r.Header.Get("X-Seller-ID")); v != "" {
			ctx := sellerx.WithSeller(r.Context(), sellerx.SellerContext{ID: v})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
