package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-sod/knn/internal/buildinfo"
	"github.com/go-sod/knn/internal/collect"
	knnsrv "github.com/go-sod/knn/internal/config"
	"github.com/go-sod/knn/internal/logging"
	"github.com/go-sod/knn/internal/metrics"
	"github.com/go-sod/knn/internal/predict"
	"github.com/go-sod/knn/internal/server"
	"github.com/go-sod/knn/internal/setup"
	"github.com/go-sod/knn/internal/shutdown"
	"github.com/go-sod/knn/internal/train"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	_, _ = fmt.Fprint(os.Stdout, buildinfo.Graffiti)
	_, _ = fmt.Fprintf(
		os.Stdout,
		"%s: %s, %s\n",
		buildinfo.Info.Name(),
		buildinfo.Info.Time(),
		buildinfo.Info.Tag(),
	)

	ctx, done := shutdown.New()
	defer done()

	logger := logging.NewLoggerFromEnv()
	ctx = logging.WithLogger(ctx, logger)
	if err := run(ctx, done); err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, cancel func()) error {
	logger := logging.FromContext(ctx)
	config := knnsrv.Config{}
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(context.Background())

	shutdownCh := make(chan error, 1)
	dispatcher, err := env.ProvideDispatcher()(shutdownCh)
	if err != nil {
		return fmt.Errorf("dispatcher provider function error: %w", err)
	}
	if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher.Run: %w", err)
	}

	metricsHandler, err := metrics.NewHandler("knn")
	if err != nil {
		return fmt.Errorf("metrics.NewHandler: %w", err)
	}

	trainHandler, err := train.NewHandler(&config.Train, dispatcher)
	if err != nil {
		return fmt.Errorf("train.NewHandler: %w", err)
	}
	collectHandler, err := collect.NewHandler(&config.Collect, dispatcher)
	if err != nil {
		return fmt.Errorf("collect.NewHandler: %w", err)
	}
	predictHandler, err := predict.NewHandler(&config.Predict, dispatcher)
	if err != nil {
		return fmt.Errorf("predict.NewHandler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/train", trainHandler)
	mux.Handle("/collect", collectHandler)
	mux.Handle("/predict", predictHandler)
	mux.Handle("/health", server.HandleHealth(ctx))
	mux.Handle("/metrics", metricsHandler)

	srv, err := server.New(config.SrvAddr)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	go func() {
		if err := srv.ServeHTTPHandler(ctx, mux); err != nil {
			logger.Errorf("http server: %v", err)
			cancel()
		}
	}()

	if config.GRPCAddr != "" {
		grpcSrv, err := server.New(config.GRPCAddr)
		if err != nil {
			return fmt.Errorf("server.New: %w", err)
		}
		grpcServer, hs := server.NewGRPCHealth()
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		go func() {
			if err := grpcSrv.ServeGRPC(ctx, grpcServer); err != nil {
				logger.Errorf("grpc server: %v", err)
				cancel()
			}
		}()
	}

	logger.Infof("serving %d models on %s", len(dispatcher.Models()), config.SrvAddr)
	return <-shutdownCh
}
