// Command pipeline runs the accident severity ETL once: ingest accidents
// and roads, spatially join them, clean, train the severity models, and
// write the report artifacts. Health and metrics endpoints are served while
// the run is in progress.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	httpadapter "github.com/roadquality/accident-severity-etl/internal/adapter/http"
	kafkaadapter "github.com/roadquality/accident-severity-etl/internal/adapter/kafka"
	"github.com/roadquality/accident-severity-etl/internal/config"
	"github.com/roadquality/accident-severity-etl/internal/ingest"
	"github.com/roadquality/accident-severity-etl/internal/observability"
	"github.com/roadquality/accident-severity-etl/internal/pipeline"
)

func main() {
	nrows := flag.Int("nrows", 0, "limit the number of accident rows ingested (0 = all)")
	states := flag.String("states", "", "comma-separated state codes to keep (empty = all)")
	skipJoin := flag.Bool("skip-join", false, "skip the spatial join; road attributes stay unknown")
	skipTrain := flag.Bool("skip-train", false, "stop after writing the integrated dataset")
	accidentsPath := flag.String("accidents", "", "override the accidents CSV path")
	roadsPath := flag.String("roads", "", "override the road network path")
	outDir := flag.String("out", "", "override the output directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *accidentsPath != "" {
		cfg.AccidentsCSVPath = *accidentsPath
	}
	if *roadsPath != "" {
		cfg.RoadsPath = *roadsPath
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Kafka sink is feature-flagged; the pipeline runs fully without it.
	var sink pipeline.Sink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		metrics.SinkEnabled.Set(1)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	runner := pipeline.New(cfg, logger, metrics, sink)
	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	opts := pipeline.Options{
		SkipJoin:  *skipJoin,
		SkipTrain: *skipTrain,
		Filter: ingest.AccidentFilter{
			MaxRows: *nrows,
			States:  splitStates(*states),
		},
	}

	runErr := runner.Run(ctx, opts)
	if runErr != nil {
		logger.Error("pipeline failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func splitStates(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
