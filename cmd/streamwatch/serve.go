package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgestat/streamwatch/pkg/detectors/zscore"
	"github.com/edgestat/streamwatch/pkg/io/jsonl"
	"github.com/edgestat/streamwatch/pkg/server"
)

var serveFlags struct {
	addr       string
	windowSize int
	threshold  float64
	logPath    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the detector over HTTP",
	Long: `Serve accepts samples on POST /ingest, reports the latest window
statistics on GET /analytics, and exposes prometheus metrics on
GET /metrics. Flags fall back to HTTP_ADDR, ANALYTICS_WINDOW,
ANALYTICS_THRESHOLD, and ANOMALY_LOG environment variables.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", getEnv("HTTP_ADDR", ":8080"), "listen address")
	f.IntVar(&serveFlags.windowSize, "window", getEnvInt("ANALYTICS_WINDOW", 100), "sliding window size in samples")
	f.Float64Var(&serveFlags.threshold, "threshold", getEnvFloat("ANALYTICS_THRESHOLD", 3.0), "|z-score| anomaly threshold")
	f.StringVar(&serveFlags.logPath, "log", getEnv("ANOMALY_LOG", ""), "append anomaly records to this JSON-lines file")
}

func runServe(cmd *cobra.Command, args []string) error {
	detector, err := zscore.New(
		zscore.WithCapacity(serveFlags.windowSize),
		zscore.WithThreshold(serveFlags.threshold),
	)
	if err != nil {
		return err
	}

	var opts []server.Option
	if serveFlags.logPath != "" {
		sink, err := jsonl.NewWriter(serveFlags.logPath)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts = append(opts, server.WithSink(sink))
	}

	srv := server.New(detector, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.Run(ctx)

	httpServer := &http.Server{
		Addr:              serveFlags.addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("http server listening on %s", serveFlags.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
