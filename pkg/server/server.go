// Package server exposes a stream detector over HTTP with prometheus
// instrumentation. Samples are accepted on /ingest into a bounded
// queue and evaluated by a single worker, keeping the detector on the
// single-writer path.
package server

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgestat/streamwatch/pkg/detectors"
	streamio "github.com/edgestat/streamwatch/pkg/io"
)

const defaultQueueSize = 1024

// Server wires a detector, an optional anomaly sink, and the HTTP
// handlers together.
type Server struct {
	detector  detectors.StreamDetector
	sink      streamio.Sink
	samples   chan streamio.Sample
	nextOrder atomic.Uint64

	mu     sync.RWMutex
	latest detectors.Evaluation

	registry         *prometheus.Registry
	metricIngested   prometheus.Counter
	metricBadRequest prometheus.Counter
	metricQueueFull  prometheus.Counter
	metricSinkErr    prometheus.Counter
	metricProcTime   prometheus.Histogram
	metricMean       prometheus.Gauge
	metricStdDev     prometheus.Gauge
	metricWinLen     prometheus.Gauge
	metricAnomalies  prometheus.Counter
}

// Option configures a Server.
type Option func(*Server)

// WithSink forwards every anomaly event to the given sink.
func WithSink(sink streamio.Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithQueueSize sets the ingest queue depth.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		s.samples = make(chan streamio.Sample, n)
	}
}

// New creates a Server around the given detector.
func New(detector detectors.StreamDetector, opts ...Option) *Server {
	s := &Server{
		detector: detector,
		samples:  make(chan streamio.Sample, defaultQueueSize),
		registry: prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.metricIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_total",
		Help: "Total samples accepted for evaluation",
	})
	s.metricBadRequest = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_bad_request_total",
		Help: "Total rejected ingest requests",
	})
	s.metricQueueFull = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_queue_full_total",
		Help: "Total ingest requests rejected because the queue is full",
	})
	s.metricSinkErr = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_error_total",
		Help: "Total failures writing anomaly records to the sink",
	})
	s.metricProcTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_processing_seconds",
		Help:    "Latency for handling ingest requests",
		Buckets: prometheus.DefBuckets,
	})
	s.metricMean = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "window_mean",
		Help: "Mean of the current detection window",
	})
	s.metricStdDev = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "window_std_dev",
		Help: "Population standard deviation of the current detection window",
	})
	s.metricWinLen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "window_len",
		Help: "Number of samples in the detection window",
	})
	s.metricAnomalies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anomalies_total",
		Help: "Total anomaly events emitted",
	})

	s.registry.MustRegister(
		s.metricIngested,
		s.metricBadRequest,
		s.metricQueueFull,
		s.metricSinkErr,
		s.metricProcTime,
		s.metricMean,
		s.metricStdDev,
		s.metricWinLen,
		s.metricAnomalies,
	)

	return s
}

// Routes returns the HTTP handler for the server.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/analytics", s.handleAnalytics)
	return mux
}

// Run drains the ingest queue through the detector until ctx ends.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-s.samples:
			eval, err := s.detector.Ingest(sample.Value, sample.ArrivalOrder)
			if err != nil {
				// Finiteness is checked at ingest time, so this is a
				// configuration problem worth a log line.
				log.Printf("detector rejected sample %d: %v", sample.ArrivalOrder, err)
				continue
			}

			s.publish(eval)
		}
	}
}

func (s *Server) publish(eval detectors.Evaluation) {
	s.metricMean.Set(eval.Mean)
	s.metricStdDev.Set(eval.StdDev)
	s.metricWinLen.Set(float64(eval.WindowLen))
	s.metricAnomalies.Add(float64(len(eval.Events)))

	if s.sink != nil {
		for _, ev := range eval.Events {
			rec := streamio.Record{
				GlobalIndex: ev.GlobalIndex,
				Value:       ev.Value,
				ZScore:      ev.ZScore,
			}
			if err := s.sink.Write(rec); err != nil {
				s.metricSinkErr.Inc()
				log.Printf("sink write error: %v", err)
			}
		}
	}

	s.mu.Lock()
	s.latest = eval
	s.mu.Unlock()
}

// Latest returns the most recent evaluation.
func (s *Server) Latest() detectors.Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

type ingestRequest struct {
	Value float64 `json:"value"`
	// ArrivalOrder is optional; when absent the server assigns the
	// next index from its own counter.
	ArrivalOrder *uint64 `json:"arrival_order,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	defer func() {
		s.metricProcTime.Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ingestRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		s.metricBadRequest.Inc()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid json"))
		return
	}

	if math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		s.metricBadRequest.Inc()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("value must be finite"))
		return
	}

	sample := streamio.Sample{Value: req.Value}
	if req.ArrivalOrder != nil {
		sample.ArrivalOrder = *req.ArrivalOrder
	} else {
		sample.ArrivalOrder = s.nextOrder.Add(1) - 1
	}

	select {
	case s.samples <- sample:
		s.metricIngested.Inc()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("accepted"))
	default:
		s.metricQueueFull.Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("queue full"))
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.Latest())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
