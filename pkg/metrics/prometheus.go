package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ondulab/cisynth/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{collector: collector}
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	// Ingest metrics
	output.WriteString("# HELP cisynth_fragments_received_total Line fragments accepted\n")
	output.WriteString("# TYPE cisynth_fragments_received_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_fragments_received_total %d\n", h.collector.GetFragmentsReceived()))

	output.WriteString("# HELP cisynth_fragments_duplicate_total Duplicate fragments dropped\n")
	output.WriteString("# TYPE cisynth_fragments_duplicate_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_fragments_duplicate_total %d\n", h.collector.GetFragmentsDuplicate()))

	output.WriteString("# HELP cisynth_packets_dropped_total Datagrams dropped before reassembly\n")
	output.WriteString("# TYPE cisynth_packets_dropped_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_packets_dropped_total %d\n", h.collector.GetPacketsDropped()))

	output.WriteString("# HELP cisynth_lines_published_total Complete lines published to consumers\n")
	output.WriteString("# TYPE cisynth_lines_published_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_lines_published_total %d\n", h.collector.GetLinesPublished()))

	output.WriteString("# HELP cisynth_lines_abandoned_total Lines abandoned with missing fragments\n")
	output.WriteString("# TYPE cisynth_lines_abandoned_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_lines_abandoned_total %d\n", h.collector.GetLinesAbandoned()))

	// DSP metrics
	output.WriteString("# HELP cisynth_audio_buffers_total Audio slots rendered by the DSP worker\n")
	output.WriteString("# TYPE cisynth_audio_buffers_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_audio_buffers_total %d\n", h.collector.GetBuffersProduced()))

	output.WriteString("# HELP cisynth_audio_samples_total Audio samples rendered\n")
	output.WriteString("# TYPE cisynth_audio_samples_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_audio_samples_total %d\n", h.collector.GetSamplesProduced()))

	output.WriteString("# HELP cisynth_voices_active Polyphonic voices currently sounding\n")
	output.WriteString("# TYPE cisynth_voices_active gauge\n")
	output.WriteString(fmt.Sprintf("cisynth_voices_active %d\n", h.collector.GetActiveVoices()))

	// Audio output metrics
	output.WriteString("# HELP cisynth_audio_underruns_total Callbacks that emitted silence\n")
	output.WriteString("# TYPE cisynth_audio_underruns_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_audio_underruns_total %d\n", h.collector.GetUnderruns()))

	// DMX metrics
	output.WriteString("# HELP cisynth_dmx_frames_total DMX universe frames emitted\n")
	output.WriteString("# TYPE cisynth_dmx_frames_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_dmx_frames_total %d\n", h.collector.GetDMXFrames()))

	output.WriteString("# HELP cisynth_dmx_write_errors_total Failed DMX frame writes\n")
	output.WriteString("# TYPE cisynth_dmx_write_errors_total counter\n")
	output.WriteString(fmt.Sprintf("cisynth_dmx_write_errors_total %d\n", h.collector.GetDMXWriteErrors()))

	w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server and blocks until ctx is done
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{Handler: mux}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", listener.Addr().(*net.TCPAddr).Port),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}
