// Package web serves the headless monitor: a JSON status endpoint plus a
// websocket feed of line, voice and DMX state. There is no embedded UI; any
// GUI consumes the feed externally.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ondulab/cisynth/pkg/dmx"
	"github.com/ondulab/cisynth/pkg/logger"
	"github.com/ondulab/cisynth/pkg/metrics"
	"github.com/ondulab/cisynth/pkg/protocol"
)

// Config holds the monitor server configuration
type Config struct {
	Enabled bool
	Host    string
	Port    int
}

// PipelineProvider exposes the live pipeline state the monitor publishes.
type PipelineProvider interface {
	Spots() []dmx.Spot
	LineGeneration() uint64
	SnapshotLine(r, g, b []byte, seen uint64) (uint64, bool)
}

// Server is the monitor HTTP server
type Server struct {
	config    Config
	logger    *logger.Logger
	collector *metrics.Collector
	pipeline  PipelineProvider
	hub       *Hub
	server    *http.Server
	started   time.Time
}

// NewServer creates a monitor server
func NewServer(cfg Config, pipeline PipelineProvider, collector *metrics.Collector, log *logger.Logger) *Server {
	l := log.WithComponent("web")
	return &Server{
		config:    cfg,
		logger:    l,
		collector: collector,
		pipeline:  pipeline,
		hub:       NewHub(l),
	}
}

// Start runs the server and the feed loop until ctx is done
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Monitor server disabled")
		return nil
	}
	s.started = time.Now()

	go s.hub.Run(ctx)
	go s.feedLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{Handler: mux}

	s.logger.Info("Monitor server started", logger.String("addr", addr))

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

// feedLoop pushes pipeline state to websocket clients at a browser-friendly
// rate. The line preview is decimated: full 3456-pixel lines at 25 fps would
// swamp the socket for no visual gain.
func (s *Server) feedLoop(ctx context.Context) {
	const previewWidth = 432
	const stride = protocol.PixelsPerLine / previewWidth

	r := make([]byte, protocol.PixelsPerLine)
	g := make([]byte, protocol.PixelsPerLine)
	b := make([]byte, protocol.PixelsPerLine)

	ticker := time.NewTicker(40 * time.Millisecond)
	defer ticker.Stop()

	var seen uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		gen, fresh := s.pipeline.SnapshotLine(r, g, b, seen)
		if fresh {
			seen = gen
			preview := make([]int, 0, previewWidth*3)
			for i := 0; i < protocol.PixelsPerLine; i += stride {
				preview = append(preview, int(r[i]), int(g[i]), int(b[i]))
			}
			s.hub.Broadcast(Event{
				Type:      "line",
				Timestamp: time.Now(),
				Data: map[string]interface{}{
					"generation": gen,
					"preview":    preview,
				},
			})
		}

		spots := s.pipeline.Spots()
		colors := make([][3]int, len(spots))
		for i, spot := range spots {
			colors[i] = [3]int{int(spot.Red), int(spot.Green), int(spot.Blue)}
		}
		s.hub.Broadcast(Event{
			Type:      "state",
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"spots":         colors,
				"active_voices": s.collector.GetActiveVoices(),
				"underruns":     s.collector.GetUnderruns(),
			},
		})
	}
}

// handleStatus serves a JSON snapshot of the pipeline counters
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds":      int(time.Since(s.started).Seconds()),
		"line_generation":     s.pipeline.LineGeneration(),
		"lines_published":     s.collector.GetLinesPublished(),
		"lines_abandoned":     s.collector.GetLinesAbandoned(),
		"fragments_received":  s.collector.GetFragmentsReceived(),
		"fragments_duplicate": s.collector.GetFragmentsDuplicate(),
		"packets_dropped":     s.collector.GetPacketsDropped(),
		"audio_buffers":       s.collector.GetBuffersProduced(),
		"audio_underruns":     s.collector.GetUnderruns(),
		"active_voices":       s.collector.GetActiveVoices(),
		"dmx_frames":          s.collector.GetDMXFrames(),
		"dmx_write_errors":    s.collector.GetDMXWriteErrors(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
