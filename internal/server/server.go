// Package server exposes the screenshot service over HTTP: a synchronous
// single-capture endpoint, liveness, Prometheus metrics, and an optional
// websocket stream of live pool/dispatcher stats for dashboards.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"screenshotsvc/internal/dispatcher"
	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/browser"
	"screenshotsvc/pkg/logger"
	"screenshotsvc/pkg/metrics"
)

var serverStartTime = time.Now()

// Options configures the minimal HTTP server.
type Options struct {
	EnableMetrics bool
	EnableHealth  bool
	// RequestsPerSecond gates POST /screenshot; 0 disables the limiter.
	RequestsPerSecond rate.Limit
	Burst             int
}

// DefaultOptions mirrors the CLI's server subcommand defaults.
func DefaultOptions() Options {
	return Options{EnableMetrics: true, EnableHealth: true, RequestsPerSecond: 100, Burst: 200}
}

// Server wires the dispatcher, browser pool, and metrics collector behind a
// small HTTP surface.
type Server struct {
	opts       Options
	dispatcher *dispatcher.Dispatcher
	pool       *browser.Pool
	metrics    *metrics.MetricsCollector
	log        *logger.Logger
	hub        *Hub
	limiter    *rate.Limiter

	statsCancel context.CancelFunc
}

// New builds a Server. metricsCollector may be nil when metrics are disabled.
func New(opts Options, d *dispatcher.Dispatcher, pool *browser.Pool, mc *metrics.MetricsCollector, log *logger.Logger) *Server {
	s := &Server{
		opts:       opts,
		dispatcher: d,
		pool:       pool,
		metrics:    mc,
		log:        log,
		hub:        NewHub(),
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(opts.RequestsPerSecond, opts.Burst)
	}
	return s
}

// Hub fans periodic stats snapshots out to every connected websocket client.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]chan []byte
}

// NewHub builds an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan []byte)}
}

// Register adds a connection and starts its writer goroutine.
func (h *Hub) Register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()
	go func() {
		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()
	return ch
}

// Unregister removes a connection and closes its channel.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.conns[conn]; ok {
		close(ch)
		delete(h.conns, conn)
	}
}

// Broadcast sends payload to every registered connection, dropping it for any
// connection whose buffer is full rather than blocking the broadcaster.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.conns {
		select {
		case ch <- payload:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Routes builds the request multiplexer.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/screenshot", s.handleScreenshot)
	if s.opts.EnableHealth {
		mux.HandleFunc("/healthz", s.handleHealthz)
	}
	if s.opts.EnableMetrics && s.metrics != nil {
		mux.Handle("/metrics", s.metrics.MetricsHandler())
	}
	mux.HandleFunc("/ws/stats", s.handleStatsWS)
	return mux
}

// rateLimit rejects the request with 429 if the limiter is configured and
// exhausted; a nil limiter means rate limiting is disabled.
func (s *Server) rateLimit(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.Allow() {
		return true
	}
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	return false
}

type screenshotRequestBody struct {
	URL             string `json:"url"`
	Priority        string `json:"priority,omitempty"`
	FullPage        bool   `json:"full_page"`
	ElementSelector string `json:"element_selector,omitempty"`
	WaitMillis      int64  `json:"wait_ms,omitempty"`
	Width           int64  `json:"width,omitempty"`
	Height          int64  `json:"height,omitempty"`
}

func parsePriority(s string) model.Priority {
	switch strings.ToLower(s) {
	case "low":
		return model.PriorityLow
	case "high":
		return model.PriorityHigh
	case "critical":
		return model.PriorityCritical
	default:
		return model.PriorityNormal
	}
}

// handleScreenshot runs one synchronous capture through the dispatcher.
// Requests may arrive as a JSON body ({"url": "..."}) or, for convenience, as
// a GET with a ?url= query parameter. By default the response body is the
// raw image bytes with Content-Type set from the result format; pass
// ?json=1 to receive the full model.Result (image bytes base64-encoded)
// instead.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimit(w, r) {
		return
	}

	var body screenshotRequestBody
	switch r.Method {
	case http.MethodPost:
		defer r.Body.Close()
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
		}
		if body.URL == "" {
			body.URL = r.URL.Query().Get("url")
		}
	case http.MethodGet:
		body.URL = r.URL.Query().Get("url")
		body.FullPage = r.URL.Query().Get("full_page") == "true"
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if body.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	req := model.Request{
		URL:             body.URL,
		Priority:        parsePriority(body.Priority),
		FullPage:        body.FullPage,
		ElementSelector: body.ElementSelector,
		WaitTime:        time.Duration(body.WaitMillis) * time.Millisecond,
	}
	if body.Width > 0 && body.Height > 0 {
		req.CustomViewport = &model.Viewport{Width: body.Width, Height: body.Height, DeviceScaleFactor: 1.0}
	}

	start := time.Now()
	result := s.dispatcher.ScreenshotSingle(r.Context(), req)
	elapsed := time.Since(start)

	if s.metrics != nil {
		errKind := ""
		if result.Error != nil {
			errKind = result.Error.Kind.String()
		}
		s.metrics.RecordCapture(result.Success, result.Format.String(), errKind, elapsed)
	}

	if asJSON := r.URL.Query().Get("json"); asJSON != "" {
		w.Header().Set("Content-Type", "application/json")
		if !result.Success {
			w.WriteHeader(http.StatusBadGateway)
		}
		json.NewEncoder(w).Encode(result)
		return
	}

	if !result.Success {
		msg := "capture failed"
		if result.Error != nil {
			msg = result.Error.Error()
		}
		http.Error(w, msg, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", contentTypeForFormat(result.Format))
	w.Header().Set("X-Request-Id", result.RequestID)
	w.Header().Set("X-Final-Url", result.Metadata.FinalURL)
	w.Header().Set("X-Elapsed-Ms", strconv.FormatInt(result.Elapsed.Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	w.Write(result.ImageData)
}

func contentTypeForFormat(f model.OutputFormat) string {
	switch f {
	case model.FormatJPEG:
		return "image/jpeg"
	case model.FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

type healthResponse struct {
	Status    string        `json:"status"`
	UptimeSec float64       `json:"uptime_seconds"`
	Pool      browser.Stats `json:"pool"`
	QueueSize int           `json:"queue_size"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	status := "ok"
	if stats.Healthy == 0 && stats.Total > 0 {
		status = "degraded"
	}

	resp := healthResponse{
		Status:    status,
		UptimeSec: time.Since(serverStartTime).Seconds(),
		Pool:      stats,
		QueueSize: s.dispatcher.QueueSize(),
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

// handleStatsWS upgrades to a websocket connection and streams a metrics
// snapshot roughly once a second until the client disconnects.
func (s *Server) handleStatsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed")
		return
	}

	ch := s.hub.Register(conn)
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snapshot := s.snapshotPayload()
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (s *Server) snapshotPayload() []byte {
	stats := s.pool.Stats()
	payload := map[string]interface{}{
		"timestamp":  time.Now(),
		"pool":       stats,
		"queue_size": s.dispatcher.QueueSize(),
	}
	if s.metrics != nil {
		payload["metrics"] = s.metrics.GetSnapshot()
	}
	data, _ := json.Marshal(payload)
	return data
}

// Shutdown stops the stats broadcaster and drains the dispatcher.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.statsCancel != nil {
		s.statsCancel()
	}
	return s.dispatcher.Shutdown(ctx)
}
