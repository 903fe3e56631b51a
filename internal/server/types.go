package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MeKo-Tech/qrkit/internal/controller"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// controllerInterface defines the methods needed by the server from a controller.
type controllerInterface interface {
	ScanClipboard(ctx context.Context) scan.Outcome
	Drop(ctx context.Context, payload imagesource.DropPayload) (scan.Outcome, error)
	SetText(text string)
	Size() int
	SetSize(size int) error
	Generate(ctx context.Context) (*qrgen.Generated, error)
	Status() scan.Outcome
	Generated() *qrgen.Generated
	PendingText() string
	Subscribe() (<-chan controller.Event, func())
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	ctrl        controllerInterface
	logger      *slog.Logger
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
	version     string
	defaultSize int
	upgrader    websocket.Upgrader

	trustProxyHeaders bool

	// genMu keeps SetSize/SetText/Generate of one request together. Every
	// request sets the size, so no request inherits another's.
	genMu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	CORSOrigin        string
	MaxUploadMB       int64
	TimeoutSec        int
	ShutdownTimeout   int
	RateLimitEnabled  bool
	RequestsPerMinute int
	// TrustProxyHeaders takes the rate-limit client from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
	Version           string
	Logger            *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// StateResponse mirrors the controller state slots.
type StateResponse struct {
	Scan        scan.Outcome       `json:"scan"`
	PendingText string             `json:"pending_text"`
	Generated   *GeneratedResponse `json:"generated,omitempty"`
}

type GeneratedResponse struct {
	Text    string `json:"text"`
	Size    int    `json:"size"`
	Version int    `json:"version"`
}

// ScanRequest is the JSON body accepted by POST /scan.
type ScanRequest struct {
	URI       string `json:"uri,omitempty"`
	Clipboard bool   `json:"clipboard,omitempty"`
}

// GenerateRequest is the JSON body accepted by POST /generate.
type GenerateRequest struct {
	Text string `json:"text"`
	Size int    `json:"size,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a server over ctrl.
func NewServer(ctrl controllerInterface, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		ctrl:        ctrl,
		logger:      logger,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		version:     config.Version,
		defaultSize: ctrl.Size(),

		trustProxyHeaders: config.TrustProxyHeaders,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if config.RateLimitEnabled {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute)
	}
	s.upgrader = s.newUpgrader()
	return s
}

func describeGenerated(g *qrgen.Generated) *GeneratedResponse {
	if g == nil {
		return nil
	}
	return &GeneratedResponse{Text: g.Text, Size: g.Size, Version: g.Version}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/state", s.corsMiddleware(s.stateHandler))
	mux.HandleFunc("/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/generate", s.corsMiddleware(s.rateLimitMiddleware(s.generateHandler)))
	mux.HandleFunc("/generated.png", s.corsMiddleware(s.generatedImageHandler))
	mux.HandleFunc("/ws", s.wsHandler)
}
