package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrkit/internal/controller"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

func (s *Server) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.allowedOrigin,
	}
}

// allowedOrigin gates WebSocket upgrades; browsers do not apply CORS to them.
// Clients that send no Origin (CLI tools, other processes) are let through.
// A page must either be served by this host or be listed in the configured
// CORS origins; the wildcard admits same-host pages only.
func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range strings.Split(s.corsOrigin, ",") {
		allowed = strings.TrimSpace(allowed)
		if allowed != "*" && strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// Incoming message types.
const (
	wsScanClipboard = "scan_clipboard"
	wsScanURI       = "scan_uri"
	wsSetText       = "set_text"
	wsGenerate      = "generate"
)

// WebSocketMessage represents a message sent over WebSocket.
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WebSocketRequest is an intent sent by the client.
type WebSocketRequest struct {
	Type string `json:"type"`
	URI  string `json:"uri,omitempty"`
	Text string `json:"text,omitempty"`
	Size int    `json:"size,omitempty"`
}

// WebSocketEvent is pushed for every controller state change.
type WebSocketEvent struct {
	Event     string             `json:"event"`
	Trigger   string             `json:"trigger,omitempty"`
	Scan      *scan.Outcome      `json:"scan,omitempty"`
	Generated *GeneratedResponse `json:"generated,omitempty"`
	Text      string             `json:"text,omitempty"`
}

// WebSocketError is the payload of an "error" message.
type WebSocketError struct {
	ErrorType string `json:"error_type"`
	Error     string `json:"error"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serializes writers; a gorilla connection allows one at a time.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// wsHandler upgrades the connection and streams controller state.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.allowedOrigin(r) {
		s.logger.Warn("Rejected WebSocket origin", "origin", r.Header.Get("Origin"), "remote_addr", r.RemoteAddr)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	connID := uuid.NewString()
	s.logger.Info("WebSocket connection established", "conn_id", connID, "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
	s.logger.Debug("WebSocket connection closed", "conn_id", connID, "remote_addr", r.RemoteAddr)
}

// handleWebSocketConnection pumps events out and intents in until the
// client goes away.
func (s *Server) handleWebSocketConnection(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	writer := &lockedWriter{conn: conn}

	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	var wg sync.WaitGroup
	defer wg.Wait()

	events, unsubscribe := s.ctrl.Subscribe()
	defer unsubscribe()

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.forwardEvents(ctx, writer, events)
	}()
	// Send ping messages to keep connection alive
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			// A hanging download must not stall reading further intents.
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handleWebSocketMessage(ctx, writer, data)
			}()
		}
	}
	cancel()
}

// forwardEvents relays controller events until ctx ends or the subscription
// is closed.
func (s *Server) forwardEvents(ctx context.Context, conn WebSocketConnWriter, events <-chan controller.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.sendWebSocketMessage(conn, WebSocketMessage{Type: "state", Payload: toWebSocketEvent(ev)})
		}
	}
}

func toWebSocketEvent(ev controller.Event) WebSocketEvent {
	out := WebSocketEvent{Event: string(ev.Type), Trigger: ev.Trigger}
	switch ev.Type {
	case controller.EventScan:
		st := ev.Status
		out.Scan = &st
	case controller.EventGenerated:
		out.Generated = describeGenerated(ev.Generated)
	case controller.EventText:
		out.Text = ev.Text
	}
	return out
}

// handleWebSocketMessage processes one client intent and answers on conn.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case wsScanClipboard:
		out := s.ctrl.ScanClipboard(ctx)
		scansTotal.WithLabelValues("websocket", out.Status.String()).Inc()
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: "scan_result", Payload: out})
	case wsScanURI:
		if req.URI == "" {
			s.sendWebSocketError(conn, "invalid_request", "No uri provided")
			return
		}
		out, err := s.ctrl.Drop(ctx, imagesource.NewURIDrop(req.URI))
		if err != nil {
			s.sendWebSocketError(conn, "invalid_request", err.Error())
			return
		}
		scansTotal.WithLabelValues("websocket", out.Status.String()).Inc()
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: "scan_result", Payload: out})
	case wsSetText:
		s.ctrl.SetText(req.Text)
	case wsGenerate:
		s.handleWebSocketGenerate(ctx, conn, req)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

func (s *Server) handleWebSocketGenerate(ctx context.Context, conn WebSocketConnWriter, req WebSocketRequest) {
	size, err := s.generateSize(req.Size)
	if err != nil {
		generateTotal.WithLabelValues("invalid_size").Inc()
		s.sendWebSocketError(conn, "invalid_request", err.Error())
		return
	}

	g, err := s.generate(ctx, req.Text, size)
	if err != nil {
		errType := "processing_error"
		var encErr *qrgen.EncodeError
		switch {
		case errors.As(err, &encErr):
			errType = strings.ReplaceAll(encErr.Kind.String(), " ", "_")
		case errors.Is(err, controller.ErrNothingToGenerate):
			errType = "empty_input"
		}
		generateTotal.WithLabelValues(errType).Inc()
		s.sendWebSocketError(conn, errType, err.Error())
		return
	}
	generateTotal.WithLabelValues("success").Inc()
	s.sendWebSocketMessage(conn, WebSocketMessage{Type: "generate_result", Payload: describeGenerated(g)})
}

// sendWebSocketMessage sends a message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:    "error",
		Payload: WebSocketError{ErrorType: errorType, Error: message},
	})
}
