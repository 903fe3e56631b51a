package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/controller"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// stateHandler returns the current scan status, pending text and generated code.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, StateResponse{
		Scan:        s.ctrl.Status(),
		PendingText: s.ctrl.PendingText(),
		Generated:   describeGenerated(s.ctrl.Generated()),
	})
}

// scanHandler decodes an uploaded image, a link or data URI, or the server's
// clipboard. Every completed scan answers 200 with the outcome; only
// malformed requests are client errors.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	start := time.Now()

	var (
		trigger string
		out     scan.Outcome
	)
	switch mediaType {
	case "multipart/form-data":
		uri, ok := s.readUpload(w, r)
		if !ok {
			return
		}
		trigger = "upload"
		var err error
		out, err = s.ctrl.Drop(ctx, imagesource.NewURIDrop(uri))
		if err != nil {
			s.writeErrorResponse(w, "Unsupported upload", http.StatusBadRequest)
			return
		}
	case "application/json", "":
		var req ScanRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		switch {
		case req.URI != "":
			trigger = "uri"
			var err error
			out, err = s.ctrl.Drop(ctx, imagesource.NewURIDrop(req.URI))
			if errors.Is(err, controller.ErrUnsupportedDrop) {
				s.writeErrorResponse(w, "URI list holds no link", http.StatusBadRequest)
				return
			}
		case req.Clipboard:
			trigger = "clipboard"
			out = s.ctrl.ScanClipboard(ctx)
		default:
			s.writeErrorResponse(w, "Request needs an image, a uri or clipboard=true", http.StatusBadRequest)
			return
		}
	default:
		s.writeErrorResponse(w, "Unsupported content type "+mediaType, http.StatusUnsupportedMediaType)
		return
	}

	scansTotal.WithLabelValues(trigger, out.Status.String()).Inc()
	scanDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, out)
}

// readUpload reads the multipart "image" field and wraps it as a data URI so
// uploads take the same path as a dropped in-memory image.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return "", false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return "", false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return "", false
	}
	uploadSizeBytes.Observe(float64(len(data)))

	return imagesource.EncodeDataURI(uploadMediaType(data), data), true
}

// uploadMediaType sniffs the upload. Formats the sniffer does not know (TIFF)
// still get an image type since the normalizer decodes by content.
func uploadMediaType(data []byte) string {
	mt := http.DetectContentType(data)
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	return "image/octet-stream"
}

// generateHandler encodes the posted text and answers with the PNG.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		generateTotal.WithLabelValues("empty_input").Inc()
		s.writeErrorResponse(w, controller.ErrNothingToGenerate.Error(), http.StatusBadRequest)
		return
	}
	size, err := s.generateSize(req.Size)
	if err != nil {
		generateTotal.WithLabelValues("invalid_size").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	g, err := s.generate(ctx, req.Text, size)
	if err != nil {
		var encErr *qrgen.EncodeError
		switch {
		case errors.As(err, &encErr):
			generateTotal.WithLabelValues(strings.ReplaceAll(encErr.Kind.String(), " ", "_")).Inc()
			s.writeErrorResponse(w, encErr.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, controller.ErrNothingToGenerate):
			generateTotal.WithLabelValues("empty_input").Inc()
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		default:
			generateTotal.WithLabelValues("error").Inc()
			s.writeErrorResponse(w, fmt.Sprintf("Generation failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	generateTotal.WithLabelValues("success").Inc()
	s.writePNG(w, g)
}

// generateSize resolves the requested canvas size; zero selects the server
// default.
func (s *Server) generateSize(requested int) (int, error) {
	switch {
	case requested == 0:
		return s.defaultSize, nil
	case requested < 0 || requested > qrgen.MaxSize:
		return 0, fmt.Errorf("size must be between 1 and %d", qrgen.MaxSize)
	}
	return requested, nil
}

// generate runs one size/text/generate sequence on the shared controller.
func (s *Server) generate(ctx context.Context, text string, size int) (*qrgen.Generated, error) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if err := s.ctrl.SetSize(size); err != nil {
		return nil, err
	}
	s.ctrl.SetText(text)
	return s.ctrl.Generate(ctx)
}

// generatedImageHandler serves the current generated QR code.
func (s *Server) generatedImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	g := s.ctrl.Generated()
	if g == nil {
		s.writeErrorResponse(w, controller.ErrNothingGenerated.Error(), http.StatusNotFound)
		return
	}
	s.writePNG(w, g)
}

func (s *Server) writePNG(w http.ResponseWriter, g *qrgen.Generated) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(g.PNG)))
	w.Header().Set("X-QR-Version", strconv.Itoa(g.Version))
	if _, err := w.Write(g.PNG); err != nil {
		s.logger.Error("Error writing PNG response", "error", err)
	}
}

// requestContext bounds handler work by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
