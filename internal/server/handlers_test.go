package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeBody struct {
	Status  string `json:"status"`
	Text    string `json:"text"`
	Message string `json:"message"`
	ECLevel string `json:"ec_level"`
	Bounds  *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"bounds"`
	Error string `json:"error"`
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "code.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeOutcome(t *testing.T, w *httptest.ResponseRecorder) outcomeBody {
	t.Helper()
	var body outcomeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestServer_HealthHandler(t *testing.T) {
	env := newTestEnv(t, Config{Version: "1.2.3"})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			env.server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, "1.2.3", response.Version)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_ScanHandler_Upload(t *testing.T) {
	env := newTestEnv(t, Config{})

	t.Run("png with code", func(t *testing.T) {
		body, ct := multipartImage(t, "image", testutil.MustQRPNG(t, "uploaded", 200))
		req := httptest.NewRequest(http.MethodPost, "/scan", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()

		env.server.scanHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		out := decodeOutcome(t, w)
		assert.Equal(t, "success", out.Status)
		assert.Equal(t, "uploaded", out.Text)
		assert.Equal(t, scan.StatusSuccess, env.ctrl.Status().Status)
	})

	t.Run("blank image", func(t *testing.T) {
		body, ct := multipartImage(t, "image", testutil.MustBlankPNG(t, 120, 120))
		req := httptest.NewRequest(http.MethodPost, "/scan", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()

		env.server.scanHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		out := decodeOutcome(t, w)
		assert.Equal(t, "no_code", out.Status)
		assert.Equal(t, scan.MessageNoCode, out.Message)
	})

	t.Run("not an image", func(t *testing.T) {
		body, ct := multipartImage(t, "image", []byte("plain text, not pixels"))
		req := httptest.NewRequest(http.MethodPost, "/scan", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()

		env.server.scanHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		out := decodeOutcome(t, w)
		assert.Equal(t, "source_error", out.Status)
		assert.Equal(t, scan.MessageSourceError, out.Message)
		assert.NotEmpty(t, out.Error)
	})

	t.Run("missing field", func(t *testing.T) {
		body, ct := multipartImage(t, "file", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/scan", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()

		env.server.scanHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No image file provided")
	})
}

func TestServer_ScanHandler_UploadTooLarge(t *testing.T) {
	env := newTestEnv(t, Config{MaxUploadMB: 1})
	body, ct := multipartImage(t, "image", bytes.Repeat([]byte{0xAB}, 2*1024*1024))
	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	env.server.scanHandler(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_ScanHandler_JSON(t *testing.T) {
	qr := testutil.MustQRPNG(t, "from json", 200)

	tests := []struct {
		name       string
		body       string
		clipboard  []byte
		wantCode   int
		wantStatus string
		wantText   string
	}{
		{
			name:       "data uri",
			body:       `{"uri":"` + imagesource.EncodeDataURI("image/png", qr) + `"}`,
			wantCode:   http.StatusOK,
			wantStatus: "success",
			wantText:   "from json",
		},
		{
			name:       "clipboard with code",
			body:       `{"clipboard":true}`,
			clipboard:  qr,
			wantCode:   http.StatusOK,
			wantStatus: "success",
			wantText:   "from json",
		},
		{
			name:       "empty clipboard",
			body:       `{"clipboard":true}`,
			wantCode:   http.StatusOK,
			wantStatus: "no_image",
		},
		{
			name:       "unsupported scheme",
			body:       `{"uri":"ftp://example.com/code.png"}`,
			wantCode:   http.StatusOK,
			wantStatus: "source_error",
		},
		{
			name:     "comment-only uri list",
			body:     `{"uri":"# nothing here"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no source",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"uri":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			if tt.clipboard != nil {
				env.putClipboardImage(t, tt.clipboard)
			}
			req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			env.server.scanHandler(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantStatus == "" {
				return
			}
			out := decodeOutcome(t, w)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantText, out.Text)
		})
	}
}

func TestServer_ScanHandler_RejectsOtherRequests(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	w := httptest.NewRecorder()
	env.server.scanHandler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	env.server.scanHandler(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestServer_GenerateHandler(t *testing.T) {
	t.Run("returns png", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"text":"hello server","size":150}`))
		w := httptest.NewRecorder()

		env.server.generateHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.NotEmpty(t, w.Header().Get("X-QR-Version"))

		img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 150, img.Bounds().Dx())
		assert.Equal(t, 150, img.Bounds().Dy())

		px, err := imagesource.FromImage(img)
		require.NoError(t, err)
		out := scan.NewDecoder(nil, true).Decode(context.Background(), px)
		assert.Equal(t, "hello server", out.Text)

		g := env.ctrl.Generated()
		require.NotNil(t, g)
		assert.Equal(t, w.Body.Bytes(), g.PNG)
	})

	t.Run("size falls back to default", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		w := httptest.NewRecorder()
		env.server.generateHandler(w, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"text":"a","size":90}`)))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		env.server.generateHandler(w, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"text":"b"}`)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 200, env.ctrl.Generated().Size)
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "empty text", body: `{"text":""}`, wantCode: http.StatusBadRequest},
		{name: "whitespace text", body: `{"text":"   \n"}`, wantCode: http.StatusBadRequest},
		{name: "too long", body: `{"text":"` + strings.Repeat("a", 5000) + `"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "invalid json", body: `text=hello`, wantCode: http.StatusBadRequest},
		{name: "size above maximum", body: `{"text":"a","size":6000}`, wantCode: http.StatusBadRequest},
		{name: "negative size", body: `{"text":"a","size":-1}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			w := httptest.NewRecorder()

			env.server.generateHandler(w, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Nil(t, env.ctrl.Generated())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, 200, env.ctrl.Size())
		})
	}
}

func TestServer_GeneratedImageHandler(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := httptest.NewRecorder()
	env.server.generatedImageHandler(w, httptest.NewRequest(http.MethodGet, "/generated.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.ctrl.SetText("stored")
	g, err := env.ctrl.Generate(context.Background())
	require.NoError(t, err)

	w = httptest.NewRecorder()
	env.server.generatedImageHandler(w, httptest.NewRequest(http.MethodGet, "/generated.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, g.PNG, w.Body.Bytes())
}

func TestServer_StateHandler(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := httptest.NewRecorder()
	env.server.stateHandler(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var initial struct {
		Scan        outcomeBody        `json:"scan"`
		PendingText string             `json:"pending_text"`
		Generated   *GeneratedResponse `json:"generated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &initial))
	assert.Equal(t, "initial", initial.Scan.Status)
	assert.Equal(t, scan.MessageInitial, initial.Scan.Message)
	assert.Nil(t, initial.Generated)

	env.ctrl.SetText("state text")
	_, err := env.ctrl.Generate(context.Background())
	require.NoError(t, err)

	w = httptest.NewRecorder()
	env.server.stateHandler(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	var after struct {
		PendingText string             `json:"pending_text"`
		Generated   *GeneratedResponse `json:"generated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, "state text", after.PendingText)
	require.NotNil(t, after.Generated)
	assert.Equal(t, "state text", after.Generated.Text)
	assert.Equal(t, 200, after.Generated.Size)
	assert.Positive(t, after.Generated.Version)

	env.putClipboardImage(t, testutil.MustQRPNG(t, "state symbol", 200))
	require.True(t, env.ctrl.ScanClipboard(context.Background()).OK())

	w = httptest.NewRecorder()
	env.server.stateHandler(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	var scanned struct {
		Scan outcomeBody `json:"scan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scanned))
	assert.Equal(t, "state symbol", scanned.Scan.Text)
	assert.NotEmpty(t, scanned.Scan.ECLevel)
	require.NotNil(t, scanned.Scan.Bounds)
	assert.Positive(t, scanned.Scan.Bounds.Width)
}

func TestServer_SetupRoutes(t *testing.T) {
	env := newTestEnv(t, Config{CORSOrigin: "http://localhost:3000"})
	mux := http.NewServeMux()
	env.server.SetupRoutes(mux)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/state", "", http.StatusOK},
		{http.MethodGet, "/generated.png", "", http.StatusNotFound},
		{http.MethodPost, "/generate", `{"text":"routed"}`, http.StatusOK},
		{http.MethodGet, "/generated.png", "", http.StatusOK},
		{http.MethodPost, "/scan", `{"clipboard":true}`, http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "qrkit_http_requests_total")
	assert.Contains(t, w.Body.String(), "qrkit_generate_total")
}

func TestUploadMediaType(t *testing.T) {
	assert.Equal(t, "image/png", uploadMediaType(testutil.MustQRPNG(t, "x", 64)))
	assert.Equal(t, "image/octet-stream", uploadMediaType([]byte("II*\x00 tiff-ish")))
}
