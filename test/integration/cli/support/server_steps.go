package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrkit/cmd/qrkit/cmd"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// aQrkitServerIsRunning starts "qrkit serve" in-process on a free port.
func (testCtx *TestContext) aQrkitServerIsRunning() error {
	return testCtx.aQrkitServerIsRunningWith("")
}

// aQrkitServerIsRunningWith starts the server with extra serve flags.
func (testCtx *TestContext) aQrkitServerIsRunningWith(flags string) error {
	if testCtx.serverCancel != nil {
		return errors.New("server already running")
	}
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("failed to find free port: %w", err)
	}
	extra, err := splitArgs(flags)
	if err != nil {
		return err
	}

	cmd.ResetFlags()
	root := cmd.GetRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"serve", "--host", "127.0.0.1", "--port", strconv.Itoa(port)}, extra...))

	ctx, cancel := context.WithCancel(context.Background())
	testCtx.serverCancel = cancel
	testCtx.serverDone = make(chan error, 1)
	go func() { testCtx.serverDone <- root.ExecuteContext(ctx) }()

	testCtx.ServerURL = "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if testCtx.isServerHealthy() {
			return nil
		}
		select {
		case err := <-testCtx.serverDone:
			testCtx.serverCancel = nil
			return fmt.Errorf("server exited during startup: %w", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
	return errors.New("server did not become healthy within 5s")
}

func (testCtx *TestContext) isServerHealthy() bool {
	resp, err := httpClient.Get(testCtx.ServerURL + "/health")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StopServer cancels the serve command and waits for its graceful shutdown.
func (testCtx *TestContext) StopServer() error {
	if testCtx.serverCancel == nil {
		return nil
	}
	testCtx.serverCancel()
	testCtx.serverCancel = nil
	select {
	case err := <-testCtx.serverDone:
		return err
	case <-time.After(15 * time.Second):
		return errors.New("server did not shut down")
	}
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

// iGET requests an endpoint.
func (testCtx *TestContext) iGET(endpoint string) error {
	req, err := http.NewRequest(http.MethodGet, testCtx.ServerURL+endpoint, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iPOSTJSONTo sends a JSON body.
func (testCtx *TestContext) iPOSTJSONTo(endpoint string, body *godog.DocString) error {
	req, err := http.NewRequest(http.MethodPost, testCtx.ServerURL+endpoint,
		strings.NewReader(testCtx.substituteVariables(body.Content)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

// iUploadTo sends a file as the multipart "image" field.
func (testCtx *TestContext) iUploadTo(name, endpoint string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to copy file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.ServerURL+endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return testCtx.do(req)
}

// theResponseStatusShouldBe verifies HTTP response status.
func (testCtx *TestContext) theResponseStatusShouldBe(expectedStatus int) error {
	if testCtx.LastHTTPStatusCode != expectedStatus {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expectedStatus, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseHeaderShouldBe verifies one response header.
func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is %q, want %q", name, got, expected)
	}
	return nil
}

// theResponseJSONFieldShouldBe compares a field of the JSON response body.
func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, expected string) error {
	return jsonFieldEquals(testCtx.LastHTTPResponse, field, expected)
}

// theResponseShouldBeAPNGOfPixels checks an image/png response body.
func (testCtx *TestContext) theResponseShouldBeAPNGOfPixels(size int) error {
	return checkPNG(testCtx.LastHTTPResponse, size)
}

// theResponseShouldDecodeTo scans an image/png response body.
func (testCtx *TestContext) theResponseShouldDecodeTo(text string) error {
	return expectDecoded(testCtx.LastHTTPResponse, text)
}

// theResponseShouldContain checks the raw response body.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers server lifecycle and HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a qrkit server is running$`, testCtx.aQrkitServerIsRunning)
	sc.Step(`^a qrkit server is running with "([^"]*)"$`, testCtx.aQrkitServerIsRunningWith)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST JSON to "([^"]*)":$`, testCtx.iPOSTJSONTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response should be a PNG of (\d+) pixels$`, testCtx.theResponseShouldBeAPNGOfPixels)
	sc.Step(`^the response should decode to "([^"]*)"$`, testCtx.theResponseShouldDecodeTo)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
