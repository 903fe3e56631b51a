package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/server"
	"github.com/MeKo-Tech/qrkit/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP and WebSocket server",
	Long: `Start a local server exposing scan and generate over HTTP and pushing
state changes over a WebSocket.

Endpoints:
  GET  /health          liveness and version
  GET  /metrics         prometheus metrics
  GET  /state           current scan status, pending text and generated code
  POST /scan            multipart "image" upload, or JSON {"uri": ...} / {"clipboard": true}
  POST /generate        JSON {"text": ..., "size": ...}, answers image/png
  GET  /generated.png   the last generated code
  GET  /ws              WebSocket: state events, scan_clipboard / scan_uri / set_text / generate

Examples:
  qrkit serve
  qrkit serve --host 0.0.0.0 --port 9000 --rate-limit-enabled`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		log := GetLogger()
		sc := cfg.Server

		if sc.Port < 1 || sc.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
		}

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		ctrl := newController(cfg, log, appOptions{})
		srv := server.NewServer(ctrl, server.Config{
			Host:              sc.Host,
			Port:              sc.Port,
			CORSOrigin:        sc.CORSOrigin,
			MaxUploadMB:       int64(sc.MaxUploadMB),
			TimeoutSec:        sc.TimeoutSec,
			ShutdownTimeout:   sc.ShutdownTimeout,
			RateLimitEnabled:  sc.RateLimitEnabled,
			RequestsPerMinute: sc.RequestsPerMinute,
			TrustProxyHeaders: sc.TrustProxyHeaders,
			Version:           version.Version,
			Logger:            log,
		})

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		// No WriteTimeout: WebSocket connections are long-lived.
		httpServer := &http.Server{
			Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		}

		go func() {
			log.Info("Starting qrkit server", "host", sc.Host, "port", sc.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			log.Info("Context cancelled, initiating shutdown")
		}

		log.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", "error", err)
			return fmt.Errorf("shutting down: %w", err)
		}
		log.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("size", 360, "default edge length of generated PNGs (at most 2048)")
	serveCmd.Flags().Int("max-pixels", 50_000_000, "reject scanned images with more pixels than this before decoding (0 disables)")
	serveCmd.Flags().Duration("fetch-timeout", 0, "timeout for downloading scanned links (0 waits indefinitely)")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Bool("trust-proxy-headers", false, "identify rate-limited clients by X-Forwarded-For/X-Real-IP (only behind a trusted proxy)")
}
