// Package api serves the beacon radar over HTTP: the live device list,
// scan and session control, CSV export and import, history charts, the
// sqlite archive and a websocket feed of poll updates.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/beaconradar/internal/db"
	"github.com/banshee-data/beaconradar/internal/monitoring"
	"github.com/banshee-data/beaconradar/internal/session"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxImportBytes bounds CSV bodies posted to the import endpoint.
const maxImportBytes = 64 << 20

var logf = monitoring.Prefixed("api")

// Options configures a Server. Archive may be nil, in which case the
// archive endpoints need an explicit path.
type Options struct {
	Session   *session.Session
	Archive   *db.DB
	ExportDir string
	// Source is the configured scanner source, reported by /api/status.
	Source string
}

type Server struct {
	sess      *session.Session
	archive   *db.DB
	exportDir string
	source    string
	hub       *Hub

	// listPorts enumerates serial devices; replaced in tests.
	listPorts func() ([]string, error)
}

func NewServer(opts Options) *Server {
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	return &Server{
		sess:      opts.Session,
		archive:   opts.Archive,
		exportDir: exportDir,
		source:    opts.Source,
		hub:       NewHub(),
		listPorts: defaultListPorts,
	}
}

// Hub returns the websocket hub fed by Run.
func (s *Server) Hub() *Hub { return s.hub }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes the websocket upgrade through to the wrapped writer.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/beacons", s.handleBeacons)
	mux.HandleFunc("/api/beacons/sort", s.handleSort)
	mux.HandleFunc("/api/scan/start", s.handleScan)
	mux.HandleFunc("/api/scan/pause", s.handleScan)
	mux.HandleFunc("/api/scan/stop", s.handleScan)
	mux.HandleFunc("/api/session/reset", s.handleReset)
	mux.HandleFunc("/api/session/export", s.handleExport)
	mux.HandleFunc("/api/session/export.csv", s.handleDownload)
	mux.HandleFunc("/api/session/import", s.handleImport)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/charts/history", s.handleHistoryChart)
	mux.HandleFunc("/api/plot.png", s.handlePlot)
	mux.HandleFunc("/api/plot/save", s.handlePlotSave)
	mux.HandleFunc("/api/archive", s.handleArchive)
	mux.HandleFunc("/api/archive/sessions", s.handleArchiveSessions)
	mux.HandleFunc("/api/archive/records", s.handleArchiveRecords)
	mux.HandleFunc("/api/archive/restore", s.handleArchiveRestore)
	mux.HandleFunc("/api/serial/devices", s.handleSerialDevices)
	mux.HandleFunc("/ws", s.hub.ServeWS)
	return mux
}

// Run feeds session updates to the websocket hub until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Feed(ctx, s.sess)
	s.hub.Run(ctx)
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// the server down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errc := make(chan error, 1)
	go func() {
		logf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		return err
	}
	return nil
}
