package api

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/banshee-data/beaconradar/internal/httputil"
	"github.com/banshee-data/beaconradar/internal/security"
	"github.com/banshee-data/beaconradar/internal/session"
)

// defaultExportName names exports when the caller gives no path.
func defaultExportName(now time.Time) string {
	return "beacons-" + now.Format("20060102-150405") + ".csv"
}

// writeSessionError maps session errors onto HTTP responses.
func writeSessionError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrScanning), errors.Is(err, session.ErrNothingToExport):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, fs.ErrNotExist):
		httputil.NotFound(w, err.Error())
	case errors.As(err, &tooBig):
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		logf("session error: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}

type exportResponse struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

// handleExport serves POST /api/session/export?path=.. writing the export
// log to a file inside the export directory.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.URL.Query().Get("path")
	if name == "" {
		name = defaultExportName(time.Now())
	}
	path, err := security.ResolveExportPath(name, s.exportDir, ".csv")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	n, err := s.sess.Export(path)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	httputil.WriteJSONOK(w, exportResponse{Path: path, Records: n})
}

// handleDownload serves GET /api/session/export.csv.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	var buf bytes.Buffer
	if err := s.sess.WriteCSV(&buf); err != nil {
		writeSessionError(w, err)
		return
	}

	filename := fmt.Sprintf("beacons-%s.csv", security.SanitizeFilename(s.sess.ID()))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if _, err := buf.WriteTo(w); err != nil {
		logf("failed to write csv download: %v", err)
	}
}

// handleImport serves POST /api/session/import. With ?path= the file is
// read from the export directory, otherwise the request body is the CSV.
// Import replaces the whole session and is refused while scanning.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var (
		res session.ImportResult
		err error
	)
	if name := r.URL.Query().Get("path"); name != "" {
		path, perr := security.ResolveExportPath(name, s.exportDir, ".csv")
		if perr != nil {
			httputil.BadRequest(w, perr.Error())
			return
		}
		res, err = s.sess.Import(path)
	} else {
		res, err = s.sess.ImportReader(http.MaxBytesReader(w, r.Body, maxImportBytes))
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}
