package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/banshee-data/beaconradar/internal/db"
	"github.com/banshee-data/beaconradar/internal/httputil"
	"github.com/banshee-data/beaconradar/internal/security"
	"github.com/banshee-data/beaconradar/internal/session"
)

// withArchive runs fn against the archive named by ?path= (inside the export
// directory) or, without one, the archive the server was started with.
func (s *Server) withArchive(w http.ResponseWriter, r *http.Request, fn func(*db.DB)) {
	name := r.URL.Query().Get("path")
	if name == "" {
		if s.archive == nil {
			httputil.ServiceUnavailable(w, "no archive configured; pass ?path=")
			return
		}
		fn(s.archive)
		return
	}

	path, err := security.ResolveExportPath(name, s.exportDir, ".db")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if s.archive != nil && s.archive.Path() == path {
		fn(s.archive)
		return
	}
	archive, err := db.Open(path)
	if err != nil {
		logf("open archive %s: %v", path, err)
		httputil.InternalServerError(w, "failed to open archive")
		return
	}
	defer archive.Close()
	fn(archive)
}

type archiveResponse struct {
	SessionID string `json:"session_id"`
	Records   int    `json:"records"`
	Path      string `json:"path"`
}

// handleArchive serves POST /api/archive, storing the current export log.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	records := s.sess.Log()
	if len(records) == 0 {
		httputil.Conflict(w, session.ErrNothingToExport.Error())
		return
	}

	s.withArchive(w, r, func(archive *db.DB) {
		id := s.sess.ID()
		n, err := archive.ArchiveSession(id, s.sess.StartedAt(), records)
		if err != nil {
			logf("archive session %s: %v", id, err)
			httputil.InternalServerError(w, "failed to archive session")
			return
		}
		httputil.WriteJSONOK(w, archiveResponse{SessionID: id, Records: n, Path: archive.Path()})
	})
}

// handleArchiveSessions serves GET /api/archive/sessions.
func (s *Server) handleArchiveSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	s.withArchive(w, r, func(archive *db.DB) {
		sessions, err := archive.Sessions()
		if err != nil {
			logf("list archived sessions: %v", err)
			httputil.InternalServerError(w, "failed to list sessions")
			return
		}
		if sessions == nil {
			sessions = []db.SessionSummary{}
		}
		httputil.WriteJSONOK(w, sessions)
	})
}

// handleArchiveRecords serves GET /api/archive/records?session=..
func (s *Server) handleArchiveRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		httputil.BadRequest(w, "session is required")
		return
	}
	s.withArchive(w, r, func(archive *db.DB) {
		records, err := archive.SessionRecords(id)
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			logf("read archived session %s: %v", id, err)
			httputil.InternalServerError(w, "failed to read session")
			return
		}
		httputil.WriteJSONOK(w, records)
	})
}

// handleArchiveRestore serves POST /api/archive/restore?session=.. loading
// an archived session the same way a CSV import would.
func (s *Server) handleArchiveRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		httputil.BadRequest(w, "session is required")
		return
	}
	if s.sess.Scanning() {
		httputil.Conflict(w, session.ErrScanning.Error())
		return
	}
	s.withArchive(w, r, func(archive *db.DB) {
		records, err := archive.SessionRecords(id)
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			logf("read archived session %s: %v", id, err)
			httputil.InternalServerError(w, "failed to read session")
			return
		}

		var buf bytes.Buffer
		if err := session.WriteCSV(&buf, records); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		res, err := s.sess.ImportReader(&buf)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		httputil.WriteJSONOK(w, res)
	})
}
