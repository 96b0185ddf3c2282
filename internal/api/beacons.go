package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/httputil"
	"github.com/banshee-data/beaconradar/internal/query"
	"github.com/banshee-data/beaconradar/internal/session"
	"github.com/banshee-data/beaconradar/internal/version"
)

type statusResponse struct {
	session.Status
	Scanning bool   `json:"scanning"`
	Source   string `json:"source"`
	Version  string `json:"version"`
	Archive  string `json:"archive,omitempty"`
	Clients  int    `json:"ws_clients"`
}

func (s *Server) status() statusResponse {
	st := statusResponse{
		Status:   s.sess.Status(),
		Scanning: s.sess.Scanning(),
		Source:   s.source,
		Version:  version.String(),
		Clients:  s.hub.Clients(),
	}
	if s.archive != nil {
		st.Archive = s.archive.Path()
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

type beaconsResponse struct {
	Time      time.Time              `json:"time"`
	Threshold string                 `json:"threshold"`
	Sort      query.SortState        `json:"sort"`
	Indicator string                 `json:"indicator"`
	Count     int                    `json:"count"`
	Active    int                    `json:"active"`
	Beacons   []beacon.DisplayRecord `json:"beacons"`
}

// handleBeacons serves GET /api/beacons?threshold=3s&name=&min_rssi=-100&sort=rssi&dir=desc.
func (s *Server) handleBeacons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q, err := parseDisplayQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	threshold := q.Threshold
	if threshold <= 0 {
		threshold = s.sess.Threshold()
	}
	sortState := s.sess.SortState()
	if q.Sort != nil {
		sortState = *q.Sort
	}

	records := s.sess.Display(q)
	resp := beaconsResponse{
		Time:      time.Now(),
		Threshold: threshold.String(),
		Sort:      sortState,
		Indicator: sortState.Indicator(),
		Count:     len(records),
		Beacons:   records,
	}
	for _, rec := range records {
		if rec.IsActive {
			resp.Active++
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func parseDisplayQuery(r *http.Request) (session.Query, error) {
	v := r.URL.Query()
	q := session.Query{
		NameFilter: v.Get("name"),
	}

	if t := v.Get("threshold"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil || d <= 0 {
			return q, fmt.Errorf("invalid threshold %q", t)
		}
		q.Threshold = d
	}

	if m := v.Get("min_rssi"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return q, fmt.Errorf("invalid min_rssi %q", m)
		}
		q.MinRSSI = &n
	}

	if c := v.Get("sort"); c != "" {
		col, err := query.ParseColumn(c)
		if err != nil {
			return q, err
		}
		st := query.SortState{Column: col, Descending: col.DefaultDescending()}
		switch strings.ToLower(v.Get("dir")) {
		case "":
		case "asc":
			st.Descending = false
		case "desc":
			st.Descending = true
		default:
			return q, fmt.Errorf("invalid dir %q: expected asc or desc", v.Get("dir"))
		}
		q.Sort = &st
	}
	return q, nil
}

// handleSort serves POST /api/beacons/sort?column=name, the equivalent of a
// header click: the same column flips direction, a new one starts at its
// default.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	col, err := query.ParseColumn(r.URL.Query().Get("column"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	st := s.sess.SelectSort(col)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"sort":      st,
		"indicator": st.Indicator(),
	})
}

// handleScan serves POST /api/scan/{start,pause,stop}. Stop pauses and
// resets the session.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var err error
	switch action := strings.TrimPrefix(r.URL.Path, "/api/scan/"); action {
	case "start":
		err = s.sess.Start(r.Context())
	case "pause":
		err = s.sess.Pause(r.Context())
	case "stop":
		err = s.sess.Stop(r.Context())
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown scan action %q", action))
		return
	}
	if err != nil {
		logf("scan %s: %v", r.URL.Path, err)
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.sess.Reset()
	httputil.WriteJSONOK(w, s.status())
}
