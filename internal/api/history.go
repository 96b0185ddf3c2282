package api

import (
	"bytes"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/chart"
	"github.com/banshee-data/beaconradar/internal/history"
	"github.com/banshee-data/beaconradar/internal/httputil"
	"github.com/banshee-data/beaconradar/internal/security"
)

type historyResponse struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Window  string        `json:"window"`
	Samples []int         `json:"samples"`
	Summary chart.Summary `json:"summary"`
}

func (s *Server) deviceName(id string) string {
	if o, ok := s.sess.Observation(id); ok {
		return o.Name
	}
	return beacon.UnknownName
}

// seriesFor collects the window of every id that has a series. No ids
// means every device.
func (s *Server) seriesFor(ids []string, w history.Window) []chart.Series {
	if len(ids) == 0 {
		ids = s.sess.HistoryIDs()
	}
	series := make([]chart.Series, 0, len(ids))
	for _, id := range ids {
		samples, ok := s.sess.History(id, w)
		if !ok {
			continue
		}
		series = append(series, chart.Series{ID: id, Name: s.deviceName(id), Samples: samples})
	}
	return series
}

func splitIDs(v string) []string {
	var ids []string
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// chartRequest parses ids, window, title, xlabel, ylabel and legend.<id>.
func chartRequest(v url.Values) ([]string, chart.Options, error) {
	w, err := history.ParseWindow(v.Get("window"))
	if err != nil {
		return nil, chart.Options{}, err
	}
	o := chart.Options{
		Title:  v.Get("title"),
		XLabel: v.Get("xlabel"),
		YLabel: v.Get("ylabel"),
		Window: w,
	}
	for key, vals := range v {
		if id, ok := strings.CutPrefix(key, "legend."); ok && id != "" && len(vals) > 0 {
			if o.Legends == nil {
				o.Legends = make(map[string]string)
			}
			o.Legends[id] = vals[0]
		}
	}
	return splitIDs(v.Get("ids")), o, nil
}

// handleHistory serves GET /api/history?id=..&window=60s with summary
// statistics of the window.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	v := r.URL.Query()
	id := v.Get("id")
	if id == "" {
		httputil.BadRequest(w, "id is required")
		return
	}
	win, err := history.ParseWindow(v.Get("window"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	samples, ok := s.sess.History(id, win)
	if !ok {
		httputil.NotFound(w, "no history for "+id)
		return
	}
	httputil.WriteJSONOK(w, historyResponse{
		ID:      id,
		Name:    s.deviceName(id),
		Window:  win.String(),
		Samples: samples,
		Summary: chart.Summarize(samples),
	})
}

// handleHistoryChart serves GET /charts/history?ids=a,b&window=60s as an
// interactive HTML chart.
func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ids, opts, err := chartRequest(r.URL.Query())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := chart.LineHTML(&buf, s.seriesFor(ids, opts.Window), opts); err != nil {
		logf("render history chart: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// handlePlot serves GET /api/plot.png, the same chart as a PNG image.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ids, opts, err := chartRequest(r.URL.Query())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := chart.WritePNG(&buf, s.seriesFor(ids, opts.Window), opts); err != nil {
		logf("render plot: %v", err)
		httputil.InternalServerError(w, "failed to render plot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	buf.WriteTo(w)
}

type plotSaveResponse struct {
	Path   string `json:"path"`
	Series int    `json:"series"`
}

// handlePlotSave serves POST /api/plot/save?path=..&ids=..&window=.. and
// writes the plot into the export directory. The image format follows the
// extension of path, png when it has none.
func (s *Server) handlePlotSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	v := r.URL.Query()
	ids, opts, err := chartRequest(v)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	path, err := security.ResolveExportPath(v.Get("path"), s.exportDir, ".png")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !chart.IsImageExt(filepath.Ext(path)) {
		httputil.BadRequest(w, "unsupported image format "+filepath.Ext(path))
		return
	}

	series := s.seriesFor(ids, opts.Window)
	if len(series) == 0 {
		httputil.Conflict(w, "no history to plot")
		return
	}
	if err := chart.SavePNG(path, series, opts); err != nil {
		logf("save plot: %v", err)
		httputil.InternalServerError(w, "failed to save plot")
		return
	}
	httputil.WriteJSONOK(w, plotSaveResponse{Path: path, Series: len(series)})
}
