// Package server exposes stored fields over HTTP: listings and statistics
// as JSON, heatmaps and value distributions as PNG or HTML.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/surface.report/internal/httputil"
	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/surface/render"
	"github.com/banshee-data/surface.report/internal/surface/store"
	"github.com/banshee-data/surface.report/internal/version"
)

// Server serves the contents of a field store.
type Server struct {
	db     *store.DB
	opts   field.Options
	charts render.ChartOptions
}

// NewServer creates a server over db. opts configures the engine calls made
// while answering requests.
func NewServer(db *store.DB, opts field.Options) *Server {
	return &Server{db: db, opts: opts}
}

// SetChartOptions changes how HTML charts are rendered.
func (s *Server) SetChartOptions(o render.ChartOptions) {
	s.charts = o
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("GET /api/fields", s.listFields)
	mux.HandleFunc("GET /api/fields/{id}", s.showField)
	mux.HandleFunc("DELETE /api/fields/{id}", s.deleteField)
	mux.HandleFunc("GET /api/fields/{id}/masks", s.listMasks)
	mux.HandleFunc("GET /api/fields/{id}/stats", s.showStats)
	mux.HandleFunc("GET /api/fields/{id}/heatmap", s.showHeatmap)
	mux.HandleFunc("GET /api/fields/{id}/dist", s.showDist)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration of each request
// to the ops stream.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		opsf("[%d] %s %s %.3fms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		opsf("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) listFields(w http.ResponseWriter, r *http.Request) {
	fields, err := s.db.ListFields()
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, fields)
}

func (s *Server) showField(w http.ResponseWriter, r *http.Request) {
	info, err := s.db.GetField(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, info)
}

func (s *Server) deleteField(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteField(r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetField(id); err != nil {
		s.storeError(w, err)
		return
	}
	masks, err := s.db.ListMasks(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, masks)
}

// storeError maps store errors onto responses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	opsf("store error: %v", err)
	httputil.InternalServerError(w, err.Error())
}

// selection loads the field of the request and the selection described by
// the mask and masking query parameters. It writes the error response and
// returns ok=false on failure.
func (s *Server) selection(w http.ResponseWriter, r *http.Request) (f *field.Field, sel field.Selection, maskID string, ok bool) {
	f, err := s.db.LoadField(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return nil, sel, "", false
	}
	q := r.URL.Query()
	maskID = q.Get("mask")
	masking, err := field.ParseMasking(q.Get("masking"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, sel, "", false
	}
	tracef("selection field=%s mask=%q masking=%s", r.PathValue("id"), maskID, masking)
	if maskID == "" {
		if masking != field.MaskIgnore {
			httputil.BadRequest(w, "masking requires a mask")
			return nil, sel, "", false
		}
		return f, field.NoMask(), "", true
	}
	if masking == field.MaskIgnore {
		masking = field.MaskInclude
	}
	var m *mask.Field
	if m, err = s.db.LoadMask(maskID); err != nil {
		s.storeError(w, err)
		return nil, sel, "", false
	}
	if m.XRes() != f.XRes() || m.YRes() != f.YRes() {
		httputil.BadRequest(w, "mask does not match the field")
		return nil, sel, "", false
	}
	return f, field.Select(m, masking), maskID, true
}

type statsResponse struct {
	FieldID  string         `json:"field_id"`
	MaskID   string         `json:"mask_id,omitempty"`
	Masking  string         `json:"masking"`
	N        int            `json:"n"`
	Min      httputil.Float `json:"min"`
	Max      httputil.Float `json:"max"`
	Mean     httputil.Float `json:"mean"`
	Median   httputil.Float `json:"median"`
	Ra       httputil.Float `json:"ra"`
	RMS      httputil.Float `json:"rms"`
	Skew     httputil.Float `json:"skew"`
	Kurtosis httputil.Float `json:"kurtosis"`
	Recorded *time.Time     `json:"recorded,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

func newStatsResponse(fieldID, maskID string, masking string, st field.Statistics) statsResponse {
	return statsResponse{
		FieldID: fieldID, MaskID: maskID, Masking: masking, N: st.N,
		Min: httputil.Float(st.Min), Max: httputil.Float(st.Max),
		Mean: httputil.Float(st.Mean), Median: httputil.Float(st.Median),
		Ra: httputil.Float(st.Ra), RMS: httputil.Float(st.RMS),
		Skew: httputil.Float(st.Skew), Kurtosis: httputil.Float(st.Kurtosis),
	}
}

// showStats computes statistics of a field. With latest=1 it returns the
// last recorded summary instead; with record=1 the computed summary is
// stored. interp picks the interpolation of the area and volume.
func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	if q.Get("latest") == "1" {
		rec, err := s.db.LatestStats(id)
		if err != nil {
			s.storeError(w, err)
			return
		}
		resp := newStatsResponse(rec.FieldID, rec.MaskID, rec.Masking, rec.Stats)
		resp.Recorded = &rec.Recorded
		httputil.WriteJSONOK(w, resp)
		return
	}

	method := field.VolumeGwyddion2
	if v := q.Get("interp"); v != "" {
		var err error
		if method, err = field.ParseVolumeMethod(v); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	f, sel, maskID, ok := s.selection(w, r)
	if !ok {
		return
	}
	st, ok := f.Statistics(nil, sel)
	if !ok {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, "selection is empty")
		return
	}
	if q.Get("record") == "1" {
		if err := s.db.RecordStats(id, maskID, sel.Masking, st); err != nil {
			s.storeError(w, err)
			return
		}
	}
	resp := newStatsResponse(id, maskID, sel.Masking.String(), st)
	resp.Extra = map[string]any{
		"interpolation": method.String(),
		"surface_area":  httputil.Float(f.SurfaceArea(nil, sel, method)),
		"volume":        httputil.Float(f.Volume(nil, sel, method)),
	}
	diagf("stats for %s: n=%d mean=%g", id, st.N, st.Mean)
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showHeatmap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := s.db.LoadField(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	info, err := s.db.GetField(id)
	if err != nil {
		s.storeError(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "png":
		p, err := render.HeatmapPlot(f, info.Name)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := render.WritePNG(w, p, render.Size{}); err != nil {
			opsf("heatmap %s: %v", id, err)
		}
	case "html":
		chart, err := render.HeatmapChart(f, info.Name, s.charts)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.WritePage(w, s.charts, chart); err != nil {
			opsf("heatmap %s: %v", id, err)
		}
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown format %q", format))
	}
}

type distResponse struct {
	Real  httputil.Float   `json:"real"`
	Off   httputil.Float   `json:"off"`
	XUnit string           `json:"x_unit,omitempty"`
	Data  []httputil.Float `json:"data"`
}

// showDist returns the value distribution of a field. Query parameters:
// points (resolution), cumulative=1, continuous=1, mask, masking and
// format (json, png or html).
func (s *Server) showDist(w http.ResponseWriter, r *http.Request) {
	f, sel, _, ok := s.selection(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	npoints := s.opts.DistPoints
	if v := q.Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid points %q", v))
			return
		}
		npoints = n
	}
	cumulative := q.Get("cumulative") == "1"
	line := f.ValueDist(nil, sel, cumulative, q.Get("continuous") == "1", npoints, 0, 0)
	if line.Empty() {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, "selection is empty")
		return
	}
	title := "value distribution"
	if cumulative {
		title = "cumulative value distribution"
	}

	switch format := q.Get("format"); format {
	case "", "json":
		httputil.WriteJSONOK(w, distResponse{
			Real: httputil.Float(line.Real), Off: httputil.Float(line.Off),
			XUnit: line.XUnit, Data: httputil.Floats(line.Data),
		})
	case "png":
		p, err := render.LinePlot(title, nil, line)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := render.WritePNG(w, p, render.Size{}); err != nil {
			opsf("dist: %v", err)
		}
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.WritePage(w, s.charts, render.DistChart(line, title, s.charts)); err != nil {
			opsf("dist: %v", err)
		}
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown format %q", format))
	}
}
