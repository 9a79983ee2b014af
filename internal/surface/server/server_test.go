package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/surface/store"
	"github.com/banshee-data/surface.report/internal/testutil"
)

type fixture struct {
	db      *store.DB
	mux     http.Handler
	fieldID string
	maskID  string
	field   *field.Field
	mask    *mask.Field
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rng := testutil.NewRand()
	f := field.FromData(12, 10, 6, 5, testutil.RandomData(rng, 120))
	f.XYUnit, f.ZUnit = "m", "m"
	fid, err := db.SaveField("sample", f)
	require.NoError(t, err)

	m := mask.New(12, 10)
	m.Fill(&mask.Part{Col: 2, Row: 2, Width: 5, Height: 4}, true)
	mid, err := db.SaveMask(fid, "box", m)
	require.NoError(t, err)

	s := NewServer(db, field.DefaultOptions())
	return &fixture{db: db, mux: LoggingMiddleware(s.ServeMux()), fieldID: fid, maskID: mid, field: f, mask: m}
}

func (fx *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	fx.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestListFields(t *testing.T) {
	fx := setup(t)
	w := fx.get(t, "/api/fields")
	require.Equal(t, http.StatusOK, w.Code)
	fields := decode[[]store.FieldInfo](t, w)
	require.Len(t, fields, 1)
	assert.Equal(t, fx.fieldID, fields[0].ID)
	assert.Equal(t, 12, fields[0].XRes)

	w = fx.get(t, "/api/fields/"+fx.fieldID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sample", decode[store.FieldInfo](t, w).Name)

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/masks")
	require.Equal(t, http.StatusOK, w.Code)
	masks := decode[[]store.MaskInfo](t, w)
	require.Len(t, masks, 1)
	assert.Equal(t, fx.maskID, masks[0].ID)
}

func TestNotFound(t *testing.T) {
	fx := setup(t)
	for _, path := range []string{
		"/api/fields/missing",
		"/api/fields/missing/stats",
		"/api/fields/missing/masks",
		"/api/fields/missing/heatmap",
		"/api/fields/missing/dist",
		"/api/fields/missing/stats?latest=1",
	} {
		w := fx.get(t, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := fx.get(t, "/api/fields/"+fx.fieldID+"/stats?mask=missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	fx := setup(t)
	w := fx.get(t, "/api/fields/"+fx.fieldID+"/stats")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	want, _ := fx.field.Statistics(nil, field.NoMask())
	assert.Equal(t, float64(want.N), resp["n"])
	testutil.AssertClose(t, "mean", resp["mean"].(float64), want.Mean, 1e-12)
	assert.Equal(t, "ignore", resp["masking"])
	extra := resp["extra"].(map[string]any)
	assert.Equal(t, "gwyddion2", extra["interpolation"])
	testutil.AssertClose(t, "area", extra["surface_area"].(float64),
		fx.field.SurfaceArea(nil, field.NoMask(), field.VolumeGwyddion2), 1e-12)

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/stats?interp=bilinear")
	require.Equal(t, http.StatusOK, w.Code)
	extra = decode[map[string]any](t, w)["extra"].(map[string]any)
	testutil.AssertClose(t, "bilinear area", extra["surface_area"].(float64),
		fx.field.SurfaceArea(nil, field.NoMask(), field.VolumeBilinear), 1e-12)

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/stats?mask="+fx.maskID+"&masking=exclude&record=1")
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[map[string]any](t, w)
	assert.Equal(t, float64(120-20), resp["n"])
	assert.Equal(t, "exclude", resp["masking"])

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/stats?latest=1")
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[map[string]any](t, w)
	assert.Equal(t, fx.maskID, resp["mask_id"])
	assert.Contains(t, resp, "recorded")
}

func TestStatsBadSelection(t *testing.T) {
	fx := setup(t)
	tests := []struct {
		query string
		code  int
	}{
		{"?masking=sideways", http.StatusBadRequest},
		{"?masking=include", http.StatusBadRequest},
		{"?interp=spline", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := fx.get(t, "/api/fields/"+fx.fieldID+"/stats"+tt.query)
		assert.Equal(t, tt.code, w.Code, tt.query)
	}

	// An all-false mask selects nothing.
	empty, err := fx.db.SaveMask(fx.fieldID, "empty", mask.New(12, 10))
	require.NoError(t, err)
	w := fx.get(t, "/api/fields/"+fx.fieldID+"/stats?mask="+empty)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDist(t *testing.T) {
	fx := setup(t)
	w := fx.get(t, "/api/fields/"+fx.fieldID+"/dist?points=10&mask="+fx.maskID)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Real float64   `json:"real"`
		Data []float64 `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 10)
	var integral float64
	for _, v := range resp.Data {
		integral += v * resp.Real / 10
	}
	testutil.AssertClose(t, "integral", integral, 1, 1e-9)

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/dist?format=png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/dist?format=html&cumulative=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cumulative value distribution")

	for _, q := range []string{"?points=-1", "?format=svg"} {
		w = fx.get(t, "/api/fields/"+fx.fieldID+"/dist"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestHeatmap(t *testing.T) {
	fx := setup(t)
	w := fx.get(t, "/api/fields/"+fx.fieldID+"/heatmap")
	require.Equal(t, http.StatusOK, w.Code)
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dy())

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/heatmap?format=html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))

	w = fx.get(t, "/api/fields/"+fx.fieldID+"/heatmap?format=gif")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteField(t *testing.T) {
	fx := setup(t)
	w := httptest.NewRecorder()
	fx.mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/fields/"+fx.fieldID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = fx.get(t, "/api/fields")
	assert.Empty(t, decode[[]store.FieldInfo](t, w))

	w = httptest.NewRecorder()
	fx.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/fields", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestVersion(t *testing.T) {
	fx := setup(t)
	w := fx.get(t, "/api/version")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w), "version")
}

func TestListenAndServeShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, addr, http.NotFoundHandler()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
