package store

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.report/internal/testutil"
)

func TestAttachAdminRoutes(t *testing.T) {
	db, _ := setupTestDB(t)
	_, err := db.SaveField("sample", sampleField(4, 4))
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/tailsql/", "/debug/backup"} {
		req := testutil.NewTestRequest(http.MethodGet, path)
		req.RemoteAddr = "127.0.0.1:4242"
		w := testutil.NewTestRecorder()
		mux.ServeHTTP(w, req)
		assert.NotEqual(t, http.StatusNotFound, w.Code, path)
	}
}

func TestServeBackup(t *testing.T) {
	db, _ := setupTestDB(t)
	_, err := db.SaveField("sample", sampleField(4, 4))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	db.serveBackup(w, testutil.NewTestRequest(http.MethodGet, "/debug/backup"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.True(t, strings.HasSuffix(w.Header().Get("Content-Disposition"), ".db.gz"))

	gz, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("SQLite format 3")))

	leftovers, err := filepath.Glob("backup-*.db")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
