package store

import (
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/testutil"
	"github.com/banshee-data/surface.report/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "surface.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewMockClock(epoch)
	db.SetClock(clock)
	return db, clock
}

func sampleField(xres, yres int) *field.Field {
	f := field.FromData(xres, yres, float64(xres), float64(yres),
		testutil.RandomData(testutil.NewRand(), xres*yres))
	f.XYUnit, f.ZUnit = "m", "nm"
	return f
}

func TestPragmasApplied(t *testing.T) {
	db, _ := setupTestDB(t)
	checks := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
		{"temp_store", "2"},
		{"foreign_keys", "1"},
	}
	for _, c := range checks {
		var got string
		require.NoError(t, db.QueryRow("PRAGMA "+c.pragma).Scan(&got), c.pragma)
		assert.Equal(t, c.want, got, c.pragma)
	}
}

// schemaDefinition returns the normalized SQL of every user table and index.
func schemaDefinition(t *testing.T, db *sql.DB) map[string]string {
	t.Helper()
	rows, err := db.Query(`SELECT name, sql FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND name NOT LIKE 'sqlite_%'
		  AND name != 'schema_migrations'
		  AND sql IS NOT NULL`)
	require.NoError(t, err)
	defer rows.Close()

	schema := map[string]string{}
	for rows.Next() {
		var name, stmt string
		require.NoError(t, rows.Scan(&name, &stmt))
		stmt = strings.Join(strings.Fields(stmt), " ")
		schema[name] = strings.ReplaceAll(strings.TrimSuffix(stmt, ";"), " ,", ",")
	}
	require.NoError(t, rows.Err())
	return schema
}

func TestSchemaConsistency(t *testing.T) {
	migrated, _ := setupTestDB(t)

	fromSchema, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	defer fromSchema.Close()
	_, err = fromSchema.Exec(Schema())
	require.NoError(t, err)

	if diff := cmp.Diff(schemaDefinition(t, fromSchema), schemaDefinition(t, migrated.DB)); diff != "" {
		t.Errorf("schema.sql differs from migrations (-schema.sql +migrated):\n%s", diff)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db, _ := setupTestDB(t)
	fsys, err := MigrationsFS()
	require.NoError(t, err)

	latest, err := LatestMigrationVersion(fsys)
	require.NoError(t, err)
	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown(fsys))
	version, _, err = db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, latest-1, version)
	assert.NotContains(t, schemaDefinition(t, db.DB), "field_stats")

	require.NoError(t, db.MigrateTo(fsys, latest))
	assert.Contains(t, schemaDefinition(t, db.DB), "field_stats")

	// Running up again is a no-op.
	require.NoError(t, db.MigrateUp(fsys))
}

func TestFieldRoundTrip(t *testing.T) {
	db, _ := setupTestDB(t)
	f := sampleField(6, 4)
	f.SetOffsets(1.5, -2)

	id, err := db.SaveField("sample", f)
	require.NoError(t, err)

	g, err := db.LoadField(id)
	require.NoError(t, err)
	assert.Equal(t, f.Data(), g.Data())
	assert.Equal(t, []float64{1.5, -2}, []float64{g.XOffset(), g.YOffset()})

	info, err := db.GetField(id)
	require.NoError(t, err)
	want := FieldInfo{ID: id, Name: "sample", XRes: 6, YRes: 4, XReal: 6, YReal: 4,
		XYUnit: "m", ZUnit: "nm", Created: epoch}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("field info mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingRecords(t *testing.T) {
	db, _ := setupTestDB(t)
	_, err := db.LoadField("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.GetField("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.LoadMask("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.LatestStats("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.DeleteField("nope"), ErrNotFound))
	_, err = db.SaveMask("nope", "m", mask.New(2, 2))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListFieldsNewestFirst(t *testing.T) {
	db, clock := setupTestDB(t)
	fields, err := db.ListFields()
	require.NoError(t, err)
	assert.Empty(t, fields)

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		id, err := db.SaveField(name, sampleField(3, 3))
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}

	fields, err = db.ListFields()
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{fields[0].ID, fields[1].ID, fields[2].ID})
	assert.Equal(t, epoch.Add(2*time.Minute), fields[0].Created)
}

func TestMasks(t *testing.T) {
	db, _ := setupTestDB(t)
	fid, err := db.SaveField("sample", sampleField(5, 4))
	require.NoError(t, err)

	m := mask.FromData(5, 4, testutil.RandomBools(testutil.NewRand(), 20, 0.4))
	mid, err := db.SaveMask(fid, "grains", m)
	require.NoError(t, err)

	got, err := db.LoadMask(mid)
	require.NoError(t, err)
	assert.Equal(t, m.Data(), got.Data())

	_, err = db.SaveMask(fid, "wrong size", mask.New(4, 5))
	assert.Error(t, err)

	masks, err := db.ListMasks(fid)
	require.NoError(t, err)
	require.Len(t, masks, 1)
	assert.Equal(t, MaskInfo{ID: mid, FieldID: fid, Name: "grains", Created: epoch}, masks[0])
}

func TestStatsRecording(t *testing.T) {
	db, clock := setupTestDB(t)
	f := sampleField(8, 8)
	fid, err := db.SaveField("sample", f)
	require.NoError(t, err)

	st, ok := f.Statistics(nil, field.NoMask())
	require.True(t, ok)
	require.NoError(t, db.RecordStats(fid, "", field.MaskIgnore, st))

	clock.Advance(time.Second)
	m := mask.New(8, 8)
	m.Fill(&mask.Part{Col: 0, Row: 0, Width: 2, Height: 1}, true)
	mid, err := db.SaveMask(fid, "pair", m)
	require.NoError(t, err)
	// Two pixels have no defined kurtosis.
	masked, ok := f.Statistics(nil, field.Include(m))
	require.True(t, ok)
	masked.Kurtosis = math.NaN()
	require.NoError(t, db.RecordStats(fid, mid, field.MaskInclude, masked))

	rec, err := db.LatestStats(fid)
	require.NoError(t, err)
	assert.Equal(t, mid, rec.MaskID)
	assert.Equal(t, "include", rec.Masking)
	assert.Equal(t, 2, rec.Stats.N)
	assert.Equal(t, masked.Mean, rec.Stats.Mean)
	assert.True(t, math.IsNaN(rec.Stats.Kurtosis))
	assert.Equal(t, epoch.Add(time.Second), rec.Recorded)
}

func TestDeleteFieldRemovesDependents(t *testing.T) {
	db, _ := setupTestDB(t)
	fid, err := db.SaveField("doomed", sampleField(3, 3))
	require.NoError(t, err)
	_, err = db.SaveMask(fid, "m", mask.New(3, 3))
	require.NoError(t, err)
	require.NoError(t, db.RecordStats(fid, "", field.MaskIgnore, field.Statistics{N: 9}))

	require.NoError(t, db.DeleteField(fid))
	for _, table := range []string{"fields", "masks", "field_stats"} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}
