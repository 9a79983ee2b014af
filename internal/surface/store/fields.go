package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/mask"
	"github.com/banshee-data/surface.report/internal/surface/serialize"
	"github.com/banshee-data/surface.report/internal/timeutil"
)

// FieldInfo is the metadata of a stored field.
type FieldInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	XRes    int       `json:"xres"`
	YRes    int       `json:"yres"`
	XReal   float64   `json:"xreal"`
	YReal   float64   `json:"yreal"`
	XYUnit  string    `json:"xy_unit"`
	ZUnit   string    `json:"z_unit"`
	Created time.Time `json:"created"`
}

// MaskInfo is the metadata of a stored mask.
type MaskInfo struct {
	ID      string    `json:"id"`
	FieldID string    `json:"field_id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// StatsRecord is a statistics summary recorded for a field.
type StatsRecord struct {
	FieldID  string           `json:"field_id"`
	MaskID   string           `json:"mask_id,omitempty"`
	Masking  string           `json:"masking"`
	Stats    field.Statistics `json:"stats"`
	Recorded time.Time        `json:"recorded"`
}

// SaveField stores f under name and returns the new field id.
func (db *DB) SaveField(name string, f *field.Field) (string, error) {
	blob, err := serialize.EncodeField(f)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = db.Exec(`INSERT INTO fields
		(field_id, name, xres, yres, xreal, yreal, xy_unit, z_unit, field_blob, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, f.XRes(), f.YRes(), f.XReal(), f.YReal(), f.XYUnit, f.ZUnit, blob,
		timeutil.UnixSeconds(db.clock.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to insert field %q: %w", name, err)
	}
	diagf("saved field %s (%s, %dx%d, %d bytes)", id, name, f.XRes(), f.YRes(), len(blob))
	return id, nil
}

// LoadField returns the field stored under id.
func (db *DB) LoadField(id string) (*field.Field, error) {
	var blob []byte
	err := db.QueryRow(`SELECT field_blob FROM fields WHERE field_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("field %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load field %s: %w", id, err)
	}
	f, err := serialize.DecodeField(blob)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", id, err)
	}
	return f, nil
}

// GetField returns the metadata of the field stored under id.
func (db *DB) GetField(id string) (FieldInfo, error) {
	row := db.QueryRow(`SELECT field_id, name, xres, yres, xreal, yreal, xy_unit, z_unit, created_unix
		FROM fields WHERE field_id = ?`, id)
	info, err := scanFieldInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FieldInfo{}, fmt.Errorf("field %s: %w", id, ErrNotFound)
	}
	return info, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFieldInfo(row scanner) (FieldInfo, error) {
	var info FieldInfo
	var created float64
	if err := row.Scan(&info.ID, &info.Name, &info.XRes, &info.YRes, &info.XReal, &info.YReal,
		&info.XYUnit, &info.ZUnit, &created); err != nil {
		return FieldInfo{}, err
	}
	info.Created = timeutil.FromUnixSeconds(created)
	return info, nil
}

// ListFields returns the metadata of all stored fields, newest first.
func (db *DB) ListFields() ([]FieldInfo, error) {
	rows, err := db.Query(`SELECT field_id, name, xres, yres, xreal, yreal, xy_unit, z_unit, created_unix
		FROM fields ORDER BY created_unix DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	fields := []FieldInfo{}
	for rows.Next() {
		info, err := scanFieldInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, info)
	}
	return fields, rows.Err()
}

// DeleteField removes a field together with its masks and statistics.
func (db *DB) DeleteField(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM field_stats WHERE field_id = ?`,
		`DELETE FROM masks WHERE field_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("failed to delete field %s: %w", id, err)
		}
	}
	res, err := tx.Exec(`DELETE FROM fields WHERE field_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("field %s: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	opsf("deleted field %s", id)
	return nil
}

// SaveMask stores m for the field fieldID. The mask must match the field
// dimensions.
func (db *DB) SaveMask(fieldID, name string, m *mask.Field) (string, error) {
	info, err := db.GetField(fieldID)
	if err != nil {
		return "", err
	}
	if m.XRes() != info.XRes || m.YRes() != info.YRes {
		return "", fmt.Errorf("mask %dx%d does not match field %s (%dx%d)",
			m.XRes(), m.YRes(), fieldID, info.XRes, info.YRes)
	}
	blob, err := serialize.EncodeMask(m)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = db.Exec(`INSERT INTO masks (mask_id, field_id, name, mask_blob, created_unix)
		VALUES (?, ?, ?, ?, ?)`, id, fieldID, name, blob, timeutil.UnixSeconds(db.clock.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to insert mask %q: %w", name, err)
	}
	return id, nil
}

// LoadMask returns the mask stored under id.
func (db *DB) LoadMask(id string) (*mask.Field, error) {
	var blob []byte
	err := db.QueryRow(`SELECT mask_blob FROM masks WHERE mask_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mask %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mask %s: %w", id, err)
	}
	m, err := serialize.DecodeMask(blob)
	if err != nil {
		return nil, fmt.Errorf("mask %s: %w", id, err)
	}
	return m, nil
}

// ListMasks returns the masks stored for fieldID, oldest first.
func (db *DB) ListMasks(fieldID string) ([]MaskInfo, error) {
	rows, err := db.Query(`SELECT mask_id, field_id, name, created_unix FROM masks
		WHERE field_id = ? ORDER BY created_unix, name`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to list masks: %w", err)
	}
	defer rows.Close()

	masks := []MaskInfo{}
	for rows.Next() {
		var mi MaskInfo
		var created float64
		if err := rows.Scan(&mi.ID, &mi.FieldID, &mi.Name, &created); err != nil {
			return nil, fmt.Errorf("failed to scan mask: %w", err)
		}
		mi.Created = timeutil.FromUnixSeconds(created)
		masks = append(masks, mi)
	}
	return masks, rows.Err()
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

// RecordStats stores a statistics summary of fieldID. maskID may be empty
// when the statistics cover the whole field.
func (db *DB) RecordStats(fieldID, maskID string, masking field.Masking, st field.Statistics) error {
	var mid sql.NullString
	if maskID != "" {
		mid = sql.NullString{String: maskID, Valid: true}
	}
	_, err := db.Exec(`INSERT INTO field_stats
		(field_id, mask_id, masking, n, min_value, max_value, mean, median, ra, rms, skew, kurtosis, recorded_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fieldID, mid, masking.String(), st.N,
		nullable(st.Min), nullable(st.Max), nullable(st.Mean), nullable(st.Median),
		nullable(st.Ra), nullable(st.RMS), nullable(st.Skew), nullable(st.Kurtosis),
		timeutil.UnixSeconds(db.clock.Now()))
	if err != nil {
		return fmt.Errorf("failed to record stats for field %s: %w", fieldID, err)
	}
	return nil
}

// LatestStats returns the most recently recorded statistics of fieldID.
func (db *DB) LatestStats(fieldID string) (StatsRecord, error) {
	var (
		rec      StatsRecord
		mid      sql.NullString
		vals     [8]sql.NullFloat64
		recorded float64
	)
	err := db.QueryRow(`SELECT field_id, mask_id, masking, n,
		min_value, max_value, mean, median, ra, rms, skew, kurtosis, recorded_unix
		FROM field_stats WHERE field_id = ?
		ORDER BY recorded_unix DESC, stats_id DESC LIMIT 1`, fieldID).Scan(
		&rec.FieldID, &mid, &rec.Masking, &rec.Stats.N,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7], &recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return StatsRecord{}, fmt.Errorf("stats for field %s: %w", fieldID, ErrNotFound)
	}
	if err != nil {
		return StatsRecord{}, fmt.Errorf("failed to load stats for field %s: %w", fieldID, err)
	}
	out := []*float64{&rec.Stats.Min, &rec.Stats.Max, &rec.Stats.Mean, &rec.Stats.Median,
		&rec.Stats.Ra, &rec.Stats.RMS, &rec.Stats.Skew, &rec.Stats.Kurtosis}
	for k, v := range vals {
		*out[k] = math.NaN()
		if v.Valid {
			*out[k] = v.Float64
		}
	}
	rec.MaskID = mid.String
	rec.Recorded = timeutil.FromUnixSeconds(recorded)
	return rec, nil
}
