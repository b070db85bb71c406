package repository

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/jengzang/floq-field/internal/database"
	"github.com/jengzang/floq-field/internal/models"
)

// ErrNotFound is returned when a lookup matches no rows
var ErrNotFound = errors.New("not found")

// TimelapseRepository archives captured frames and markers
type TimelapseRepository struct {
	db *sql.DB
}

// NewTimelapseRepository creates a new time-lapse repository
func NewTimelapseRepository(db *sql.DB) *TimelapseRepository {
	return &TimelapseRepository{db: db}
}

// floatsToBytes packs values as little-endian float32
func floatsToBytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// bytesToFloats unpacks little-endian float32; a short trailing chunk is dropped
func bytesToFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// SaveCapture stores a frame and the markers derived from it atomically
func (r *TimelapseRepository) SaveCapture(frame *models.Frame, markers []models.Marker) error {
	if frame == nil {
		return errors.New("nil frame")
	}
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO timelapse_frames (ts, flow, storms, aurora) VALUES (?, ?, ?, ?)",
			frame.Timestamp, floatsToBytes(frame.Flow), floatsToBytes(frame.Storms), int(frame.Aurora),
		); err != nil {
			return fmt.Errorf("failed to save frame: %w", err)
		}

		for _, m := range markers {
			if _, err := tx.Exec(
				"INSERT INTO timelapse_markers (ts, kind, strength) VALUES (?, ?, ?)",
				m.Timestamp, string(m.Kind), m.Strength,
			); err != nil {
				return fmt.Errorf("failed to save marker: %w", err)
			}
		}
		return nil
	})
}

// RecentFrames returns up to limit of the newest frames, oldest first
func (r *TimelapseRepository) RecentFrames(limit int) ([]*models.Frame, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT ts, flow, storms, aurora FROM (
			SELECT id, ts, flow, storms, aurora
			FROM timelapse_frames
			ORDER BY ts DESC, id DESC
			LIMIT ?
		)
		ORDER BY ts ASC, id ASC
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []*models.Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate frames: %w", err)
	}
	return frames, nil
}

// LatestFrame returns the newest archived frame
func (r *TimelapseRepository) LatestFrame() (*models.Frame, error) {
	row := r.db.QueryRow("SELECT ts, flow, storms, aurora FROM timelapse_frames ORDER BY ts DESC, id DESC LIMIT 1")
	f, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// CountFrames returns the number of archived frames
func (r *TimelapseRepository) CountFrames() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM timelapse_frames").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return n, nil
}

// ListMarkers returns markers with ts >= since, oldest first
func (r *TimelapseRepository) ListMarkers(since int64, limit int) ([]models.Marker, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.db.Query(`
		SELECT ts, kind, strength
		FROM timelapse_markers
		WHERE ts >= ?
		ORDER BY ts ASC, id ASC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query markers: %w", err)
	}
	defer rows.Close()

	markers := []models.Marker{}
	for rows.Next() {
		var m models.Marker
		var kind string
		if err := rows.Scan(&m.Timestamp, &kind, &m.Strength); err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		m.Kind = models.MarkerKind(kind)
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate markers: %w", err)
	}
	return markers, nil
}

// PruneBefore deletes frames and markers older than ts
func (r *TimelapseRepository) PruneBefore(ts int64) (int64, error) {
	var removed int64
	err := database.WithTx(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM timelapse_frames WHERE ts < ?", ts)
		if err != nil {
			return fmt.Errorf("failed to prune frames: %w", err)
		}
		removed, _ = res.RowsAffected()
		if _, err := tx.Exec("DELETE FROM timelapse_markers WHERE ts < ?", ts); err != nil {
			return fmt.Errorf("failed to prune markers: %w", err)
		}
		return nil
	})
	return removed, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFrame(row rowScanner) (*models.Frame, error) {
	var (
		f      models.Frame
		flow   []byte
		storms []byte
		aurora int
	)
	if err := row.Scan(&f.Timestamp, &flow, &storms, &aurora); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan frame: %w", err)
	}
	f.Flow = bytesToFloats(flow)
	f.Storms = bytesToFloats(storms)
	f.Aurora = uint8(max(0, min(math.MaxUint8, aurora)))
	return &f, nil
}
