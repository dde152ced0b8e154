package trajectory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/san-kum/ljmetad/internal/dynamo"

	_ "modernc.org/sqlite"
)

const pageSize = 256

// SQLite is a file-backed store. Frames are rows of a single table keyed by
// their append index; coordinates are little-endian float64 blobs.
type SQLite struct {
	path string
	meta Meta

	mu   sync.RWMutex
	db   *sql.DB
	n    int
	last int
}

// Create makes a new trajectory file at path, replacing any existing one.
func Create(ctx context.Context, path string, meta Meta) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("trajectory path is required")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO meta (id, payload) VALUES (1, ?)`, payload); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return &SQLite{path: path, meta: meta, db: db}, nil
}

// Open reads an existing trajectory file. Further appends continue after its
// last step.
func Open(ctx context.Context, path string) (*SQLite, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: trajectory: %v", dynamo.ErrIO, err)
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{path: path, db: db}

	var payload []byte
	if err := db.QueryRowContext(ctx, `SELECT payload FROM meta WHERE id = 1`).Scan(&payload); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: read meta: %v", dynamo.ErrIO, path, err)
	}
	if err := json.Unmarshal(payload, &s.meta); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: decode meta: %v", dynamo.ErrIO, path, err)
	}

	var last sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(step) FROM frames`).Scan(&s.n, &last); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrIO, path, err)
	}
	s.last = int(last.Int64)
	return s, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	for _, pragma := range []string{`PRAGMA journal_mode = WAL`, `PRAGMA synchronous = NORMAL`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
		}
	}
	return db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			id INTEGER PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS frames (
			idx INTEGER PRIMARY KEY,
			step INTEGER NOT NULL,
			time REAL NOT NULL,
			energy REAL NOT NULL,
			positions BLOB NOT NULL,
			velocities BLOB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Append(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("trajectory is closed")
	}
	if err := checkAppend(s.meta, s.last, s.n, snap); err != nil {
		return err
	}
	var vel any
	if snap.Velocities != nil {
		vel = encodeFrame(snap.Velocities)
	}
	_, err := s.db.Exec(`INSERT INTO frames (idx, step, time, energy, positions, velocities) VALUES (?, ?, ?, ?, ?, ?)`,
		s.n, snap.Step, snap.Time, snap.Energy, encodeFrame(snap.Positions), vel)
	if err != nil {
		return fmt.Errorf("%w: append frame %d: %v", dynamo.ErrIO, s.n, err)
	}
	s.n++
	s.last = snap.Step
	return nil
}

func (s *SQLite) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

func (s *SQLite) At(i int) (Snapshot, error) {
	page, err := s.page(i, i+1)
	if err != nil {
		return Snapshot{}, err
	}
	if len(page) == 0 {
		return Snapshot{}, fmt.Errorf("trajectory: index %d out of range [0,%d)", i, s.Len())
	}
	return page[0], nil
}

// Iterate reads frames a page at a time so fn never runs with rows open.
func (s *SQLite) Iterate(fn func(Snapshot) error) error {
	n := s.Len()
	for lo := 0; lo < n; lo += pageSize {
		page, err := s.page(lo, min(lo+pageSize, n))
		if err != nil {
			return err
		}
		for _, snap := range page {
			if err := fn(snap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLite) page(lo, hi int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("trajectory is closed")
	}
	rows, err := s.db.Query(`SELECT step, time, energy, positions, velocities FROM frames WHERE idx >= ? AND idx < ? ORDER BY idx`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap     Snapshot
			pos, vel []byte
		)
		if err := rows.Scan(&snap.Step, &snap.Time, &snap.Energy, &pos, &vel); err != nil {
			return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
		}
		if snap.Positions, err = decodeFrame(pos); err != nil {
			return nil, err
		}
		if vel != nil {
			if snap.Velocities, err = decodeFrame(vel); err != nil {
				return nil, err
			}
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return out, nil
}

func (s *SQLite) Meta() Meta { return s.meta }

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func encodeFrame(f dynamo.Frame) []byte {
	buf := make([]byte, 0, len(f)*24)
	for _, v := range f {
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
		}
	}
	return buf
}

func decodeFrame(b []byte) (dynamo.Frame, error) {
	if len(b)%24 != 0 {
		return nil, fmt.Errorf("%w: corrupt frame blob of %d bytes", dynamo.ErrIO, len(b))
	}
	f := make(dynamo.Frame, len(b)/24)
	for i := range f {
		for k := 0; k < 3; k++ {
			f[i][k] = math.Float64frombits(binary.LittleEndian.Uint64(b[(3*i+k)*8:]))
		}
	}
	return f, nil
}
