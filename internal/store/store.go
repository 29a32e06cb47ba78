package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS embeds (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	wavelet    TEXT NOT NULL,
	level      INTEGER NOT NULL,
	band       TEXT NOT NULL,
	alpha      REAL NOT NULL,
	psnr_db    REAL,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	wm_src     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeds_created_at ON embeds(created_at);
`

// Record is one completed embed.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Wavelet   string    `json:"wavelet"`
	Level     int       `json:"level"`
	Band      string    `json:"band"`
	Alpha     float64   `json:"alpha"`
	// PSNR is nil when the marked image equals the host.
	PSNR   *float64 `json:"psnr_db"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Source string   `json:"wm_src"`
}

type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert stores r. An empty ID is replaced with a new UUID and a zero
// CreatedAt with the current time; the stored record is returned.
func (d *DB) Insert(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO embeds (id, created_at, wavelet, level, band, alpha, psnr_db, width, height, wm_src)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixMilli(), r.Wavelet, r.Level, r.Band, r.Alpha, r.PSNR, r.Width, r.Height, r.Source,
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert embed: %w", err)
	}
	return r, nil
}

// Get returns the record with id, or sql.ErrNoRows wrapped.
func (d *DB) Get(ctx context.Context, id string) (Record, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, created_at, wavelet, level, band, alpha, psnr_db, width, height, wm_src
		 FROM embeds WHERE id = ?`, id)
	r, err := scan(row)
	if err != nil {
		return Record{}, fmt.Errorf("failed to query embed: %w", err)
	}
	return r, nil
}

// Recent returns up to limit records, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, created_at, wavelet, level, band, alpha, psnr_db, width, height, wm_src
		 FROM embeds ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeds: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embed: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Record, error) {
	var (
		r       Record
		created int64
		psnr    sql.NullFloat64
	)
	if err := s.Scan(&r.ID, &created, &r.Wavelet, &r.Level, &r.Band, &r.Alpha, &psnr, &r.Width, &r.Height, &r.Source); err != nil {
		return Record{}, err
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	if psnr.Valid {
		r.PSNR = &psnr.Float64
	}
	return r, nil
}
