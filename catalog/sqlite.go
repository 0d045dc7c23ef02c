package catalog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS web_files (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  file_name    TEXT NOT NULL,
  msg_ids      TEXT NOT NULL,
  size_bytes   INTEGER NOT NULL,
  uploaded_at  INTEGER NOT NULL,
  stored_bytes INTEGER NOT NULL DEFAULT 0,
  digest       TEXT NOT NULL DEFAULT ''
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_web_files_uploaded_at
ON web_files (uploaded_at DESC, id DESC);
`,
}

// SQLiteStore keeps records in the web_files table. Message ids are
// stored as a JSON array.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the SQLite database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("catalog: create directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: ping sqlite database: %w", err)
	}
	for i, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("catalog: migration %d: %w", i, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Add(ctx context.Context, rec Record) (uint64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}
	rec = stamp(rec)

	ids, err := json.Marshal(rec.MsgIDs)
	if err != nil {
		return 0, fmt.Errorf("catalog: encode message ids: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO web_files (file_name, msg_ids, size_bytes, uploaded_at, stored_bytes, digest)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Name, string(ids), rec.Size, rec.UploadedAt.Unix(), rec.StoredSize, hex.EncodeToString(rec.Digest))
	if err != nil {
		return 0, fmt.Errorf("catalog: insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog: last insert id: %w", err)
	}
	return uint64(id), nil
}

const selectColumns = `id, file_name, msg_ids, size_bytes, uploaded_at, stored_bytes, digest`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec      Record
		ids      string
		uploaded int64
		digest   string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &ids, &rec.Size, &uploaded, &rec.StoredSize, &digest); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &rec.MsgIDs); err != nil {
		return nil, fmt.Errorf("catalog: decode message ids of %d: %w", rec.ID, err)
	}
	if digest != "" {
		d, err := hex.DecodeString(digest)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode digest of %d: %w", rec.ID, err)
		}
		rec.Digest = d
	}
	rec.UploadedAt = time.Unix(uploaded, 0).UTC()
	return &rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uint64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM web_files WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get record %d: %w", id, err)
	}
	return rec, nil
}

// orderBy returns a fixed ORDER BY clause; user input never reaches the SQL.
func orderBy(key SortKey, dir SortDir) string {
	col := "uploaded_at"
	switch key {
	case SortBySize:
		col = "size_bytes"
	case SortByName:
		col = "file_name COLLATE NOCASE"
	}
	d := "DESC"
	if dir == Asc {
		d = "ASC"
	}
	return col + " " + d + ", id " + d
}

func (s *SQLiteStore) List(ctx context.Context, limit int, key SortKey, dir SortDir) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM web_files ORDER BY `+orderBy(key, dir)+` LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan record: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list records: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id uint64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT msg_ids FROM web_files WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get record %d: %w", id, err)
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("catalog: decode message ids of %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM web_files WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("catalog: delete record %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: commit: %w", err)
	}
	return ids, nil
}
