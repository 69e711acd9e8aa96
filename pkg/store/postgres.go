package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gnana997/uigraph/pkg/analyzer"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
  id BIGSERIAL PRIMARY KEY,
  project_id TEXT NOT NULL,
  checksum TEXT NOT NULL,
  status TEXT NOT NULL,
  started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  finished_at TIMESTAMP WITH TIME ZONE
);
CREATE INDEX IF NOT EXISTS idx_scans_project_checksum ON scans (project_id, checksum);

CREATE TABLE IF NOT EXISTS scan_failures (
  id BIGSERIAL PRIMARY KEY,
  scan_id BIGINT NOT NULL REFERENCES scans (id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  kind TEXT NOT NULL,
  message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id BIGSERIAL PRIMARY KEY,
  project_id TEXT NOT NULL,
  scan_id BIGINT NOT NULL REFERENCES scans (id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  language TEXT NOT NULL,
  checksum TEXT NOT NULL,
  imports JSONB NOT NULL DEFAULT '[]',
  exports JSONB NOT NULL DEFAULT '[]',
  functions JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_files_lookup ON files (project_id, path, checksum);

CREATE TABLE IF NOT EXISTS scan_files (
  scan_id BIGINT NOT NULL REFERENCES scans (id) ON DELETE CASCADE,
  file_id BIGINT NOT NULL REFERENCES files (id) ON DELETE CASCADE,
  PRIMARY KEY (scan_id, file_id)
);

CREATE TABLE IF NOT EXISTS components (
  id BIGSERIAL PRIMARY KEY,
  file_id BIGINT NOT NULL REFERENCES files (id) ON DELETE CASCADE,
  local_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  is_default_export BOOLEAN NOT NULL DEFAULT FALSE,
  line INTEGER NOT NULL,
  UNIQUE (file_id, name)
);

CREATE TABLE IF NOT EXISTS markup_usages (
  id BIGSERIAL PRIMARY KEY,
  file_id BIGINT NOT NULL REFERENCES files (id) ON DELETE CASCADE,
  tag TEXT NOT NULL,
  component TEXT NOT NULL DEFAULT '',
  line INTEGER NOT NULL,
  col INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dependency_edges (
  id BIGSERIAL PRIMARY KEY,
  file_id BIGINT NOT NULL REFERENCES files (id) ON DELETE CASCADE,
  parent_id BIGINT NOT NULL REFERENCES components (id) ON DELETE CASCADE,
  child_id BIGINT NOT NULL REFERENCES components (id) ON DELETE CASCADE,
  UNIQUE (parent_id, child_id)
);
`

const scanColumns = `s.id, s.project_id, s.checksum, s.status, s.started_at, s.finished_at,
  (SELECT COUNT(*) FROM scan_files sf WHERE sf.scan_id = s.id)`

const fileColumns = `f.id, f.project_id, f.scan_id, f.path, f.language, f.checksum, f.created_at`

const componentColumns = `c.id, c.file_id, c.local_id, c.name, c.kind, c.is_default_export, c.line`

const edgeColumns = `e.id, e.file_id, e.parent_id, e.child_id, p.name, ch.name`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore persists history in PostgreSQL through database/sql and
// the pgx driver. The schema is created on first use.
type PostgresStore struct {
	db *sql.DB

	// schemaMu guards schemaReady. A failed attempt is retried by the
	// next call.
	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgresStore opens and pings the database at dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an already opened database handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) FindScanByChecksum(ctx context.Context, projectID, checksum string) (*Scan, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+`
FROM scans s
WHERE s.project_id = $1 AND s.checksum = $2 AND s.status = $3
ORDER BY s.id DESC LIMIT 1`, strings.TrimSpace(projectID), checksum, ScanSuccess)
	return s.scanWithFailures(ctx, row)
}

func (s *PostgresStore) FindFileByChecksum(ctx context.Context, projectID, path, checksum string) (int64, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT f.id
FROM files f JOIN scans s ON s.id = f.scan_id
WHERE f.project_id = $1 AND f.path = $2 AND f.checksum = $3 AND s.status = $4
ORDER BY f.id DESC LIMIT 1`, strings.TrimSpace(projectID), path, checksum, ScanSuccess).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) CreateScan(ctx context.Context, projectID, checksum string) (*Scan, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	sc := &Scan{ProjectID: projectID, Checksum: checksum, Status: ScanRunning}
	err := s.db.QueryRowContext(ctx, `INSERT INTO scans (project_id, checksum, status)
VALUES ($1, $2, $3) RETURNING id, started_at`, projectID, checksum, ScanRunning).Scan(&sc.ID, &sc.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}
	return sc, nil
}

func (s *PostgresStore) LinkFile(ctx context.Context, scanID, fileID int64) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	projectID, err := lockRunningScan(ctx, tx, scanID)
	if err != nil {
		return err
	}
	var fileProject string
	err = tx.QueryRowContext(ctx, `SELECT project_id FROM files WHERE id = $1`, fileID).Scan(&fileProject)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if fileProject != projectID {
		return fmt.Errorf("file %d belongs to project %q, not %q", fileID, fileProject, projectID)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO scan_files (scan_id, file_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, scanID, fileID); err != nil {
		return fmt.Errorf("link file %d: %w", fileID, err)
	}
	return tx.Commit()
}

// SaveFile writes the file row, its components, usages and edges, and its
// scan membership in one transaction.
func (s *PostgresStore) SaveFile(ctx context.Context, scanID int64, nf NewFile) (*File, error) {
	if err := validateNewFile(nf); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	fa := nf.Analysis
	imports, err := marshalJSONList(fa.Imports)
	if err != nil {
		return nil, err
	}
	exports, err := marshalJSONList(fa.Exports)
	if err != nil {
		return nil, err
	}
	functions, err := marshalJSONList(fa.Functions)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	projectID, err := lockRunningScan(ctx, tx, scanID)
	if err != nil {
		return nil, err
	}

	file := &File{ProjectID: projectID, ScanID: scanID, Path: nf.Path, Language: nf.Language, Checksum: nf.Checksum}
	err = tx.QueryRowContext(ctx, `INSERT INTO files (project_id, scan_id, path, language, checksum, imports, exports, functions)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		projectID, scanID, nf.Path, nf.Language, nf.Checksum, imports, exports, functions,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert file %s: %w", nf.Path, err)
	}

	global := make(map[int]int64, len(fa.Components))
	for _, c := range fa.Components {
		var id int64
		err := tx.QueryRowContext(ctx, `INSERT INTO components (file_id, local_id, name, kind, is_default_export, line)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			file.ID, c.LocalID, c.Name, string(c.Kind), c.IsDefaultExport, c.Line).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert component %s in %s: %w", c.Name, nf.Path, err)
		}
		global[c.LocalID] = id
	}

	for _, u := range fa.Usages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO markup_usages (file_id, tag, component, line, col)
VALUES ($1, $2, $3, $4, $5)`, file.ID, u.Tag, u.Component, u.Line, u.Column); err != nil {
			return nil, fmt.Errorf("insert usage %s in %s: %w", u.Tag, nf.Path, err)
		}
	}

	for _, e := range nf.Edges {
		if _, err := tx.ExecContext(ctx, `INSERT INTO dependency_edges (file_id, parent_id, child_id)
VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, file.ID, global[e.Parent], global[e.Child]); err != nil {
			return nil, fmt.Errorf("insert edge in %s: %w", nf.Path, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO scan_files (scan_id, file_id) VALUES ($1, $2)`, scanID, file.ID); err != nil {
		return nil, fmt.Errorf("link file %s: %w", nf.Path, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit file %s: %w", nf.Path, err)
	}
	return file, nil
}

func (s *PostgresStore) RecordFailure(ctx context.Context, scanID int64, failure FileFailure) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO scan_failures (scan_id, path, kind, message)
SELECT id, $2, $3, $4 FROM scans WHERE id = $1 AND status = $5`,
		scanID, failure.Path, string(failure.Kind), failure.Message, ScanRunning)
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", failure.Path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scan %d is not running: %w", scanID, ErrInvalidTransition)
	}
	return nil
}

func (s *PostgresStore) CompleteScan(ctx context.Context, scanID int64, checksum string) (*Scan, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockRunningScan(ctx, tx, scanID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scans SET status = $2, finished_at = $3, checksum = $4 WHERE id = $1`,
		scanID, ScanSuccess, time.Now().UTC(), checksum); err != nil {
		return nil, fmt.Errorf("complete scan %d: %w", scanID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetScan(ctx, scanID)
}

// AbortScan deletes the scan. Files it owns, their artifacts, its failures
// and its membership rows go with it through ON DELETE CASCADE.
func (s *PostgresStore) AbortScan(ctx context.Context, scanID int64) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockRunningScan(ctx, tx, scanID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE id = $1`, scanID); err != nil {
		return fmt.Errorf("abort scan %d: %w", scanID, err)
	}
	return tx.Commit()
}

func (s *PostgresStore) GetScan(ctx context.Context, scanID int64) (*Scan, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans s WHERE s.id = $1`, scanID)
	sc, err := s.scanWithFailures(ctx, row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("scan %d: %w", scanID, ErrNotFound)
	}
	return sc, err
}

func (s *PostgresStore) ListScans(ctx context.Context, projectID string) ([]Scan, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+scanColumns+`
FROM scans s WHERE s.project_id = $1 ORDER BY s.id DESC`, strings.TrimSpace(projectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Scan, 0, 8)
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Failures, err = s.loadFailures(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) LatestScan(ctx context.Context, projectID string) (*Scan, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+`
FROM scans s WHERE s.project_id = $1 AND s.status = $2
ORDER BY s.id DESC LIMIT 1`, strings.TrimSpace(projectID), ScanSuccess)
	sc, err := s.scanWithFailures(ctx, row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("project %q has no successful scan: %w", projectID, ErrNotFound)
	}
	return sc, err
}

func (s *PostgresStore) ListFiles(ctx context.Context, scanID int64) ([]File, error) {
	if _, err := s.GetScan(ctx, scanID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+`
FROM files f JOIN scan_files sf ON sf.file_id = f.id
WHERE sf.scan_id = $1 ORDER BY f.path`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetFile(ctx context.Context, fileID int64) (*FileDetails, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var imports, exports, functions []byte
	d := &FileDetails{}
	err := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+`, f.imports, f.exports, f.functions
FROM files f WHERE f.id = $1`, fileID).Scan(
		&d.File.ID, &d.File.ProjectID, &d.File.ScanID, &d.File.Path, &d.File.Language,
		&d.File.Checksum, &d.File.CreatedAt, &imports, &exports, &functions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(imports, &d.Imports); err != nil {
		return nil, fmt.Errorf("decode imports of file %d: %w", fileID, err)
	}
	if err := json.Unmarshal(exports, &d.Exports); err != nil {
		return nil, fmt.Errorf("decode exports of file %d: %w", fileID, err)
	}
	if err := json.Unmarshal(functions, &d.Functions); err != nil {
		return nil, fmt.Errorf("decode functions of file %d: %w", fileID, err)
	}

	if d.Components, err = s.queryComponents(ctx, `SELECT `+componentColumns+`
FROM components c WHERE c.file_id = $1 ORDER BY c.local_id`, fileID); err != nil {
		return nil, err
	}
	if d.Edges, err = s.queryEdges(ctx, `SELECT `+edgeColumns+`
FROM dependency_edges e
JOIN components p ON p.id = e.parent_id
JOIN components ch ON ch.id = e.child_id
WHERE e.file_id = $1 ORDER BY e.id`, fileID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tag, component, line, col
FROM markup_usages WHERE file_id = $1 ORDER BY id`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u analyzer.MarkupUsage
		if err := rows.Scan(&u.Tag, &u.Component, &u.Line, &u.Column); err != nil {
			return nil, err
		}
		d.Usages = append(d.Usages, u)
	}
	return d, rows.Err()
}

func (s *PostgresStore) GetComponent(ctx context.Context, componentID int64) (*Component, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components c WHERE c.id = $1`, componentID)
	c, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("component %d: %w", componentID, ErrNotFound)
	}
	return c, err
}

func (s *PostgresStore) ListComponents(ctx context.Context, scanID int64) ([]Component, error) {
	if _, err := s.GetScan(ctx, scanID); err != nil {
		return nil, err
	}
	return s.queryComponents(ctx, `SELECT `+componentColumns+`
FROM components c
JOIN files f ON f.id = c.file_id
JOIN scan_files sf ON sf.file_id = f.id
WHERE sf.scan_id = $1 ORDER BY f.path, c.local_id`, scanID)
}

func (s *PostgresStore) ListEdges(ctx context.Context, scanID int64) ([]Edge, error) {
	if _, err := s.GetScan(ctx, scanID); err != nil {
		return nil, err
	}
	return s.queryEdges(ctx, `SELECT `+edgeColumns+`
FROM dependency_edges e
JOIN components p ON p.id = e.parent_id
JOIN components ch ON ch.id = e.child_id
JOIN files f ON f.id = e.file_id
JOIN scan_files sf ON sf.file_id = f.id
WHERE sf.scan_id = $1 ORDER BY f.path, e.id`, scanID)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) scanWithFailures(ctx context.Context, row rowScanner) (*Scan, error) {
	sc, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sc.Failures, err = s.loadFailures(ctx, sc.ID); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *PostgresStore) loadFailures(ctx context.Context, scanID int64) ([]FileFailure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, kind, message
FROM scan_failures WHERE scan_id = $1 ORDER BY id`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileFailure
	for rows.Next() {
		var f FileFailure
		var kind string
		if err := rows.Scan(&f.Path, &kind, &f.Message); err != nil {
			return nil, err
		}
		f.Kind = FailureKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) queryComponents(ctx context.Context, query string, args ...any) ([]Component, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) queryEdges(ctx context.Context, query string, args ...any) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.FileID, &e.ParentID, &e.ChildID, &e.ParentName, &e.ChildName); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// lockRunningScan locks the scan row for the rest of tx and returns its
// project.
func lockRunningScan(ctx context.Context, tx *sql.Tx, scanID int64) (string, error) {
	var projectID, status string
	err := tx.QueryRowContext(ctx, `SELECT project_id, status FROM scans WHERE id = $1 FOR UPDATE`, scanID).
		Scan(&projectID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("scan %d: %w", scanID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if ScanStatus(status) != ScanRunning {
		return "", fmt.Errorf("scan %d is %s: %w", scanID, status, ErrInvalidTransition)
	}
	return projectID, nil
}

func scanScan(row rowScanner) (*Scan, error) {
	var (
		sc       Scan
		status   string
		finished sql.NullTime
	)
	if err := row.Scan(&sc.ID, &sc.ProjectID, &sc.Checksum, &status, &sc.StartedAt, &finished, &sc.FileCount); err != nil {
		return nil, err
	}
	sc.Status = ScanStatus(status)
	if finished.Valid {
		t := finished.Time
		sc.FinishedAt = &t
	}
	return &sc, nil
}

func scanFile(row rowScanner) (*File, error) {
	var f File
	if err := row.Scan(&f.ID, &f.ProjectID, &f.ScanID, &f.Path, &f.Language, &f.Checksum, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanComponent(row rowScanner) (*Component, error) {
	var (
		c    Component
		kind string
	)
	if err := row.Scan(&c.ID, &c.FileID, &c.LocalID, &c.Name, &kind, &c.IsDefaultExport, &c.Line); err != nil {
		return nil, err
	}
	c.Kind = analyzer.ComponentKind(kind)
	return &c, nil
}

func marshalJSONList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
