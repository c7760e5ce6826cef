package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"legisum/internal/model"
)

const summaryCacheSize = 1024

// SQLStore backs the Store interface with SQLite (default) or Postgres.
// Queries are written once with ? placeholders and rebound for Postgres.
// Summary reads go through an LRU cache; PutSummary invalidates.
type SQLStore struct {
	db       *sql.DB
	postgres bool

	schemaOnce sync.Once
	schemaErr  error

	summaryCache *lru.Cache[string, model.Summary]
}

// OpenSQLite opens (or creates) the embedded database with WAL and a busy
// timeout, the safe defaults for a single-box deployment.
func OpenSQLite(path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return newSQLStore(db, false)
}

// OpenPostgres connects via the pgx stdlib driver.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newSQLStore(db, true)
}

func newSQLStore(db *sql.DB, postgres bool) (*SQLStore, error) {
	cache, err := lru.New[string, model.Summary](summaryCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, postgres: postgres, summaryCache: cache}, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		for _, stmt := range schemaStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				s.schemaErr = fmt.Errorf("schema: %w", err)
				return
			}
		}
	})
	return s.schemaErr
}

// Timestamps are stored as Unix epoch seconds so SQLite and Postgres scan
// identically.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  extracted_text TEXT NOT NULL DEFAULT '',
  legislation_id TEXT NOT NULL DEFAULT '',
  version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_legislation ON documents (legislation_id)`,
	`CREATE TABLE IF NOT EXISTS legislation (
  id TEXT PRIMARY KEY,
  record_no TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  full_text TEXT NOT NULL DEFAULT '',
  final_text TEXT NOT NULL DEFAULT '',
  meeting_id TEXT NOT NULL DEFAULT '',
  version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_legislation_meeting ON legislation (meeting_id)`,
	`CREATE TABLE IF NOT EXISTS action_records (
  legislation_id TEXT NOT NULL,
  version_no INTEGER NOT NULL,
  action_text TEXT NOT NULL,
  actor TEXT NOT NULL DEFAULT '',
  result TEXT NOT NULL DEFAULT 'unknown',
  date_unix BIGINT NOT NULL DEFAULT 0,
  vote_detail TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (legislation_id, version_no)
)`,
	`CREATE TABLE IF NOT EXISTS meetings (
  id TEXT PRIMARY KEY,
  department TEXT NOT NULL DEFAULT '',
  date_unix BIGINT NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS summaries (
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  style TEXT NOT NULL,
  headline TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL DEFAULT '',
  source_version BIGINT NOT NULL DEFAULT 0,
  partial BOOLEAN NOT NULL DEFAULT FALSE,
  created_unix BIGINT NOT NULL DEFAULT 0,
  PRIMARY KEY (entity_kind, entity_id, style)
)`,
	`CREATE TABLE IF NOT EXISTS claims (
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  style TEXT NOT NULL,
  owner TEXT NOT NULL,
  expires_unix BIGINT NOT NULL,
  PRIMARY KEY (entity_kind, entity_id, style)
)`,
}

// rebind converts ? placeholders to $N for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s.db.QueryRowContext(ctx, s.rebind(query), args...), nil
}

// ---- documents ----

func (s *SQLStore) PutDocument(ctx context.Context, doc model.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	var old *model.Document
	if prev, err := s.GetDocument(ctx, doc.ID); err == nil {
		old = &prev
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	doc.Version = nextDocumentVersion(old, doc)
	_, err := s.exec(ctx, `
INSERT INTO documents (id, kind, title, source_url, extracted_text, legislation_id, version)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
  kind=excluded.kind,
  title=excluded.title,
  source_url=excluded.source_url,
  extracted_text=excluded.extracted_text,
  legislation_id=excluded.legislation_id,
  version=excluded.version`,
		doc.ID, string(doc.Kind), doc.Title, doc.SourceURL, doc.ExtractedText, doc.LegislationID, doc.Version)
	return err
}

func (s *SQLStore) GetDocument(ctx context.Context, id string) (model.Document, error) {
	row, err := s.queryRow(ctx, `
SELECT id, kind, title, source_url, extracted_text, legislation_id, version
FROM documents WHERE id = ?`, id)
	if err != nil {
		return model.Document{}, err
	}
	return scanDocument(row)
}

func (s *SQLStore) ListDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.query(ctx, `
SELECT id, kind, title, source_url, extracted_text, legislation_id, version
FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *SQLStore) DocumentsForLegislation(ctx context.Context, legislationID string) ([]model.Document, error) {
	rows, err := s.query(ctx, `
SELECT id, kind, title, source_url, extracted_text, legislation_id, version
FROM documents WHERE legislation_id = ? ORDER BY id`, legislationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (model.Document, error) {
	var doc model.Document
	var kind string
	err := row.Scan(&doc.ID, &kind, &doc.Title, &doc.SourceURL, &doc.ExtractedText, &doc.LegislationID, &doc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, ErrNotFound
	}
	if err != nil {
		return model.Document{}, err
	}
	doc.Kind = model.DocumentKind(kind)
	return doc, nil
}

func collectDocuments(rows *sql.Rows) ([]model.Document, error) {
	var out []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// ---- legislation ----

func (s *SQLStore) PutLegislation(ctx context.Context, leg model.Legislation) error {
	if err := leg.Validate(); err != nil {
		return err
	}
	var old *model.Legislation
	if prev, err := s.GetLegislation(ctx, leg.ID); err == nil {
		old = &prev
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	leg.Version = nextLegislationVersion(old, leg)

	if err := s.ensureSchema(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
INSERT INTO legislation (id, record_no, type, status, title, full_text, final_text, meeting_id, version)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
  record_no=excluded.record_no,
  type=excluded.type,
  status=excluded.status,
  title=excluded.title,
  full_text=excluded.full_text,
  final_text=excluded.final_text,
  meeting_id=excluded.meeting_id,
  version=excluded.version`),
		leg.ID, leg.RecordNo, leg.Type, leg.Status, leg.Title, leg.FullText, leg.FinalText, leg.MeetingID, leg.Version)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM action_records WHERE legislation_id = ?`), leg.ID); err != nil {
		return err
	}
	for _, rec := range leg.Actions {
		_, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO action_records (legislation_id, version_no, action_text, actor, result, date_unix, vote_detail)
VALUES (?,?,?,?,?,?,?)`),
			leg.ID, rec.VersionNo, rec.ActionText, rec.Actor, string(rec.Result), rec.Date.Unix(), rec.VoteDetail)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetLegislation(ctx context.Context, id string) (model.Legislation, error) {
	row, err := s.queryRow(ctx, `
SELECT id, record_no, type, status, title, full_text, final_text, meeting_id, version
FROM legislation WHERE id = ?`, id)
	if err != nil {
		return model.Legislation{}, err
	}
	leg, err := scanLegislation(row)
	if err != nil {
		return model.Legislation{}, err
	}
	if err := s.loadLegislationChildren(ctx, &leg); err != nil {
		return model.Legislation{}, err
	}
	return leg, nil
}

func (s *SQLStore) ListLegislation(ctx context.Context) ([]model.Legislation, error) {
	rows, err := s.query(ctx, `
SELECT id, record_no, type, status, title, full_text, final_text, meeting_id, version
FROM legislation ORDER BY record_no`)
	if err != nil {
		return nil, err
	}
	legs, err := collectLegislation(rows)
	if err != nil {
		return nil, err
	}
	for i := range legs {
		if err := s.loadLegislationChildren(ctx, &legs[i]); err != nil {
			return nil, err
		}
	}
	return legs, nil
}

func (s *SQLStore) LegislationForMeeting(ctx context.Context, meetingID string) ([]model.Legislation, error) {
	rows, err := s.query(ctx, `
SELECT id, record_no, type, status, title, full_text, final_text, meeting_id, version
FROM legislation WHERE meeting_id = ? ORDER BY record_no`, meetingID)
	if err != nil {
		return nil, err
	}
	legs, err := collectLegislation(rows)
	if err != nil {
		return nil, err
	}
	for i := range legs {
		if err := s.loadLegislationChildren(ctx, &legs[i]); err != nil {
			return nil, err
		}
	}
	return legs, nil
}

func scanLegislation(row rowScanner) (model.Legislation, error) {
	var leg model.Legislation
	err := row.Scan(&leg.ID, &leg.RecordNo, &leg.Type, &leg.Status, &leg.Title,
		&leg.FullText, &leg.FinalText, &leg.MeetingID, &leg.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Legislation{}, ErrNotFound
	}
	if err != nil {
		return model.Legislation{}, err
	}
	return leg, nil
}

func collectLegislation(rows *sql.Rows) ([]model.Legislation, error) {
	defer rows.Close()
	var out []model.Legislation
	for rows.Next() {
		leg, err := scanLegislation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, leg)
	}
	return out, rows.Err()
}

func (s *SQLStore) loadLegislationChildren(ctx context.Context, leg *model.Legislation) error {
	rows, err := s.query(ctx, `
SELECT version_no, action_text, actor, result, date_unix, vote_detail
FROM action_records WHERE legislation_id = ? ORDER BY version_no`, leg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	leg.Actions = nil
	for rows.Next() {
		var rec model.ActionRecord
		var result string
		var dateUnix int64
		if err := rows.Scan(&rec.VersionNo, &rec.ActionText, &rec.Actor, &result, &dateUnix, &rec.VoteDetail); err != nil {
			return err
		}
		rec.Result = model.ActionResult(result)
		if dateUnix > 0 {
			rec.Date = time.Unix(dateUnix, 0).UTC()
		}
		leg.Actions = append(leg.Actions, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	docRows, err := s.query(ctx, `SELECT id FROM documents WHERE legislation_id = ? ORDER BY id`, leg.ID)
	if err != nil {
		return err
	}
	defer docRows.Close()
	leg.DocumentIDs = nil
	for docRows.Next() {
		var id string
		if err := docRows.Scan(&id); err != nil {
			return err
		}
		leg.DocumentIDs = append(leg.DocumentIDs, id)
	}
	return docRows.Err()
}

// ---- meetings ----

func (s *SQLStore) PutMeeting(ctx context.Context, m model.Meeting) error {
	if err := m.Validate(); err != nil {
		return err
	}
	var old *model.Meeting
	if prev, err := s.GetMeeting(ctx, m.ID); err == nil {
		old = &prev
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	m.Version = nextMeetingVersion(old, m)
	_, err := s.exec(ctx, `
INSERT INTO meetings (id, department, date_unix, status, version)
VALUES (?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
  department=excluded.department,
  date_unix=excluded.date_unix,
  status=excluded.status,
  version=excluded.version`,
		m.ID, m.Department, m.Date.Unix(), string(m.Status), m.Version)
	return err
}

func (s *SQLStore) GetMeeting(ctx context.Context, id string) (model.Meeting, error) {
	row, err := s.queryRow(ctx, `
SELECT id, department, date_unix, status, version FROM meetings WHERE id = ?`, id)
	if err != nil {
		return model.Meeting{}, err
	}
	m, err := scanMeeting(row)
	if err != nil {
		return model.Meeting{}, err
	}
	if err := s.loadMeetingLegislationIDs(ctx, &m); err != nil {
		return model.Meeting{}, err
	}
	return m, nil
}

func (s *SQLStore) ListMeetings(ctx context.Context) ([]model.Meeting, error) {
	rows, err := s.query(ctx, `
SELECT id, department, date_unix, status, version FROM meetings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadMeetingLegislationIDs(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanMeeting(row rowScanner) (model.Meeting, error) {
	var m model.Meeting
	var status string
	var dateUnix int64
	err := row.Scan(&m.ID, &m.Department, &dateUnix, &status, &m.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Meeting{}, ErrNotFound
	}
	if err != nil {
		return model.Meeting{}, err
	}
	m.Status = model.MeetingStatus(status)
	if dateUnix > 0 {
		m.Date = time.Unix(dateUnix, 0).UTC()
	}
	return m, nil
}

func (s *SQLStore) loadMeetingLegislationIDs(ctx context.Context, m *model.Meeting) error {
	rows, err := s.query(ctx, `SELECT id FROM legislation WHERE meeting_id = ? ORDER BY record_no`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	m.LegislationIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		m.LegislationIDs = append(m.LegislationIDs, id)
	}
	return rows.Err()
}

// ---- summaries ----

func (s *SQLStore) GetSummary(ctx context.Context, ref model.EntityRef, style string) (model.Summary, error) {
	key := pairKey(ref, style)
	if sum, ok := s.summaryCache.Get(key); ok {
		return sum, nil
	}
	row, err := s.queryRow(ctx, `
SELECT entity_kind, entity_id, style, headline, body, source_version, partial, created_unix
FROM summaries WHERE entity_kind = ? AND entity_id = ? AND style = ?`,
		string(ref.Kind), ref.ID, strings.ToLower(style))
	if err != nil {
		return model.Summary{}, err
	}
	var sum model.Summary
	var kind string
	var createdUnix int64
	err = row.Scan(&kind, &sum.Entity.ID, &sum.Style, &sum.Headline, &sum.Body,
		&sum.SourceVersion, &sum.Partial, &createdUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Summary{}, ErrNotFound
	}
	if err != nil {
		return model.Summary{}, err
	}
	sum.Entity.Kind = model.EntityKind(kind)
	if createdUnix > 0 {
		sum.CreatedAt = time.Unix(createdUnix, 0).UTC()
	}
	s.summaryCache.Add(key, sum)
	return sum, nil
}

func (s *SQLStore) PutSummary(ctx context.Context, sum model.Summary) error {
	if err := sum.Entity.Validate(); err != nil {
		return err
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	sum.Style = strings.ToLower(sum.Style)
	_, err := s.exec(ctx, `
INSERT INTO summaries (entity_kind, entity_id, style, headline, body, source_version, partial, created_unix)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT (entity_kind, entity_id, style) DO UPDATE SET
  headline=excluded.headline,
  body=excluded.body,
  source_version=excluded.source_version,
  partial=excluded.partial,
  created_unix=excluded.created_unix`,
		string(sum.Entity.Kind), sum.Entity.ID, sum.Style, sum.Headline, sum.Body,
		sum.SourceVersion, sum.Partial, sum.CreatedAt.Unix())
	if err != nil {
		return err
	}
	s.summaryCache.Remove(pairKey(sum.Entity, sum.Style))
	return nil
}

// ---- claims ----

func (s *SQLStore) AcquireClaim(ctx context.Context, ref model.EntityRef, style, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.exec(ctx, `
INSERT INTO claims (entity_kind, entity_id, style, owner, expires_unix)
VALUES (?,?,?,?,?)
ON CONFLICT (entity_kind, entity_id, style) DO UPDATE SET
  owner=excluded.owner,
  expires_unix=excluded.expires_unix
WHERE claims.expires_unix < ? OR claims.owner = excluded.owner`,
		string(ref.Kind), ref.ID, strings.ToLower(style), owner, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) ReleaseClaim(ctx context.Context, ref model.EntityRef, style, owner string) error {
	_, err := s.exec(ctx, `
DELETE FROM claims WHERE entity_kind = ? AND entity_id = ? AND style = ? AND owner = ?`,
		string(ref.Kind), ref.ID, strings.ToLower(style), owner)
	return err
}

func (s *SQLStore) HeartbeatClaim(ctx context.Context, ref model.EntityRef, style, owner string, ttl time.Duration) (bool, error) {
	res, err := s.exec(ctx, `
UPDATE claims SET expires_unix = ?
WHERE entity_kind = ? AND entity_id = ? AND style = ? AND owner = ?`,
		time.Now().Add(ttl).Unix(), string(ref.Kind), ref.ID, strings.ToLower(style), owner)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
