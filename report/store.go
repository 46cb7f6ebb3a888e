package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL DEFAULT '',
	source_type   TEXT NOT NULL CHECK (source_type IN ('text','image','pdf')),
	original_text TEXT NOT NULL CHECK (original_text <> ''),
	summary_text  TEXT,
	status        TEXT NOT NULL CHECK (status IN ('pending','completed')),
	version       INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_owner ON reports(owner_id);
`

// Store persists reports in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open database, applying the schema. The reports
// and users tables share one database; the caller owns its lifecycle.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("report: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

const timeLayout = time.RFC3339Nano

// Insert stores a new report.
func (s *Store) Insert(ctx context.Context, r *Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, owner_id, source_type, original_text, summary_text, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.SourceType, r.OriginalText, nullString(r.SummaryText),
		string(r.Status), r.Version,
		r.CreatedAt.UTC().Format(timeLayout), r.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// Get returns the report with the given id, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, source_type, original_text, summary_text, status, version, created_at, updated_at
		FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report: get: %w", err)
	}
	return r, nil
}

// List returns one page of reports ordered newest first, plus the total
// number of reports matching the owner filter. An empty ownerID lists all.
func (s *Store) List(ctx context.Context, ownerID string, page, limit int) ([]*Report, int, error) {
	where, args := "", []any{}
	if ownerID != "" {
		where = "WHERE owner_id = ?"
		args = append(args, ownerID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("report: count: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, source_type, original_text, summary_text, status, version, created_at, updated_at
		FROM reports `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("report: list: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("report: list scan: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("report: list rows: %w", err)
	}
	return reports, total, nil
}

// UpdateSummary moves a report's summarization state, guarded by the row
// version. Returns ErrConflict when a concurrent update already bumped the
// version, ErrNotFound when the row does not exist at all.
func (s *Store) UpdateSummary(ctx context.Context, id string, version int64, status Status, summary *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET summary_text = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		nullString(summary), string(status), time.Now().UTC().Format(timeLayout), id, version,
	)
	if err != nil {
		return fmt.Errorf("report: update summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("report: rows affected: %w", err)
	}
	if n == 0 {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*Report, error) {
	var (
		r       Report
		summary sql.NullString
		status  string
		created string
		updated string
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.SourceType, &r.OriginalText, &summary, &status, &r.Version, &created, &updated)
	if err != nil {
		return nil, err
	}
	if summary.Valid {
		r.SummaryText = &summary.String
	}
	r.Status = Status(status)
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
