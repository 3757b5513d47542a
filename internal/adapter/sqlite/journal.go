// Package sqlite stores the local submission journal in a SQLite file.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var _ domain.SubmissionJournal = (*Journal)(nil)

// Journal records submission outcomes.
type Journal struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path and applies pending migrations.
func Open(path string) (*Journal, error) {
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("connecting to journal db: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (j *Journal) CheckReadiness(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

type dbSubmission struct {
	ID        uuid.UUID `db:"id"`
	Kind      string    `db:"kind"`
	Status    string    `db:"status"`
	RemoteID  string    `db:"remote_id"`
	Detail    string    `db:"detail"`
	GeoSource string    `db:"geo_source"`
	CreatedAt time.Time `db:"created_at"`
}

// Record inserts one submission outcome.
func (j *Journal) Record(ctx context.Context, s domain.Submission) error {
	row := dbSubmission{
		ID:        s.ID,
		Kind:      string(s.Kind),
		Status:    string(s.Status),
		RemoteID:  s.RemoteID,
		Detail:    s.Detail,
		GeoSource: s.GeoSource,
		CreatedAt: s.CreatedAt.UTC(),
	}
	query := `INSERT INTO submissions (id, kind, status, remote_id, detail, geo_source, created_at)
	          VALUES (:id, :kind, :status, :remote_id, :detail, :geo_source, :created_at)`

	if _, err := j.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("inserting submission %s: %w", s.ID, err)
	}
	return nil
}

// Recent returns up to limit submissions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		return []domain.Submission{}, nil
	}

	var rows []dbSubmission
	query := `SELECT id, kind, status, remote_id, detail, geo_source, created_at
	          FROM submissions ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := j.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("selecting recent submissions: %w", err)
	}

	out := make([]domain.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Submission{
			ID:        r.ID,
			Kind:      domain.SubmissionKind(r.Kind),
			Status:    domain.SubmissionStatus(r.Status),
			RemoteID:  r.RemoteID,
			Detail:    r.Detail,
			GeoSource: r.GeoSource,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}
