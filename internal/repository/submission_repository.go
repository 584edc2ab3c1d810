package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/godilite/score-stats/internal/repository/models"
	"github.com/godilite/score-stats/internal/service"
)

const submissionsSchema = `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scores TEXT NOT NULL,
		average REAL NOT NULL,
		created_at TEXT NOT NULL
	);
`

// SubmissionRepository keeps submissions in a SQL table and rebuilds the
// dataset from it on every read. Rows are prefixed by an optional baseline
// so a fresh database still has a populated distribution.
type SubmissionRepository struct {
	db       *sql.DB
	baseline service.Dataset
	now      func() time.Time
}

type SubmissionRepositoryOption func(*SubmissionRepository)

// WithBaseline prepends ds to every dataset the repository returns.
func WithBaseline(ds service.Dataset) SubmissionRepositoryOption {
	return func(r *SubmissionRepository) { r.baseline = ds.Clone() }
}

func NewSubmissionRepository(db *sql.DB, opts ...SubmissionRepositoryOption) *SubmissionRepository {
	r := &SubmissionRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Migrate creates the submissions table if it does not exist.
func (r *SubmissionRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, submissionsSchema); err != nil {
		return fmt.Errorf("migrate submissions: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Fetch(ctx context.Context) (service.Dataset, error) {
	return r.load(ctx, r.db)
}

// Submit inserts sub and returns the dataset read back in the same transaction.
func (r *SubmissionRepository) Submit(ctx context.Context, sub service.Submission) (service.Dataset, error) {
	scores, err := json.Marshal(sub.Scores)
	if err != nil {
		return service.Dataset{}, fmt.Errorf("encode scores: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return service.Dataset{}, fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO submissions (scores, average, created_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, string(scores), sub.Average, r.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return service.Dataset{}, fmt.Errorf("insert submission: %w", err)
	}

	ds, err := r.load(ctx, tx)
	if err != nil {
		return service.Dataset{}, err
	}
	if err := tx.Commit(); err != nil {
		return service.Dataset{}, fmt.Errorf("commit submit: %w", err)
	}
	return ds, nil
}

// Rows returns stored submissions in insertion order.
func (r *SubmissionRepository) Rows(ctx context.Context) ([]models.SubmissionRow, error) {
	return r.rows(ctx, r.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SubmissionRepository) rows(ctx context.Context, q querier) ([]models.SubmissionRow, error) {
	const query = `SELECT id, scores, average, created_at FROM submissions ORDER BY id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var results []models.SubmissionRow
	for rows.Next() {
		var (
			row       models.SubmissionRow
			createdAt string
		)
		if err := rows.Scan(&row.ID, &row.Scores, &row.Average, &createdAt); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return results, nil
}

func (r *SubmissionRepository) load(ctx context.Context, q querier) (service.Dataset, error) {
	rows, err := r.rows(ctx, q)
	if err != nil {
		return service.Dataset{}, err
	}

	ds := r.baseline.Clone()
	for _, row := range rows {
		var scores []int
		if err := json.Unmarshal([]byte(row.Scores), &scores); err != nil {
			return service.Dataset{}, fmt.Errorf("%w: row %d: %v", service.ErrMalformedDataset, row.ID, err)
		}
		ds.TotalSubmissions++
		ds.AllAverages = append(ds.AllAverages, row.Average)
		ds.AllRawScores = append(ds.AllRawScores, scores...)
	}
	return ds, nil
}
