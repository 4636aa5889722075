package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/api/pagination"
	"ml-jobs-platform/shared/postgresql"
)

// PostgresJobRepo persists jobs in a PostgreSQL table with the same
// contract as the other backends.
type PostgresJobRepo struct {
	client *postgresql.Client
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresJobRepo creates a PostgreSQL-backed repository. Initialize must
// be called before any other operation.
func NewPostgresJobRepo(client *postgresql.Client, logger *slog.Logger) *PostgresJobRepo {
	return &PostgresJobRepo{
		client: client,
		db:     client.GetDB(),
		logger: logger,
	}
}

func (r *PostgresJobRepo) Type() string { return "postgres" }

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	job_name   TEXT NOT NULL,
	username   TEXT,
	model_id   TEXT NOT NULL,
	input      JSONB NOT NULL,
	status     TEXT NOT NULL,
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_username ON jobs (username);
CREATE INDEX IF NOT EXISTS idx_jobs_job_name ON jobs (job_name);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_username_status_created_at ON jobs (username, status, created_at DESC);
`

const jobColumns = `id, job_name, username, model_id, input, status, result, error, created_at, updated_at`

// pgJob is the row shape for scanning.
type pgJob struct {
	ID        string         `db:"id"`
	JobName   string         `db:"job_name"`
	Username  sql.NullString `db:"username"`
	ModelID   string         `db:"model_id"`
	Input     []byte         `db:"input"`
	Status    string         `db:"status"`
	Result    []byte         `db:"result"`
	Error     sql.NullString `db:"error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row *pgJob) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		ID:        row.ID,
		JobName:   row.JobName,
		ModelID:   row.ModelID,
		Status:    domain.JobStatus(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.Username.Valid {
		job.Username = &row.Username.String
	}
	if row.Error.Valid {
		job.Error = &row.Error.String
	}
	if len(row.Input) > 0 {
		if err := json.Unmarshal(row.Input, &job.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if len(row.Result) > 0 {
		if err := json.Unmarshal(row.Result, &job.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return job, nil
}

// Initialize creates the jobs table and its indexes.
func (r *PostgresJobRepo) Initialize(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, jobsSchema); err != nil {
		r.logger.Error("Failed to create jobs schema",
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: create schema: %v", domain.ErrBackendUnavailable, err)
	}

	r.logger.Info("PostgreSQL jobs schema ready")
	return nil
}

// HealthCheck downgrades any connection failure to false.
func (r *PostgresJobRepo) HealthCheck(ctx context.Context) bool {
	if err := r.client.HealthCheck(ctx); err != nil {
		r.logger.Warn("PostgreSQL health check failed",
			slog.Any("error", err),
		)
		return false
	}
	return true
}

func (r *PostgresJobRepo) Cleanup(ctx context.Context) error {
	return r.client.Close()
}

func (r *PostgresJobRepo) CreateJob(ctx context.Context, payload domain.JobCreate) (*domain.Job, error) {
	// timestamptz keeps microsecond precision; truncate up front so the
	// returned value equals what a later read sees.
	now := time.Now().UTC().Truncate(time.Microsecond)

	inputJSON, err := json.Marshal(payload.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: encode input: %v", domain.ErrInvalidArgument, err)
	}

	query := `
		INSERT INTO jobs (
			id, job_name, username, model_id,
			input, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5::jsonb, $6, $7, $8
		)
	`

	// The primary key carries a native uniqueness constraint; retry
	// generation on the (vanishingly rare) collision before giving up.
	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := uuid.NewString()
		_, err := r.db.ExecContext(
			ctx,
			query,
			id,
			payload.JobName,
			payload.Username,
			payload.ModelID,
			string(inputJSON),
			string(domain.JobStatusQueued),
			now,
			now,
		)
		if err == nil {
			return &domain.Job{
				ID:        id,
				JobName:   payload.JobName,
				Username:  copyStrPtr(payload.Username),
				ModelID:   payload.ModelID,
				Input:     payload.Input,
				Status:    domain.JobStatusQueued,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			lastErr = err
			continue
		}
		r.logger.Error("Failed to insert job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: insert job: %v", domain.ErrBackendOperation, err)
	}

	return nil, fmt.Errorf("%w: id generation exhausted after %d attempts: %v",
		domain.ErrBackendOperation, maxIDAttempts, lastErr)
}

func (r *PostgresJobRepo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var row pgJob
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: get job: %v", domain.ErrBackendOperation, err)
	}
	return row.toDomain()
}

// escapeLike escapes LIKE wildcards so the free-text filter stays a literal
// substring match, matching the other backends.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// buildWhere translates JobFilters into a WHERE clause with the same
// semantics as JobFilters.Matches.
func buildWhere(filters JobFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filters.Username != "" {
		where += fmt.Sprintf(" AND username = $%d", argIdx)
		args = append(args, filters.Username)
		argIdx++
	}
	if filters.JobName != "" {
		where += fmt.Sprintf(" AND job_name = $%d", argIdx)
		args = append(args, filters.JobName)
		argIdx++
	}
	if filters.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filters.Status))
		argIdx++
	}
	if filters.Q != "" {
		// username IS NULL rows fall out of ILIKE naturally.
		where += fmt.Sprintf(
			" AND (job_name ILIKE '%%' || $%d || '%%' OR username ILIKE '%%' || $%d || '%%')",
			argIdx, argIdx,
		)
		args = append(args, escapeLike(filters.Q))
		argIdx++
	}

	return where, args
}

func (r *PostgresJobRepo) ListJobs(ctx context.Context, filters JobFilters) ([]domain.Job, int, error) {
	page, err := pagination.Resolve(filters.Pagination)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildWhere(filters)

	var total int
	countQuery := `SELECT COUNT(*) FROM jobs` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("Failed to count jobs",
			slog.Any("error", err),
		)
		return nil, 0, fmt.Errorf("%w: count jobs: %v", domain.ErrBackendOperation, err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where
	query += " ORDER BY created_at DESC, id DESC"

	argIdx := len(args) + 1
	if !page.Unlimited {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, page.Limit)
		argIdx++
	}
	query += fmt.Sprintf(" OFFSET $%d", argIdx)
	args = append(args, page.Offset)

	var rows []pgJob
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("Failed to list jobs",
			slog.Any("error", err),
		)
		return nil, 0, fmt.Errorf("%w: list jobs: %v", domain.ErrBackendOperation, err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrBackendOperation, err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, total, nil
}

// UpdateJob applies the merged fields and the updatedAt bump in one UPDATE
// statement, so no partially-applied update is ever visible.
func (r *PostgresJobRepo) UpdateJob(ctx context.Context, id string, update domain.JobUpdate) (*domain.Job, error) {
	var statusArg *string
	if update.Status != nil {
		s := string(*update.Status)
		statusArg = &s
	}

	var resultArg *string
	if update.Result != nil {
		resultJSON, err := json.Marshal(update.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: encode result: %v", domain.ErrInvalidArgument, err)
		}
		s := string(resultJSON)
		resultArg = &s
	}

	query := `
		UPDATE jobs SET
			job_name   = COALESCE($2, job_name),
			username   = COALESCE($3, username),
			status     = COALESCE($4, status),
			result     = COALESCE($5::jsonb, result),
			error      = COALESCE($6, error),
			updated_at = $7
		WHERE id = $1
		RETURNING ` + jobColumns

	var row pgJob
	err := r.db.GetContext(
		ctx,
		&row,
		query,
		id,
		update.JobName,
		update.Username,
		statusArg,
		resultArg,
		update.Error,
		time.Now().UTC().Truncate(time.Microsecond),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to update job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: update job: %v", domain.ErrBackendOperation, err)
	}
	return row.toDomain()
}

func (r *PostgresJobRepo) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return false, fmt.Errorf("%w: delete job: %v", domain.ErrBackendOperation, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete job: %v", domain.ErrBackendOperation, err)
	}
	return affected > 0, nil
}
