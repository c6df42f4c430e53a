package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(ctx context.Context, databaseURL string) (*PostgresJobStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresJobStore{pool: pool}, nil
}

func (s *PostgresJobStore) Close() {
	s.pool.Close()
}

func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.ReportJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO report_jobs (
			id,
			type,
			user_id,
			payload,
			status,
			retry_count,
			max_retries,
			result,
			error_message,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		job.ID,
		string(job.Type),
		job.UserID,
		job.Payload,
		string(job.Status),
		job.RetryCount,
		job.MaxRetries,
		job.Result,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report job: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) GetJob(ctx context.Context, jobID string) (*domain.ReportJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, type, user_id, payload, status, retry_count, max_retries,
			result, error_message, created_at, updated_at, completed_at
		FROM report_jobs
		WHERE id = $1
	`, jobID)

	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report job: %w", err)
	}
	return job, nil
}

func (s *PostgresJobStore) ListPending(ctx context.Context, limit int) ([]*domain.ReportJob, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, type, user_id, payload, status, retry_count, max_retries,
			result, error_message, created_at, updated_at, completed_at
		FROM report_jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ClaimJob is a conditional update: only the caller that observes the row
// still pending flips it to processing.
func (s *PostgresJobStore) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	command, err := s.pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, jobID)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresJobStore) CompleteJob(ctx context.Context, jobID string, result json.RawMessage) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = 'completed',
			result = $2,
			error_message = '',
			completed_at = now(),
			updated_at = now()
		WHERE id = $1
	`, jobID, result)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresJobStore) RetryJob(ctx context.Context, jobID string, retryCount int, errMsg string) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = 'pending',
			retry_count = $2,
			error_message = $3,
			updated_at = now()
		WHERE id = $1
	`, jobID, retryCount, errMsg)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresJobStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = 'failed',
			error_message = $2,
			updated_at = now()
		WHERE id = $1
	`, jobID, errMsg)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresJobStore) ListUserJobs(
	ctx context.Context,
	filter domain.HistoryFilter,
) ([]*domain.ReportJob, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, type, user_id, payload, status, retry_count, max_retries,
			result, error_message, created_at, updated_at, completed_at
		FROM report_jobs
		WHERE user_id = $1
	`
	args := []any{filter.UserID}
	if filter.CompletedOnly {
		query += " AND status = 'completed'"
	}
	query += " ORDER BY created_at DESC LIMIT $2"
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*domain.ReportJob, error) {
	jobs := make([]*domain.ReportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate report jobs: %w", rows.Err())
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.ReportJob, error) {
	var (
		job         domain.ReportJob
		jobType     string
		status      string
		payload     []byte
		result      []byte
		createdAt   time.Time
		updatedAt   time.Time
		completedAt *time.Time
	)

	err := row.Scan(
		&job.ID,
		&jobType,
		&job.UserID,
		&payload,
		&status,
		&job.RetryCount,
		&job.MaxRetries,
		&result,
		&job.Error,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = domain.ReportType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = json.RawMessage(payload)
	job.Result = json.RawMessage(result)
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	job.CompletedAt = completedAt
	return &job, nil
}
