package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

var ErrNotFound = errors.New("report job not found")

// JobStore abstracts report job persistence. All state transitions after
// creation go through the dedicated methods so that timestamps and the
// claim guard stay consistent across backends.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.ReportJob) error
	GetJob(ctx context.Context, jobID string) (*domain.ReportJob, error)

	// ListPending returns up to limit pending jobs, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.ReportJob, error)

	// ClaimJob flips a job from pending to processing. It returns false
	// without error when the job was not pending anymore, so overlapping
	// processor runs cannot both win the same job.
	ClaimJob(ctx context.Context, jobID string) (bool, error)

	CompleteJob(ctx context.Context, jobID string, result json.RawMessage) error
	RetryJob(ctx context.Context, jobID string, retryCount int, errMsg string) error
	FailJob(ctx context.Context, jobID string, errMsg string) error

	ListUserJobs(ctx context.Context, filter domain.HistoryFilter) ([]*domain.ReportJob, error)
}

// MemoryJobStore keeps jobs in memory for local development and tests.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ReportJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*domain.ReportJob)}
}

func (s *MemoryJobStore) CreateJob(_ context.Context, job *domain.ReportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryJobStore) GetJob(_ context.Context, jobID string) (*domain.ReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryJobStore) ListPending(_ context.Context, limit int) ([]*domain.ReportJob, error) {
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	pending := make([]*domain.ReportJob, 0)
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusPending {
			pending = append(pending, cloneJob(job))
		}
	}
	s.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryJobStore) ClaimJob(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != domain.JobStatusPending {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryJobStore) CompleteJob(_ context.Context, jobID string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Result = append([]byte(nil), result...)
	job.Error = ""
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *MemoryJobStore) RetryJob(_ context.Context, jobID string, retryCount int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = domain.JobStatusPending
	job.RetryCount = retryCount
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryJobStore) FailJob(_ context.Context, jobID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = domain.JobStatusFailed
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryJobStore) ListUserJobs(
	_ context.Context,
	filter domain.HistoryFilter,
) ([]*domain.ReportJob, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	items := make([]*domain.ReportJob, 0)
	for _, job := range s.jobs {
		if job.UserID != filter.UserID {
			continue
		}
		if filter.CompletedOnly && job.Status != domain.JobStatusCompleted {
			continue
		}
		items = append(items, cloneJob(job))
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func cloneJob(job *domain.ReportJob) *domain.ReportJob {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Payload = append([]byte(nil), job.Payload...)
	clone.Result = append([]byte(nil), job.Result...)
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
