package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/queue"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/report"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/store"
)

var ErrInvalidRequest = errors.New("invalid report request")

// ReportsService owns the intake, status and history operations of the
// report pipeline.
type ReportsService struct {
	store    store.JobStore
	producer queue.Producer
	logger   *log.Logger
}

func NewReportsService(jobStore store.JobStore, producer queue.Producer, logger *log.Logger) *ReportsService {
	return &ReportsService{
		store:    jobStore,
		producer: producer,
		logger:   logger,
	}
}

type SubmitInput struct {
	Type   string
	Data   json.RawMessage
	UserID string
}

// Submit validates and persists a new report job, then publishes a dispatch
// hint and returns immediately. Intake is deliberately permissive about the
// report type: unknown types are stored and fail later at prompt time.
func (s *ReportsService) Submit(ctx context.Context, input SubmitInput) (*domain.ReportJob, error) {
	reportType := strings.TrimSpace(input.Type)
	if reportType == "" || !isStructuredPayload(input.Data) {
		return nil, ErrInvalidRequest
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		userID = "anonymous"
	}

	now := time.Now().UTC()
	job := &domain.ReportJob{
		ID:         uuid.NewString(),
		Type:       domain.ReportType(reportType),
		UserID:     userID,
		Payload:    append(json.RawMessage(nil), input.Data...),
		Status:     domain.JobStatusPending,
		RetryCount: 0,
		MaxRetries: domain.DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create report job: %w", err)
	}

	// Dispatch is only a wake-up hint; the periodic sweep picks up any job
	// whose hint was lost, so a queue failure does not fail the submission.
	if s.producer != nil {
		message := domain.DispatchMessage{
			JobID:       job.ID,
			Type:        job.Type,
			UserID:      job.UserID,
			Attempt:     0,
			RequestedAt: now,
		}
		if err := s.producer.Enqueue(ctx, message); err != nil && s.logger != nil {
			s.logger.Printf("dispatch enqueue failed job_id=%s err=%v", job.ID, err)
		}
	}

	return job, nil
}

// isStructuredPayload reports whether data is a JSON object or array. Bare
// literals like null, false or "" carry no metrics and must not reach the
// processor as a billable generation.
func isStructuredPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}

// GetStatus looks up a job's current state.
func (s *ReportsService) GetStatus(ctx context.Context, jobID string) (*domain.ReportJob, error) {
	return s.store.GetJob(ctx, jobID)
}

// HistoryEntry is a job summary with the heavy payload stripped. Report is
// populated only on the single most recent completed entry.
type HistoryEntry struct {
	ReportID    string
	Type        domain.ReportType
	Status      domain.JobStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	Website     *report.Website
	TimePeriod  *report.TimePeriod
	Report      json.RawMessage
}

type HistoryResult struct {
	Reports             []HistoryEntry
	MostRecentCompleted *HistoryEntry
	HasCompletedReports bool
	TotalCount          int
}

// ListHistory lists a user's past jobs, newest first. With includeProcessing
// false only completed jobs are returned, re-sorted by completion time; the
// store is queried with headroom because its ordering key is createdAt while
// the effective sort key is completedAt when present.
func (s *ReportsService) ListHistory(
	ctx context.Context,
	userID string,
	limit int,
	includeProcessing bool,
) (HistoryResult, error) {
	if strings.TrimSpace(userID) == "" {
		return HistoryResult{}, ErrInvalidRequest
	}
	if limit <= 0 {
		limit = 10
	}

	filter := domain.HistoryFilter{
		UserID: userID,
		Limit:  limit,
	}
	if !includeProcessing {
		filter.CompletedOnly = true
		filter.Limit = limit * 2
	}

	jobs, err := s.store.ListUserJobs(ctx, filter)
	if err != nil {
		return HistoryResult{}, fmt.Errorf("list user jobs: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, summarizeJob(job))
	}

	if !includeProcessing {
		sort.Slice(entries, func(i, j int) bool {
			return effectiveCompletion(entries[i]).After(effectiveCompletion(entries[j]))
		})
		if len(entries) > limit {
			entries = entries[:limit]
		}
	}

	// Only the most recent completed entry carries the full report body, to
	// bound response size.
	var mostRecent *HistoryEntry
	for index := range entries {
		if entries[index].Status != domain.JobStatusCompleted {
			continue
		}
		entries[index].Report = resultOf(jobs, entries[index].ReportID)
		mostRecent = &entries[index]
		break
	}

	return HistoryResult{
		Reports:             entries,
		MostRecentCompleted: mostRecent,
		HasCompletedReports: mostRecent != nil,
		TotalCount:          len(entries),
	}, nil
}

type payloadDescriptor struct {
	Website *report.Website    `json:"website"`
	Time    *report.TimePeriod `json:"time"`
}

func summarizeJob(job *domain.ReportJob) HistoryEntry {
	entry := HistoryEntry{
		ReportID:    job.ID,
		Type:        job.Type,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}

	var descriptor payloadDescriptor
	if err := json.Unmarshal(job.Payload, &descriptor); err == nil {
		entry.Website = descriptor.Website
		entry.TimePeriod = descriptor.Time
	}
	return entry
}

func effectiveCompletion(entry HistoryEntry) time.Time {
	if entry.CompletedAt != nil {
		return *entry.CompletedAt
	}
	return entry.CreatedAt
}

func resultOf(jobs []*domain.ReportJob, jobID string) json.RawMessage {
	for _, job := range jobs {
		if job.ID == jobID {
			return job.Result
		}
	}
	return nil
}
