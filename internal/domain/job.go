package domain

import (
	"encoding/json"
	"time"
)

type ReportType string

const (
	ReportTypeMonthly    ReportType = "monthly"
	ReportTypeComparison ReportType = "comparison"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status will never be claimed again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

const DefaultMaxRetries = 3

// ReportJob is one requested AI report with its lifecycle state. Jobs are
// created pending, claimed into processing, and end completed or failed;
// recoverable failures send the job back to pending with RetryCount bumped.
type ReportJob struct {
	ID          string
	Type        ReportType
	UserID      string
	Payload     json.RawMessage
	Status      JobStatus
	RetryCount  int
	MaxRetries  int
	Result      json.RawMessage
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// DispatchMessage is the transport format sent to the dispatch queue when a
// job is submitted. It is only a wake-up hint: the worker re-reads the job
// from the store and must win the claim before doing any work.
type DispatchMessage struct {
	JobID       string     `json:"job_id"`
	Type        ReportType `json:"type"`
	UserID      string     `json:"user_id"`
	Attempt     int        `json:"attempt"`
	RequestedAt time.Time  `json:"requested_at"`
}

// HistoryFilter selects a user's past jobs, newest first.
type HistoryFilter struct {
	UserID        string
	Limit         int
	CompletedOnly bool
}
