package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

// Status is a snapshot of a report job as seen by the status endpoint.
type Status struct {
	ReportID string
	Status   domain.JobStatus
	Result   json.RawMessage
	Error    string
}

// StatusFetcher retrieves a job snapshot. Implementations include the HTTP
// client below and in-process fakes in tests.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, reportID string) (Status, error)
}

// BackoffStep widens the polling interval once AfterPolls polls have
// happened.
type BackoffStep struct {
	AfterPolls int
	Interval   time.Duration
}

// Policy configures the poll loop. The defaults mirror the dashboard's
// behavior; none of the thresholds are invariants.
type Policy struct {
	InitialInterval time.Duration
	Steps           []BackoffStep
	MaxPolls        int
}

func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 2 * time.Second,
		Steps: []BackoffStep{
			{AfterPolls: 5, Interval: 5 * time.Second},
			{AfterPolls: 10, Interval: 10 * time.Second},
			{AfterPolls: 15, Interval: 30 * time.Second},
		},
		MaxPolls: 120,
	}
}

// Result is the outcome of a poll loop. StillProcessing is set when the
// loop gave up after MaxPolls without the job reaching a terminal state;
// the caller should tell the user to check back later rather than treat it
// as an error.
type Result struct {
	Status          Status
	Polls           int
	StillProcessing bool
}

// Poll drives the status endpoint until the job is terminal, the poll
// budget is spent, or a transport error occurs. A transport error stops
// polling immediately and is returned. The reportID may come from a prior
// session: a restarted client resumes an in-flight job by its stored id
// instead of re-submitting.
func Poll(ctx context.Context, fetcher StatusFetcher, reportID string, policy Policy) (Result, error) {
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 2 * time.Second
	}
	if policy.MaxPolls <= 0 {
		policy.MaxPolls = 120
	}

	interval := policy.InitialInterval
	polls := 0

	for {
		status, err := fetcher.FetchStatus(ctx, reportID)
		if err != nil {
			return Result{Polls: polls}, err
		}

		if status.Status.Terminal() {
			return Result{Status: status, Polls: polls}, nil
		}

		polls++
		if polls > policy.MaxPolls {
			return Result{Status: status, Polls: polls, StillProcessing: true}, nil
		}

		for _, step := range policy.Steps {
			if polls == step.AfterPolls {
				interval = step.Interval
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Status: status, Polls: polls}, ctx.Err()
		case <-timer.C:
		}
	}
}
