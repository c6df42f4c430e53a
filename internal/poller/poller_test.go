package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

type scriptedFetcher struct {
	statuses []Status
	errs     []error
	calls    int
}

func (f *scriptedFetcher) FetchStatus(_ context.Context, reportID string) (Status, error) {
	index := f.calls
	f.calls++
	if index >= len(f.statuses) {
		index = len(f.statuses) - 1
	}
	var err error
	if index < len(f.errs) {
		err = f.errs[index]
	}
	status := f.statuses[index]
	status.ReportID = reportID
	return status, err
}

func fastPolicy(maxPolls int) Policy {
	return Policy{
		InitialInterval: time.Millisecond,
		Steps: []BackoffStep{
			{AfterPolls: 5, Interval: time.Millisecond},
		},
		MaxPolls: maxPolls,
	}
}

func TestPollStopsOnCompleted(t *testing.T) {
	fetcher := &scriptedFetcher{
		statuses: []Status{
			{Status: domain.JobStatusPending},
			{Status: domain.JobStatusProcessing},
			{Status: domain.JobStatusCompleted, Result: json.RawMessage(`{"title":"ok"}`)},
		},
	}

	result, err := Poll(context.Background(), fetcher, "report-1", fastPolicy(20))
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if result.Status.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %q", result.Status.Status)
	}
	if result.StillProcessing {
		t.Fatalf("completed poll must not be marked still processing")
	}
	if fetcher.calls != 3 {
		t.Fatalf("expected 3 fetches, got %d", fetcher.calls)
	}
	if string(result.Status.Result) != `{"title":"ok"}` {
		t.Fatalf("unexpected result payload %s", result.Status.Result)
	}
}

func TestPollStopsOnFailed(t *testing.T) {
	fetcher := &scriptedFetcher{
		statuses: []Status{
			{Status: domain.JobStatusProcessing},
			{Status: domain.JobStatusFailed, Error: "provider exhausted"},
		},
	}

	result, err := Poll(context.Background(), fetcher, "report-1", fastPolicy(20))
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if result.Status.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %q", result.Status.Status)
	}
	if result.Status.Error != "provider exhausted" {
		t.Fatalf("unexpected error %q", result.Status.Error)
	}
}

func TestPollGivesUpAfterMaxPolls(t *testing.T) {
	fetcher := &scriptedFetcher{
		statuses: []Status{{Status: domain.JobStatusProcessing}},
	}

	result, err := Poll(context.Background(), fetcher, "report-1", fastPolicy(4))
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !result.StillProcessing {
		t.Fatalf("expected still-processing outcome after budget spent")
	}
	if result.Status.Status != domain.JobStatusProcessing {
		t.Fatalf("expected last observed status, got %q", result.Status.Status)
	}
	if result.Polls != 5 {
		t.Fatalf("expected 5 polls before giving up, got %d", result.Polls)
	}
}

func TestPollStopsOnTransportError(t *testing.T) {
	transportErr := errors.New("connection refused")
	fetcher := &scriptedFetcher{
		statuses: []Status{
			{Status: domain.JobStatusProcessing},
			{},
		},
		errs: []error{nil, transportErr},
	}

	_, err := Poll(context.Background(), fetcher, "report-1", fastPolicy(20))
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected transport error returned, got %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected polling to stop at the error, got %d calls", fetcher.calls)
	}
}

func TestPollHonorsContextCancel(t *testing.T) {
	fetcher := &scriptedFetcher{
		statuses: []Status{{Status: domain.JobStatusProcessing}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{InitialInterval: time.Minute, MaxPolls: 20}

	done := make(chan error, 1)
	go func() {
		_, err := Poll(ctx, fetcher, "report-1", policy)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("poll did not return after cancel")
	}
}

func TestDefaultPolicyThresholds(t *testing.T) {
	policy := DefaultPolicy()
	if policy.InitialInterval != 2*time.Second {
		t.Fatalf("unexpected initial interval %v", policy.InitialInterval)
	}
	if policy.MaxPolls != 120 {
		t.Fatalf("unexpected max polls %d", policy.MaxPolls)
	}
	want := []BackoffStep{
		{AfterPolls: 5, Interval: 5 * time.Second},
		{AfterPolls: 10, Interval: 10 * time.Second},
		{AfterPolls: 15, Interval: 30 * time.Second},
	}
	if len(policy.Steps) != len(want) {
		t.Fatalf("unexpected steps %+v", policy.Steps)
	}
	for i, step := range want {
		if policy.Steps[i] != step {
			t.Fatalf("step %d = %+v, want %+v", i, policy.Steps[i], step)
		}
	}
}

func TestHTTPStatusClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/reports/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("reportId"); got != "report-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reportId":"report-1","status":"completed","result":{"title":"ok"}}`))
	}))
	defer server.Close()

	client := NewHTTPStatusClient(HTTPStatusClientConfig{
		BaseURL:   server.URL,
		AuthToken: "test-token",
	})

	status, err := client.FetchStatus(context.Background(), "report-1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if status.ReportID != "report-1" {
		t.Fatalf("unexpected report id %q", status.ReportID)
	}
	if status.Status != domain.JobStatusCompleted {
		t.Fatalf("unexpected status %q", status.Status)
	}
	if string(status.Result) != `{"title":"ok"}` {
		t.Fatalf("unexpected result %s", status.Result)
	}
}

func TestHTTPStatusClientNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found"}}`))
	}))
	defer server.Close()

	client := NewHTTPStatusClient(HTTPStatusClientConfig{BaseURL: server.URL})
	if _, err := client.FetchStatus(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}
