package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/ai"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/cache"
	httpserver "github.com/awolfe89/ecommerce-kpi-dashboard/internal/http"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/http/handlers"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/queue"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/service"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/store"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/worker"
)

// scriptedGenerator completes every prompt with a canned report so the
// pipeline runs end to end without a provider.
type scriptedGenerator struct {
	calls int64
}

func (g *scriptedGenerator) Generate(_ context.Context, request ai.GenerateRequest) (ai.GenerateResult, error) {
	atomic.AddInt64(&g.calls, 1)
	completion := map[string]any{
		"title":           "Monthly Performance Report - Acme Store - March 2025",
		"summary":         "A strong month with healthy growth.",
		"sections":        []map[string]string{{"title": "Key Performance Metrics", "content": "Sales grew month over month."}},
		"recommendations": []string{"Invest further in the March campaign mix"},
	}
	encoded, _ := json.Marshal(completion)
	return ai.GenerateResult{Text: string(encoded), ModelID: request.Model}, nil
}

func (g *scriptedGenerator) Available() bool { return true }

type pipelineRuntime struct {
	server *httptest.Server
	cancel context.CancelFunc
}

func startPipelineRuntime(t *testing.T, authToken string) pipelineRuntime {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)
	jobStore := store.NewMemoryJobStore()
	localQueue := queue.NewLocalQueue(2048, 3, logger)

	reportCache := cache.NewReportCache(cache.Config{
		TTL:        10 * time.Minute,
		MaxEntries: 200,
	})
	reportsService := service.NewReportsService(jobStore, localQueue, logger)
	processor := worker.NewProcessor(jobStore, localQueue, &scriptedGenerator{}, reportCache, worker.ProcessorConfig{
		BatchSize:     5,
		SweepInterval: 50 * time.Millisecond,
		Model:         "gpt-4-turbo",
	}, logger)
	go processor.Start(ctx)

	api := handlers.NewAPI(reportsService, processor)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      authToken,
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	server := httptest.NewServer(router)
	return pipelineRuntime{
		server: server,
		cancel: func() {
			cancel()
			server.Close()
		},
	}
}

func postJSON(
	t *testing.T,
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
) (int, map[string]any) {
	t.Helper()

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response body (%d): %s", response.StatusCode, string(raw))
	}
	return response.StatusCode, decoded
}

func getJSON(t *testing.T, client *http.Client, url string, headers map[string]string) (int, map[string]any) {
	t.Helper()

	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build get request: %v", err)
	}
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute get request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode get response body (%d): %s", response.StatusCode, string(raw))
	}
	return response.StatusCode, decoded
}

func monthlyRequestPayload() map[string]any {
	return map[string]any{
		"type":   "monthly",
		"userId": "user-e2e",
		"data": map[string]any{
			"website": map[string]any{"id": "site-1", "name": "Acme Store"},
			"time":    map[string]any{"year": 2025, "month": 3, "currentMonthName": "March"},
			"metrics": map[string]any{
				"currentMonth":      map[string]any{"month": 3, "sales": 12500, "users": 900},
				"previousMonth":     map[string]any{"month": 2, "sales": 10000, "users": 1000},
				"sameMonthLastYear": map[string]any{"month": 3, "sales": 9000, "users": 800},
				"allMonthsThisYear": []map[string]any{
					{"month": 1, "sales": 8000, "users": 700},
					{"month": 2, "sales": 10000, "users": 1000},
					{"month": 3, "sales": 12500, "users": 900},
				},
			},
		},
	}
}

func waitForTerminal(
	t *testing.T,
	client *http.Client,
	baseURL string,
	reportID string,
	timeout time.Duration,
) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, body := getJSON(t, client, fmt.Sprintf("%s/v1/reports/status?reportId=%s", baseURL, reportID), nil)
		if status != http.StatusOK {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		jobStatus, _ := body["status"].(string)
		if jobStatus == "completed" || jobStatus == "failed" {
			return body
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("timeout waiting for report %s to reach a terminal state", reportID)
	return nil
}

func TestReportPipelineEndToEnd(t *testing.T) {
	runtime := startPipelineRuntime(t, "")
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	submitStatus, submitBody := postJSON(t, client, baseURL+"/v1/reports", monthlyRequestPayload(), nil)
	if submitStatus != http.StatusOK {
		t.Fatalf("expected 200 from submit, got %d body=%+v", submitStatus, submitBody)
	}
	if submitBody["status"] != "pending" {
		t.Fatalf("expected pending on submit, got %+v", submitBody["status"])
	}
	reportID, _ := submitBody["reportId"].(string)
	if strings.TrimSpace(reportID) == "" {
		t.Fatalf("expected report id in submit response, got %+v", submitBody)
	}

	final := waitForTerminal(t, client, baseURL, reportID, 4*time.Second)
	if final["status"] != "completed" {
		t.Fatalf("expected completed report, got %+v", final)
	}
	result, ok := final["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result payload on completed report, got %+v", final)
	}
	title, _ := result["title"].(string)
	if !strings.Contains(title, "Acme") || !strings.Contains(title, "March") {
		t.Fatalf("expected report title to name the site and month, got %q", title)
	}
	if final["completedAt"] == nil {
		t.Fatalf("expected completedAt on completed report")
	}

	historyStatus, historyBody := getJSON(t, client, baseURL+"/v1/reports/history?userId=user-e2e", nil)
	if historyStatus != http.StatusOK {
		t.Fatalf("expected 200 from history, got %d body=%+v", historyStatus, historyBody)
	}
	if historyBody["hasCompletedReports"] != true {
		t.Fatalf("expected completed reports in history, got %+v", historyBody)
	}
	reports, _ := historyBody["reports"].([]any)
	if len(reports) != 1 {
		t.Fatalf("expected 1 history entry, got %+v", historyBody["reports"])
	}
	entry, _ := reports[0].(map[string]any)
	if entry["reportId"] != reportID {
		t.Fatalf("unexpected history entry %+v", entry)
	}
	website, _ := entry["website"].(map[string]any)
	if website["name"] != "Acme Store" {
		t.Fatalf("expected website summary in history, got %+v", entry)
	}
}

func TestReportPipelineValidationErrors(t *testing.T) {
	runtime := startPipelineRuntime(t, "")
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	status, body := postJSON(t, client, baseURL+"/v1/reports", map[string]any{"data": map[string]any{"x": 1}}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing type, got %d body=%+v", status, body)
	}

	status, _ = getJSON(t, client, baseURL+"/v1/reports/status", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing reportId, got %d", status)
	}

	status, _ = getJSON(t, client, baseURL+"/v1/reports/status?reportId=unknown-id", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown report, got %d", status)
	}
}

func TestReportPipelineRequiresAuth(t *testing.T) {
	runtime := startPipelineRuntime(t, "secret-token")
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	status, _ := postJSON(t, client, baseURL+"/v1/reports", monthlyRequestPayload(), nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", status)
	}

	status, body := postJSON(t, client, baseURL+"/v1/reports", monthlyRequestPayload(), map[string]string{
		"Authorization": "Bearer secret-token",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d body=%+v", status, body)
	}

	status, _ = getJSON(t, client, baseURL+"/healthz", nil)
	if status != http.StatusOK {
		t.Fatalf("expected health check to bypass auth, got %d", status)
	}
}

func TestManualTriggerProcessesSweptJobs(t *testing.T) {
	runtime := startPipelineRuntime(t, "")
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	submitStatus, submitBody := postJSON(t, client, baseURL+"/v1/reports", monthlyRequestPayload(), nil)
	if submitStatus != http.StatusOK {
		t.Fatalf("expected 200 from submit, got %d", submitStatus)
	}
	reportID, _ := submitBody["reportId"].(string)

	triggerStatus, triggerBody := postJSON(t, client, baseURL+"/v1/reports/process", map[string]any{}, nil)
	if triggerStatus != http.StatusOK {
		t.Fatalf("expected 200 from trigger, got %d body=%+v", triggerStatus, triggerBody)
	}
	if triggerBody["status"] != "accepted" {
		t.Fatalf("unexpected trigger response %+v", triggerBody)
	}

	final := waitForTerminal(t, client, baseURL, reportID, 4*time.Second)
	if final["status"] != "completed" {
		t.Fatalf("expected completed report after trigger, got %+v", final)
	}
}
