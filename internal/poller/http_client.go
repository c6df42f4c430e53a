package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

type HTTPStatusClientConfig struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// HTTPStatusClient fetches job snapshots from the report status endpoint.
type HTTPStatusClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func NewHTTPStatusClient(config HTTPStatusClientConfig) *HTTPStatusClient {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStatusClient{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		authToken:  strings.TrimSpace(config.AuthToken),
		httpClient: config.HTTPClient,
	}
}

func (c *HTTPStatusClient) FetchStatus(ctx context.Context, reportID string) (Status, error) {
	endpoint := c.baseURL + "/v1/reports/status?reportId=" + url.QueryEscape(reportID)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("create status request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Status{}, fmt.Errorf("status transport error: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return Status{}, fmt.Errorf("read status body: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("status endpoint returned %d", response.StatusCode)
	}

	var decoded struct {
		ReportID string          `json:"reportId"`
		Status   string          `json:"status"`
		Result   json.RawMessage `json:"result"`
		Error    string          `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Status{}, fmt.Errorf("decode status body: %w", err)
	}

	return Status{
		ReportID: decoded.ReportID,
		Status:   domain.JobStatus(decoded.Status),
		Result:   decoded.Result,
		Error:    decoded.Error,
	}, nil
}
