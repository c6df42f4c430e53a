package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

func monthlyTestPayload(t *testing.T) json.RawMessage {
	t.Helper()
	payload := MonthlyPayload{
		Website: Website{ID: "site-1", Name: "Acme Store"},
		Time:    TimePeriod{Year: 2025, Month: 3, CurrentMonthName: "March"},
		Metrics: Metrics{
			CurrentMonth:      MonthMetrics{Month: 3, Sales: 12500, Users: 900, SessionDuration: 185, BounceRate: 42.5},
			PreviousMonth:     MonthMetrics{Month: 2, Sales: 10000, Users: 1000},
			SameMonthLastYear: MonthMetrics{Month: 3, Sales: 0, Users: 0},
			AllMonthsThisYear: []MonthMetrics{
				{Month: 1, Sales: 8000, Users: 700},
				{Month: 2, Sales: 10000, Users: 1000},
				{Month: 3, Sales: 12500, Users: 900},
			},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return encoded
}

func TestBuildMonthlyPrompt(t *testing.T) {
	prompt, err := BuildPrompt(domain.ReportTypeMonthly, monthlyTestPayload(t))
	if err != nil {
		t.Fatalf("expected prompt, got err=%v", err)
	}

	for _, want := range []string{
		"Acme Store",
		"(ID: site-1)",
		"March 2025",
		"Sales: $12,500",
		"Users: 900",
		"Avg. Session Duration: 185 seconds",
		"Bounce Rate: 42.5%",
		"25.00% (+$2,500)",
		"-10.00% (-100)",
		"Total Sales: $30,500",
		"Total Users: 2,600",
		`{"month":1,"sales":8000}`,
		"Respond with raw JSON only",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildMonthlyPromptZeroPriorYear(t *testing.T) {
	prompt, err := BuildPrompt(domain.ReportTypeMonthly, monthlyTestPayload(t))
	if err != nil {
		t.Fatalf("expected prompt, got err=%v", err)
	}
	if !strings.Contains(prompt, "N/A (+$12,500)") {
		t.Fatalf("expected N/A year-over-year sales, prompt was:\n%s", prompt)
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	payload := monthlyTestPayload(t)
	first, err := BuildPrompt(domain.ReportTypeMonthly, payload)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := BuildPrompt(domain.ReportTypeMonthly, payload)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if first != second {
		t.Fatalf("prompt not deterministic for identical payloads")
	}
}

func TestBuildComparisonPrompt(t *testing.T) {
	payload := ComparisonPayload{
		Websites: []ComparisonSite{
			{
				ID:   "site-1",
				Name: "Acme Store",
				Time: TimePeriod{Year: 2025, Month: 3, CurrentMonthName: "March"},
				Metrics: Metrics{
					CurrentMonth:      MonthMetrics{Sales: 12500, Users: 900},
					AllMonthsThisYear: []MonthMetrics{{Month: 1, Sales: 8000, Users: 700}},
				},
			},
			{
				ID:   "site-2",
				Name: "Beta Outlet",
				Time: TimePeriod{Year: 2025, Month: 3, CurrentMonthName: "March"},
				Metrics: Metrics{
					CurrentMonth:      MonthMetrics{Sales: 4000, Users: 300},
					AllMonthsThisYear: []MonthMetrics{{Month: 1, Sales: 2000, Users: 150}},
				},
			},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	prompt, err := BuildPrompt(domain.ReportTypeComparison, encoded)
	if err != nil {
		t.Fatalf("expected prompt, got err=%v", err)
	}
	for _, want := range []string{
		"comparison report for 2 websites for March 2025",
		"WEBSITE: Acme Store (ID: site-1)",
		"WEBSITE: Beta Outlet (ID: site-2)",
		"Current Month Sales: $4,000",
		"Year-to-Date Sales: $8,000",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildComparisonPromptRejectsEmptyWebsites(t *testing.T) {
	_, err := BuildPrompt(domain.ReportTypeComparison, json.RawMessage(`{"websites":[]}`))
	if err == nil {
		t.Fatalf("expected error for empty comparison payload")
	}
}

func TestBuildPromptRejectsUnknownType(t *testing.T) {
	_, err := BuildPrompt(domain.ReportType("quarterly"), json.RawMessage(`{}`))
	if err == nil {
		t.Fatalf("expected error for unknown report type")
	}
	if !strings.Contains(err.Error(), "invalid report type") {
		t.Fatalf("unexpected error: %v", err)
	}
}
