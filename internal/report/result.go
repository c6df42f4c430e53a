package report

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Report is the structured result stored on a completed job.
type Report struct {
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Sections        []Section `json:"sections"`
	Recommendations []string  `json:"recommendations"`
	GeneratedAt     time.Time `json:"generatedAt"`
	Month           int       `json:"month,omitempty"`
	Year            int       `json:"year,omitempty"`
	Type            string    `json:"type"`
	Error           string    `json:"error,omitempty"`
}

// ParseCompletion turns raw model output into a Report, echoing job metadata.
// Model output that does not decode as the expected schema never fails the
// job: a degraded report with an error notice is returned instead, and the
// second return value reports that degradation.
func ParseCompletion(
	jobType domain.ReportType,
	payload json.RawMessage,
	text string,
	now time.Time,
) (Report, bool) {
	period := PeriodOf(jobType, payload)

	content := StripFences(text)

	var parsed Report
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return fallbackReport(jobType, payload, period, now, err), true
	}

	parsed.GeneratedAt = now
	parsed.Month = period.Month
	parsed.Year = period.Year
	parsed.Type = string(jobType)
	return parsed, false
}

// StripFences removes Markdown code-fence wrapping (```json ... ``` or stray
// backticks) that models sometimes emit despite the raw-JSON instruction.
func StripFences(text string) string {
	content := strings.TrimSpace(text)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimPrefix(content, "json")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	if strings.HasPrefix(content, "`") && strings.HasSuffix(content, "`") && len(content) >= 2 {
		content = strings.TrimSpace(content[1 : len(content)-1])
	}
	return content
}

func fallbackReport(
	jobType domain.ReportType,
	payload json.RawMessage,
	period TimePeriod,
	now time.Time,
	parseErr error,
) Report {
	title := "Website Comparison Report"
	if jobType == domain.ReportTypeMonthly {
		title = "Monthly Report"
		if decoded, err := DecodeMonthlyPayload(payload); err == nil && decoded.Website.Name != "" {
			title = "Monthly Report for " + decoded.Website.Name
		}
	}

	return Report{
		Title:   title,
		Summary: "We were unable to generate a detailed report at this time.",
		Sections: []Section{
			{
				Title:   "Error Notice",
				Content: "There was an error generating the full report. Please try again later.",
			},
		},
		Recommendations: []string{"Try generating the report again"},
		GeneratedAt:     now,
		Month:           period.Month,
		Year:            period.Year,
		Type:            string(jobType),
		Error:           parseErr.Error(),
	}
}
