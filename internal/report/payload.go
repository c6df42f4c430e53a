package report

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

// Website identifies the storefront a report is about.
type Website struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimePeriod is the month a report covers.
type TimePeriod struct {
	Year             int    `json:"year"`
	Month            int    `json:"month"`
	CurrentMonthName string `json:"currentMonthName"`
}

// MonthMetrics carries the KPI figures for one month. Callers may omit any
// field; absent metrics decode to zero and are excluded from prompts.
type MonthMetrics struct {
	Month           int     `json:"month,omitempty"`
	Sales           float64 `json:"sales"`
	Users           float64 `json:"users"`
	SessionDuration float64 `json:"sessionDuration"`
	BounceRate      float64 `json:"bounceRate"`
}

type Metrics struct {
	CurrentMonth      MonthMetrics   `json:"currentMonth"`
	PreviousMonth     MonthMetrics   `json:"previousMonth"`
	SameMonthLastYear MonthMetrics   `json:"sameMonthLastYear"`
	AllMonthsThisYear []MonthMetrics `json:"allMonthsThisYear"`
}

// MonthlyPayload is the caller-supplied dataset for a monthly report.
type MonthlyPayload struct {
	Website Website    `json:"website"`
	Time    TimePeriod `json:"time"`
	Metrics Metrics    `json:"metrics"`
}

// ComparisonSite is one website inside a comparison report dataset.
type ComparisonSite struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Time    TimePeriod `json:"time"`
	Metrics Metrics    `json:"metrics"`
}

// ComparisonPayload is the caller-supplied dataset for a comparison report.
type ComparisonPayload struct {
	Websites []ComparisonSite `json:"websites"`
}

func DecodeMonthlyPayload(payload json.RawMessage) (MonthlyPayload, error) {
	var decoded MonthlyPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return MonthlyPayload{}, fmt.Errorf("decode monthly payload: %w", err)
	}
	return decoded, nil
}

func DecodeComparisonPayload(payload json.RawMessage) (ComparisonPayload, error) {
	var decoded ComparisonPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return ComparisonPayload{}, fmt.Errorf("decode comparison payload: %w", err)
	}
	if len(decoded.Websites) == 0 {
		return ComparisonPayload{}, errors.New("comparison payload has no websites")
	}
	return decoded, nil
}

// PeriodOf extracts the time period a stored job covers, used for result
// metadata and history summaries. The comparison period comes from the
// first website, matching how the prompt is titled.
func PeriodOf(jobType domain.ReportType, payload json.RawMessage) TimePeriod {
	switch jobType {
	case domain.ReportTypeMonthly:
		decoded, err := DecodeMonthlyPayload(payload)
		if err != nil {
			return TimePeriod{}
		}
		return decoded.Time
	case domain.ReportTypeComparison:
		decoded, err := DecodeComparisonPayload(payload)
		if err != nil {
			return TimePeriod{}
		}
		return decoded.Websites[0].Time
	default:
		return TimePeriod{}
	}
}
