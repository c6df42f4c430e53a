package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

// SystemInstructions is the fixed system message sent with every report
// generation request.
const SystemInstructions = "You are an expert eCommerce analyst producing detailed data-driven reports."

// BuildPrompt renders the model prompt for a stored job payload. The prompt
// is deterministic for a given payload. Unrecognized report types are a
// processing-time error: intake accepts them, the processor rejects them.
func BuildPrompt(jobType domain.ReportType, payload json.RawMessage) (string, error) {
	switch jobType {
	case domain.ReportTypeMonthly:
		decoded, err := DecodeMonthlyPayload(payload)
		if err != nil {
			return "", err
		}
		return buildMonthlyPrompt(decoded)
	case domain.ReportTypeComparison:
		decoded, err := DecodeComparisonPayload(payload)
		if err != nil {
			return "", err
		}
		return buildComparisonPrompt(decoded)
	default:
		return "", fmt.Errorf("invalid report type: %q", jobType)
	}
}

var monthlyPromptTemplate = template.Must(template.New("monthly").Parse(`You are an expert eCommerce analyst. Generate a comprehensive performance report for {{.WebsiteName}} (ID: {{.WebsiteID}}) for {{.MonthName}} {{.Year}}.

CURRENT MONTH METRICS:
- Sales: {{.CurrentSales}}
- Users: {{.CurrentUsers}}
- Avg. Session Duration: {{.SessionDuration}} seconds
- Bounce Rate: {{.BounceRate}}%

COMPARISON WITH PREVIOUS MONTH:
- Sales: {{.MoMSalesPercent}} ({{.MoMSalesDelta}})
- Users: {{.MoMUsersPercent}} ({{.MoMUsersDelta}})

COMPARISON WITH SAME MONTH LAST YEAR:
- Sales: {{.YoYSalesPercent}} ({{.YoYSalesDelta}})
- Users: {{.YoYUsersPercent}} ({{.YoYUsersDelta}})

YEAR-TO-DATE CONTEXT:
- Total Sales: {{.YTDSales}}
- Total Users: {{.YTDUsers}}
- Monthly Sales Trend: {{.SalesTrend}}

Based on this data, please generate a detailed monthly performance report that includes:
1. An executive summary (2-3 sentences)
2. Key performance insights section
3. Month-over-month analysis section
4. Year-over-year comparison section
5. Position within yearly context section
6. 3-4 actionable recommendations based on the data

Format your response as a JSON object with the following structure:
{
  "title": "Monthly Performance Report - [Website Name] - [Month] [Year]",
  "summary": "Executive summary text here",
  "sections": [
    { "title": "Key Performance Metrics", "content": "Content here" },
    { "title": "Month-over-Month Analysis", "content": "Content here" },
    { "title": "Year-over-Year Comparison", "content": "Content here" },
    { "title": "Yearly Context", "content": "Content here" }
  ],
  "recommendations": [
    "Recommendation 1",
    "Recommendation 2",
    "Recommendation 3",
    "Recommendation 4"
  ]
}

IMPORTANT: Your analysis should be data-driven, insightful, and professional. Include both achievements and areas of concern. Keep each section concise but informative.
IMPORTANT: Respond with raw JSON only, without any markdown formatting or code fences.
IMPORTANT: Do not mention or include any metric whose value is zero or null. Omit any commentary on metrics that are 0.
`))

type monthlyPromptData struct {
	WebsiteName     string
	WebsiteID       string
	MonthName       string
	Year            int
	CurrentSales    string
	CurrentUsers    string
	SessionDuration string
	BounceRate      string
	MoMSalesPercent string
	MoMSalesDelta   string
	MoMUsersPercent string
	MoMUsersDelta   string
	YoYSalesPercent string
	YoYSalesDelta   string
	YoYUsersPercent string
	YoYUsersDelta   string
	YTDSales        string
	YTDUsers        string
	SalesTrend      string
}

func buildMonthlyPrompt(payload MonthlyPayload) (string, error) {
	current := payload.Metrics.CurrentMonth
	vsLastMonth := DeltaBetween(current, payload.Metrics.PreviousMonth)
	vsLastYear := DeltaBetween(current, payload.Metrics.SameMonthLastYear)
	ytdSales, ytdUsers := YearToDate(payload.Metrics.AllMonthsThisYear)

	type trendPoint struct {
		Month int     `json:"month"`
		Sales float64 `json:"sales"`
	}
	trend := make([]trendPoint, 0, len(payload.Metrics.AllMonthsThisYear))
	for _, month := range payload.Metrics.AllMonthsThisYear {
		trend = append(trend, trendPoint{Month: month.Month, Sales: month.Sales})
	}
	encodedTrend, err := json.Marshal(trend)
	if err != nil {
		return "", fmt.Errorf("encode sales trend: %w", err)
	}

	data := monthlyPromptData{
		WebsiteName:     payload.Website.Name,
		WebsiteID:       payload.Website.ID,
		MonthName:       payload.Time.CurrentMonthName,
		Year:            payload.Time.Year,
		CurrentSales:    formatAmount(current.Sales),
		CurrentUsers:    formatNumber(current.Users),
		SessionDuration: strconv.FormatFloat(current.SessionDuration, 'f', -1, 64),
		BounceRate:      strconv.FormatFloat(current.BounceRate, 'f', -1, 64),
		MoMSalesPercent: formatPercentDelta(vsLastMonth.SalesPercent),
		MoMSalesDelta:   formatSignedAmount(vsLastMonth.Sales),
		MoMUsersPercent: formatPercentDelta(vsLastMonth.UsersPercent),
		MoMUsersDelta:   formatSignedCount(vsLastMonth.Users),
		YoYSalesPercent: formatPercentDelta(vsLastYear.SalesPercent),
		YoYSalesDelta:   formatSignedAmount(vsLastYear.Sales),
		YoYUsersPercent: formatPercentDelta(vsLastYear.UsersPercent),
		YoYUsersDelta:   formatSignedCount(vsLastYear.Users),
		YTDSales:        formatAmount(ytdSales),
		YTDUsers:        formatNumber(ytdUsers),
		SalesTrend:      string(encodedTrend),
	}

	return renderPrompt(monthlyPromptTemplate, data)
}

var comparisonPromptTemplate = template.Must(template.New("comparison").Parse(`You are an expert eCommerce analyst. Generate a comprehensive comparison report for {{.WebsiteCount}} websites for {{.MonthName}} {{.Year}}.

{{.WebsiteBlocks}}

Based on this data, please generate a detailed comparison report that includes:
1. An executive summary comparing all websites (2-3 sentences)
2. Performance ranking section (ranking websites by sales and growth)
3. Strengths and weaknesses of each website
4. Market share analysis (percentage of total sales for each website)
5. 3-4 actionable recommendations to improve overall performance across all websites

Format your response as a JSON object with the following structure:
{
  "title": "Website Comparison Report - [Month] [Year]",
  "summary": "Executive summary text here",
  "sections": [
    { "title": "Performance Rankings", "content": "Content here" },
    { "title": "Website Analysis", "content": "Content here" },
    { "title": "Market Share", "content": "Content here" }
  ],
  "recommendations": [
    "Recommendation 1",
    "Recommendation 2",
    "Recommendation 3",
    "Recommendation 4"
  ]
}

IMPORTANT: Your analysis should be data-driven, insightful, and professional. Compare and contrast the websites in a meaningful way to extract actionable insights.
IMPORTANT: Respond with raw JSON only, without any markdown formatting or code fences.
IMPORTANT: Do not mention or include any metric whose value is zero or null. Omit any commentary on metrics that are 0.
`))

type comparisonPromptData struct {
	WebsiteCount  int
	MonthName     string
	Year          int
	WebsiteBlocks string
}

func buildComparisonPrompt(payload ComparisonPayload) (string, error) {
	var blocks strings.Builder
	for _, site := range payload.Websites {
		ytdSales, ytdUsers := YearToDate(site.Metrics.AllMonthsThisYear)
		fmt.Fprintf(&blocks, "WEBSITE: %s (ID: %s)\n", site.Name, site.ID)
		fmt.Fprintf(&blocks, "- Current Month Sales: %s\n", formatAmount(site.Metrics.CurrentMonth.Sales))
		fmt.Fprintf(&blocks, "- Current Month Users: %s\n", formatNumber(site.Metrics.CurrentMonth.Users))
		fmt.Fprintf(&blocks, "- Year-to-Date Sales: %s\n", formatAmount(ytdSales))
		fmt.Fprintf(&blocks, "- Year-to-Date Users: %s\n\n", formatNumber(ytdUsers))
	}

	data := comparisonPromptData{
		WebsiteCount:  len(payload.Websites),
		MonthName:     payload.Websites[0].Time.CurrentMonthName,
		Year:          payload.Websites[0].Time.Year,
		WebsiteBlocks: strings.TrimRight(blocks.String(), "\n"),
	}

	return renderPrompt(comparisonPromptTemplate, data)
}

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	buffer := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buffer, data); err != nil {
		return "", fmt.Errorf("execute prompt template %s: %w", tmpl.Name(), err)
	}
	return buffer.String(), nil
}
