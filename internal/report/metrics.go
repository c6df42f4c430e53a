package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PercentUnavailable is emitted when a percentage change cannot be computed
// because the prior period is zero.
const PercentUnavailable = "N/A"

// PercentChange returns the relative change from prior to current formatted
// with two decimals, or PercentUnavailable when prior is zero.
func PercentChange(current, prior float64) string {
	if prior == 0 {
		return PercentUnavailable
	}
	return strconv.FormatFloat((current-prior)/prior*100, 'f', 2, 64)
}

// Delta is the absolute and relative movement of sales and users between
// two months.
type Delta struct {
	Sales        float64
	SalesPercent string
	Users        float64
	UsersPercent string
}

func DeltaBetween(current, prior MonthMetrics) Delta {
	return Delta{
		Sales:        current.Sales - prior.Sales,
		SalesPercent: PercentChange(current.Sales, prior.Sales),
		Users:        current.Users - prior.Users,
		UsersPercent: PercentChange(current.Users, prior.Users),
	}
}

// YearToDate sums sales and users across the supplied months.
func YearToDate(months []MonthMetrics) (sales, users float64) {
	for _, month := range months {
		sales += month.Sales
		users += month.Users
	}
	return sales, users
}

// formatNumber renders a figure with thousands separators, dropping the
// fraction when it is whole.
func formatNumber(value float64) string {
	negative := value < 0
	abs := math.Abs(value)

	// Round once before splitting so a fraction that carries into the whole
	// part (799.999 -> 800) keeps whole and fraction consistent.
	digits := strconv.FormatFloat(math.Round(abs*100)/100, 'f', 2, 64)
	whole, fraction, _ := strings.Cut(digits, ".")

	var grouped strings.Builder
	for index, digit := range whole {
		if index > 0 && (len(whole)-index)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}

	result := grouped.String()
	if fraction != "00" {
		result += "." + fraction
	}
	if negative && result != "0" {
		result = "-" + result
	}
	return result
}

// formatSignedAmount renders a currency delta with an explicit sign, e.g.
// "+$1,200" or "-$340".
func formatSignedAmount(value float64) string {
	if value < 0 {
		return "-$" + formatNumber(-value)
	}
	return "+$" + formatNumber(value)
}

// formatSignedCount renders a unit delta with an explicit sign.
func formatSignedCount(value float64) string {
	if value < 0 {
		return formatNumber(value)
	}
	return "+" + formatNumber(value)
}

func formatAmount(value float64) string {
	return "$" + formatNumber(value)
}

func formatPercentDelta(percent string) string {
	if percent == PercentUnavailable {
		return percent
	}
	return fmt.Sprintf("%s%%", percent)
}
