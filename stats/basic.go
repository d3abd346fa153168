// Package stats computes dashboard statistics and chart datasets from a report list.
// Every function is pure: no store access, no mutation of its inputs.
package stats

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"workscope/models"
)

// NotAvailable is shown when no report qualifies for an average.
const NotAvailable = "N/A"

// Basic holds the headline numbers of a report list.
type Basic struct {
	Total             int    `json:"total"`
	Completed         int    `json:"completed"`
	Pending           int    `json:"pending"`
	CompletionRate    string `json:"completion_rate"`
	PendingRate       string `json:"pending_rate"`
	AvgCompletionTime string `json:"avg_completion_time"`
}

// BasicStats counts reports by status and averages completion time. Rates are
// percentages with one decimal, or "0" for an empty list.
func BasicStats(reports []models.Report) Basic {
	b := Basic{Total: len(reports)}
	for _, r := range reports {
		if r.IsCompleted() {
			b.Completed++
		}
	}
	b.Pending = b.Total - b.Completed
	b.CompletionRate = Rate(b.Completed, b.Total)
	b.PendingRate = Rate(b.Pending, b.Total)
	b.AvgCompletionTime = FormatAverage(AverageResolution(reports))
	return b
}

// Rate formats part/total as a percentage with one decimal.
func Rate(part, total int) string {
	if total == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(part)*100/float64(total), 'f', 1, 64)
}

// AverageResolution averages completion time over completed reports whose completion
// does not precede their creation. ok is false when no report qualifies.
func AverageResolution(reports []models.Report) (avg time.Duration, ok bool) {
	var sum time.Duration
	n := 0
	for _, r := range reports {
		d, valid := r.ResolutionTime()
		if !valid {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / time.Duration(n), true
}

// FormatAverage renders an average as "5.5h" below a day and "2d 3h" above it.
func FormatAverage(d time.Duration, ok bool) string {
	if !ok {
		return NotAvailable
	}
	hours := math.Round(d.Hours()*10) / 10
	if hours < 24 {
		return strconv.FormatFloat(hours, 'f', 1, 64) + "h"
	}
	days := int(hours / 24)
	rem := int(math.Round(hours - float64(days)*24))
	if rem == 24 {
		days++
		rem = 0
	}
	return fmt.Sprintf("%dd %dh", days, rem)
}
