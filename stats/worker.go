package stats

import (
	"math"
	"sort"

	"workscope/models"
)

// WorkerStats summarizes one worker's reports.
type WorkerStats struct {
	WorkerID          string `json:"worker_id"`
	Name              string `json:"name"`
	Department        string `json:"department"`
	Total             int    `json:"total"`
	Completed         int    `json:"completed"`
	Pending           int    `json:"pending"`
	Efficiency        int    `json:"efficiency"` // completed share, rounded percent
	AvgCompletionTime string `json:"avg_completion_time"`
}

// PerWorker groups reports by worker and ranks workers by efficiency, highest first.
// Ties go to the worker with more reports, then by name. Reports of workers missing
// from workers are left out rather than pooled under an unknown entry.
func PerWorker(reports []models.Report, workers map[string]models.User) []WorkerStats {
	grouped := make(map[string][]models.Report)
	for _, r := range reports {
		if _, known := workers[r.WorkerID]; !known {
			continue
		}
		grouped[r.WorkerID] = append(grouped[r.WorkerID], r)
	}

	out := make([]WorkerStats, 0, len(grouped))
	for id, rs := range grouped {
		w := workers[id]
		ws := WorkerStats{
			WorkerID:          id,
			Name:              w.DisplayName(),
			Department:        w.Department,
			Total:             len(rs),
			AvgCompletionTime: FormatAverage(AverageResolution(rs)),
		}
		for _, r := range rs {
			if r.IsCompleted() {
				ws.Completed++
			}
		}
		ws.Pending = ws.Total - ws.Completed
		ws.Efficiency = int(math.Round(float64(ws.Completed) / float64(ws.Total) * 100))
		out = append(out, ws)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Efficiency != b.Efficiency {
			return a.Efficiency > b.Efficiency
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.WorkerID < b.WorkerID
	})
	return out
}
