package stats

import (
	"sort"
	"strings"
	"time"

	"workscope/models"
)

// Bucket labels that are not taken from the data.
const (
	LabelCompleted  = "Completed"
	LabelPending    = "Pending"
	LabelUnset      = "Unset"
	LabelUnknown    = "Unknown"
	LabelUnassigned = "Unassigned"
)

// TopWorkers is how many workers the efficiency ranking shows.
const TopWorkers = 5

// Palette is cycled through by bucket index.
var Palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#3B82F6",
	"#8B5CF6", "#EC4899", "#14B8A6", "#F97316", "#6B7280",
}

// Color returns the palette color for bucket i.
func Color(i int) string {
	return Palette[i%len(Palette)]
}

// Dataset is a chart series: one label, value and color per bucket.
type Dataset struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
}

func (d *Dataset) add(label string, value float64, colorIndex int) {
	d.Labels = append(d.Labels, label)
	d.Values = append(d.Values, value)
	d.Colors = append(d.Colors, Color(colorIndex))
}

func newDataset() Dataset {
	return Dataset{Labels: []string{}, Values: []float64{}, Colors: []string{}}
}

// Charts bundles every dataset the dashboard draws.
type Charts struct {
	Status     Dataset `json:"status"`
	Priority   Dataset `json:"priority"`
	Department Dataset `json:"department"`
	Company    Dataset `json:"company"`
	Resolution Dataset `json:"resolution"`
	Efficiency Dataset `json:"efficiency"`
}

// BuildCharts computes every dataset for reports.
func BuildCharts(reports []models.Report, workers map[string]models.User, companies map[string]models.Company) Charts {
	return Charts{
		Status:     StatusBreakdown(reports),
		Priority:   PriorityBreakdown(reports),
		Department: DepartmentBreakdown(reports, workers),
		Company:    CompanyBreakdown(reports, companies),
		Resolution: ResolutionHistogram(reports),
		Efficiency: EfficiencyRanking(PerWorker(reports, workers)),
	}
}

// StatusBreakdown always has two buckets, Completed then Pending.
func StatusBreakdown(reports []models.Report) Dataset {
	completed := 0
	for _, r := range reports {
		if r.IsCompleted() {
			completed++
		}
	}
	d := newDataset()
	d.add(LabelCompleted, float64(completed), 0)
	d.add(LabelPending, float64(len(reports)-completed), 1)
	return d
}

// PriorityBreakdown counts High, Medium, Low and Unset, omitting empty buckets. Each
// priority keeps its color whether or not the others are present.
func PriorityBreakdown(reports []models.Report) Dataset {
	order := []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow, models.PriorityUnset}
	counts := make(map[models.Priority]int, len(order))
	for _, r := range reports {
		counts[r.Priority]++
	}
	d := newDataset()
	for i, p := range order {
		if counts[p] == 0 {
			continue
		}
		label := string(p)
		if p == models.PriorityUnset {
			label = LabelUnset
		}
		d.add(label, float64(counts[p]), i)
	}
	return d
}

// DepartmentBreakdown groups reports by their worker's department. The report's own
// department is used only when the worker is unknown or has none.
func DepartmentBreakdown(reports []models.Report, workers map[string]models.User) Dataset {
	counts := make(map[string]int)
	for _, r := range reports {
		dept := ""
		if w, ok := workers[r.WorkerID]; ok {
			dept = strings.TrimSpace(w.Department)
		}
		if dept == "" {
			dept = strings.TrimSpace(r.Department)
		}
		if dept == "" {
			dept = LabelUnassigned
		}
		counts[dept]++
	}
	return countsDataset(counts)
}

// CompanyBreakdown groups reports by company name. Ids without a known company share
// one Unknown bucket.
func CompanyBreakdown(reports []models.Report, companies map[string]models.Company) Dataset {
	counts := make(map[string]int)
	for _, r := range reports {
		label := LabelUnknown
		if c, ok := companies[r.CompanyID]; ok && c.Name != "" {
			label = c.Name
		}
		counts[label]++
	}
	return countsDataset(counts)
}

// countsDataset orders buckets by count, largest first, then by label.
func countsDataset(counts map[string]int) Dataset {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	d := newDataset()
	for i, l := range labels {
		d.add(l, float64(counts[l]), i)
	}
	return d
}

type resolutionBucket struct {
	label string
	upTo  time.Duration // exclusive upper bound; 0 means unbounded
}

var resolutionBuckets = []resolutionBucket{
	{"<1h", time.Hour},
	{"1-4h", 4 * time.Hour},
	{"4-12h", 12 * time.Hour},
	{"12-24h", 24 * time.Hour},
	{"1-3d", 72*time.Hour + 1},
	{">3d", 0},
}

// ResolutionHistogram counts completed reports into six fixed time-to-resolution
// buckets. Reports with misordered timestamps are left out. All buckets are present.
func ResolutionHistogram(reports []models.Report) Dataset {
	counts := make([]int, len(resolutionBuckets))
	for _, r := range reports {
		d, ok := r.ResolutionTime()
		if !ok {
			continue
		}
		for i, b := range resolutionBuckets {
			if b.upTo == 0 || d < b.upTo {
				counts[i]++
				break
			}
		}
	}
	ds := newDataset()
	for i, b := range resolutionBuckets {
		ds.add(b.label, float64(counts[i]), i)
	}
	return ds
}

// EfficiencyRanking shows the efficiency of the TopWorkers workers with the most
// reports.
func EfficiencyRanking(workers []WorkerStats) Dataset {
	ranked := make([]WorkerStats, len(workers))
	copy(ranked, workers)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		if ranked[i].Efficiency != ranked[j].Efficiency {
			return ranked[i].Efficiency > ranked[j].Efficiency
		}
		return ranked[i].WorkerID < ranked[j].WorkerID
	})
	if len(ranked) > TopWorkers {
		ranked = ranked[:TopWorkers]
	}
	d := newDataset()
	for i, w := range ranked {
		d.add(w.Name, float64(w.Efficiency), i)
	}
	return d
}
