package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"workscope/cache"
	"workscope/db"
	"workscope/filter"
	"workscope/models"
	"workscope/normalize"
	"workscope/reports"
	"workscope/stats"
)

type statsOptions struct {
	admin      string
	file       string
	department string
	date       string
	view       string
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print report statistics as seen by an admin",
		Long: `Resolve the workers visible to an admin, load their reports and print the
dashboard statistics.

With --file the fixtures are loaded into an in-memory store instead of reading
from Firestore.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.admin, "admin", "", "admin user id (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "fixture file to load instead of Firestore")
	cmd.Flags().StringVar(&opts.department, "department", "", "filter by department")
	cmd.Flags().StringVar(&opts.date, "date", "", "filter by date bucket (today|yesterday|last7|last30)")
	cmd.Flags().StringVar(&opts.view, "view", string(models.ViewPending), "page view (pending|completed)")
	cmd.MarkFlagRequired("admin")

	return cmd
}

func runStats(cmd *cobra.Command, rootOpts *RootOptions, opts *statsOptions) error {
	ctx := cmd.Context()

	criteria := filter.Criteria{Department: opts.department, Date: filter.DateBucket(opts.date)}
	if !criteria.Date.Valid() {
		return fmt.Errorf("invalid date bucket %q", opts.date)
	}
	view := models.View(opts.view)
	if !view.Valid() {
		return fmt.Errorf("invalid view %q", opts.view)
	}

	var store db.Store
	if opts.file != "" {
		mem, _, err := seededMemory(ctx, opts.file, nil)
		if err != nil {
			return err
		}
		store = mem
	} else {
		s, closeStore, err := rootOpts.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}

	rec, err := store.GetByID(ctx, models.CollectionUsers, opts.admin)
	if err != nil {
		return fmt.Errorf("admin %s: %w", opts.admin, err)
	}
	service := reports.NewService(store, reports.Options{})
	admin := service.Normalizer().User(*rec)

	state := filter.NewState(filter.DefaultPageSize)
	state.SetView(view)
	state.SetCriteria(criteria)

	dash, err := service.Dashboard(ctx, admin, cache.New(), state)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		return writeJSON(out, dash)
	}
	printDashboard(out, admin, dash)
	if rootOpts.Verbose {
		printAnomalies(cmd.ErrOrStderr(), service.Normalizer().Anomalies())
	}
	return nil
}

func printDashboard(w io.Writer, admin models.User, dash *reports.Dashboard) {
	b := dash.Basic
	fmt.Fprintf(w, "Admin %s (level %d)\n", admin.DisplayName(), admin.AdminLevel)
	if dash.Partial {
		fmt.Fprintln(w, "Warning: some workers could not be resolved; results are partial")
	}
	fmt.Fprintf(w, "Reports:    %d total, %d completed (%s%%), %d pending (%s%%)\n",
		b.Total, b.Completed, b.CompletionRate, b.Pending, b.PendingRate)
	fmt.Fprintf(w, "Avg. time:  %s\n", b.AvgCompletionTime)
	fmt.Fprintf(w, "%s page %d/%d: %d of %d reports\n",
		dash.View, dash.Page.Page, dash.Page.TotalPages, len(dash.Page.Items), dash.Page.TotalItems)

	if len(dash.Workers) == 0 {
		return
	}
	fmt.Fprintln(w, "\nWorkers:")
	for _, ws := range dash.Workers {
		fmt.Fprintf(w, "  %-24s %3d total %3d completed %3d%%  %s\n",
			ws.Name, ws.Total, ws.Completed, ws.Efficiency, ws.AvgCompletionTime)
	}
	printDataset(w, "Departments", dash.Charts.Department)
	printDataset(w, "Priorities", dash.Charts.Priority)
}

func printDataset(w io.Writer, title string, ds stats.Dataset) {
	if len(ds.Labels) == 0 {
		return
	}
	parts := make([]string, len(ds.Labels))
	for i, l := range ds.Labels {
		parts[i] = fmt.Sprintf("%s=%g", l, ds.Values[i])
	}
	fmt.Fprintf(w, "%s: %s\n", title, strings.Join(parts, ", "))
}

func printAnomalies(w io.Writer, a *normalize.Anomalies) {
	for _, kind := range a.Kinds() {
		fmt.Fprintf(w, "anomaly %s: %d\n", kind, a.Count(kind))
	}
}
