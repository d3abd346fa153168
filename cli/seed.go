package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"workscope/auth"
	"workscope/fixtures"
)

type seedOptions struct {
	file   string
	dryRun bool
	cost   int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, companies and reports from a YAML fixture file",
		Long: `Load users, companies and reports from a YAML fixture file into the
configured Firestore project. Passwords in the file are stored as bcrypt hashes.

With --dry-run the fixtures are validated and applied to an in-memory store only.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "fixture file (required)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate without writing to Firestore")
	cmd.Flags().IntVar(&opts.cost, "bcrypt-cost", auth.DefaultCost, "bcrypt cost for seeded passwords")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, rootOpts *RootOptions, opts *seedOptions) error {
	ctx := cmd.Context()
	hasher := auth.NewHasher(opts.cost)

	var counts fixtures.Counts
	if opts.dryRun {
		_, n, err := seededMemory(ctx, opts.file, hasher)
		if err != nil {
			return err
		}
		counts = n
	} else {
		f, err := fixtures.Load(opts.file)
		if err != nil {
			return err
		}
		store, closeStore, err := rootOpts.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		counts, err = f.Apply(ctx, store, hasher)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		return writeJSON(out, map[string]interface{}{
			"dry_run":   opts.dryRun,
			"companies": counts.Companies,
			"users":     counts.Users,
			"passwords": counts.Passwords,
			"reports":   counts.Reports,
		})
	}

	verb := "Seeded"
	if opts.dryRun {
		verb = "Validated"
	}
	fmt.Fprintf(out, "%s %d companies, %d users (%d passwords), %d reports\n",
		verb, counts.Companies, counts.Users, counts.Passwords, counts.Reports)
	return nil
}
