// Package cli implements the reportctl command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"workscope/auth"
	"workscope/config"
	"workscope/db"
	"workscope/fixtures"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// OpenStore returns the store commands operate on when no fixture file is given.
	// Tests replace it.
	OpenStore func(ctx context.Context) (db.Store, func(), error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for reportctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{OpenStore: openFirestore})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reportctl",
		Short: "Seed and inspect work-order report data",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

func openFirestore(ctx context.Context) (db.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	fs, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() { fs.Close() }, nil
}

// seededMemory loads a fixture file into a fresh memory store.
func seededMemory(ctx context.Context, path string, hasher *auth.Hasher) (*db.MemoryDB, fixtures.Counts, error) {
	f, err := fixtures.Load(path)
	if err != nil {
		return nil, fixtures.Counts{}, err
	}
	mem := db.NewMemoryDB()
	n, err := f.Apply(ctx, mem, hasher)
	if err != nil {
		return nil, n, err
	}
	return mem, n, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
