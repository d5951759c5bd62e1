package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/fdg312/nutri-plans/internal/config"
	"github.com/fdg312/nutri-plans/internal/dbmigrate"
	"github.com/fdg312/nutri-plans/internal/seed"
	"github.com/fdg312/nutri-plans/internal/storage/postgres"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Dir           string
	RequireDirect bool
}

// NewRootCommand creates the root command for the migrate tool.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations and catalog seeding",
		Long: `Apply goose migrations to the plans database and load catalog fixtures.

The database URL is resolved from DATABASE_URL_DIRECT, DATABASE_URL and
DATABASE_URL_POOLED, in that order.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", dbmigrate.DefaultMigrationsDir, "migrations directory")
	cmd.PersistentFlags().BoolVar(&opts.RequireDirect, "require-direct", false, "only accept DATABASE_URL_DIRECT")

	cmd.AddCommand(newGooseCommand(opts, "up", "Apply all pending migrations"))
	cmd.AddCommand(newGooseCommand(opts, "down", "Roll back the latest migration"))
	cmd.AddCommand(newGooseCommand(opts, "status", "Print migration status"))
	cmd.AddCommand(newGooseCommand(opts, "version", "Print the current schema version"))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func newGooseCommand(opts *RootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := resolveURL(opts)
			if err != nil {
				return err
			}
			log.Printf("migrate: command=%s dir=%s", name, opts.Dir)
			if err := dbmigrate.Run(cmd.Context(), name, dbURL, opts.Dir); err != nil {
				return err
			}
			log.Printf("migrate: %s completed successfully", name)
			return nil
		},
	}
}

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	File   string
	DryRun bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load recipes and patient links from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "seed/catalog.yaml", "seed file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the file without writing")

	return cmd
}

func runSeed(cmd *cobra.Command, rootOpts *RootOptions, opts *SeedOptions) error {
	f, err := seed.Load(opts.File)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.DryRun {
		fmt.Fprintf(out, "seed: %s is valid (recipes=%d patients=%d)\n", opts.File, len(f.Recipes), len(f.Patients))
		return nil
	}

	dbURL, err := resolveURL(rootOpts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := postgres.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer store.Close()

	res, err := seed.Apply(ctx, store.GetRecipesStorage(), store.GetPatientsStorage(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seed: applied %s (recipes=%d patients=%d)\n", opts.File, res.Recipes, res.Patients)
	return nil
}

func resolveURL(opts *RootOptions) (string, error) {
	cfg := config.Load()
	dbURL, source, warning, err := dbmigrate.SelectDatabaseURL(cfg, opts.RequireDirect)
	if err != nil {
		return "", err
	}
	if warning != "" {
		log.Printf("WARN migrate: %s", warning)
	}
	log.Printf("migrate: using=%s", source)
	return dbURL, nil
}
