// Command loaddata fills the reference tables (ingredients and tags) from
// fixture files.
//
// Usage:
//
//	loaddata ingredients data/ingredients.csv
//	loaddata ingredients data/ingredients.json
//	loaddata tags data/tags.yaml --db /var/lib/foodgram/foodgram.db
//
// Rows that already exist are skipped, so the command is safe to re-run.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/foodgram/internal/fixtures"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loader holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE once flags are parsed.
type loader struct {
	dbPath  string
	verbose bool
	logger  *slog.Logger
	db      *sqliteRepo.DB
	refs    *service.ReferenceService
}

func newRootCmd() *cobra.Command {
	l := &loader{}

	root := &cobra.Command{
		Use:          "loaddata",
		Short:        "Load Foodgram reference data",
		Long:         `Loads ingredients (CSV or JSON) and tags (YAML) into the Foodgram database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return l.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return l.close()
		},
	}

	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "data/foodgram.db"
	}
	root.PersistentFlags().StringVar(&l.dbPath, "db", defaultDB, "SQLite database path (env DB_PATH)")
	root.PersistentFlags().BoolVarP(&l.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newIngredientsCmd(l), newTagsCmd(l))
	return root
}

func (l *loader) open() error {
	level := slog.LevelInfo
	if l.verbose {
		level = slog.LevelDebug
	}
	l.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := sqliteRepo.New(l.dbPath)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", l.dbPath, err)
	}
	l.db = db
	l.refs = service.NewReferenceService(db, db, l.logger)
	return nil
}

func (l *loader) close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func newIngredientsCmd(l *loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingredients <file>",
		Short: "Load ingredients from a CSV (name,unit) or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f := fixtures.Format(format)
			if f == "" {
				var err error
				if f, err = fixtures.FormatOf(path); err != nil {
					return err
				}
			}

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			items, err := fixtures.ParseIngredients(file, f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			n, err := l.refs.ImportIngredients(cmd.Context(), items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d of %d ingredients from %s\n", n, len(items), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "file format: csv or json (default: from the extension)")
	return cmd
}

func newTagsCmd(l *loader) *cobra.Command {
	return &cobra.Command{
		Use:   "tags <file>",
		Short: "Load tags from a YAML list of {name, slug}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			tags, err := fixtures.ParseTags(file)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			n, err := l.refs.ImportTags(cmd.Context(), tags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d of %d tags from %s\n", n, len(tags), path)
			return nil
		},
	}
}
