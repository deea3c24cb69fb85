// Package dbcli is the fileindex command line.
package dbcli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fileindex/config"
	"fileindex/database"
	"fileindex/logging"
)

// cli carries the settings and logger shared by every command.
type cli struct {
	cfg    config.Config
	envErr error
	logger *slog.Logger
}

// NewRootCmd builds the fileindex command tree. Settings come from
// FILEINDEX_* variables first and flags second.
func NewRootCmd() *cobra.Command {
	a := &cli{cfg: config.Default()}
	a.envErr = a.cfg.FromEnv()

	root := &cobra.Command{
		Use:           "fileindex",
		Short:         "CLI for managing file location indexes",
		Long:          "A Command Line Interface (CLI) for creating databases of B-tree indexes that map file names to their locations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	a.cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		a.createDBCmd(),
		a.databasesCmd(),
		a.createIndexCmd(),
		a.indexesCmd(),
		a.insertCmd(),
		a.findCmd(),
		a.listCmd(),
		a.statsCmd(),
		a.checkCmd(),
		a.treeCmd(),
		a.seedCmd(),
		a.commitCmd(),
		a.snapshotsCmd(),
		a.restoreToCmd(),
		a.serveCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *cli) setup(logOut io.Writer) error {
	if a.envErr != nil {
		return a.envErr
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(logOut, a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *cli) options() database.Options {
	return database.Options{
		Codec:     a.cfg.Codec(),
		CacheSize: a.cfg.CacheSize,
		Logger:    a.logger,
	}
}

func (a *cli) dbPath(dbID string) string {
	return filepath.Join(a.cfg.DataDir, dbID)
}

// withDB loads a database, runs fn and closes it again.
func (a *cli) withDB(dbID string, fn func(*database.Database) error) (err error) {
	db, err := database.LoadDatabase(a.dbPath(dbID), a.options())
	if err != nil {
		return fmt.Errorf("error loading database %q: %w", dbID, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(db)
}

func (a *cli) withIndex(dbID, name string, fn func(*database.Database, *database.Index) error) error {
	return a.withDB(dbID, func(db *database.Database) error {
		ix, err := db.GetIndex(name)
		if err != nil {
			return err
		}
		return fn(db, ix)
	})
}

func commitChanges(ctx context.Context, db *database.Database, message string) error {
	if _, err := db.Commit(ctx, message); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}
	return nil
}
