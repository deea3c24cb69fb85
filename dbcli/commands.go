package dbcli

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/go-faker/faker/v4"
	"github.com/spf13/cobra"

	"fileindex/btree"
	"fileindex/database"
	"fileindex/server"
)

// Command to create a new database
func (a *cli) createDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-db",
		Short: "Create a new database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbID, err := database.NewDatabaseID()
			if err != nil {
				return err
			}

			db, err := database.NewDatabase(a.dbPath(dbID), dbID, a.options())
			if err != nil {
				return fmt.Errorf("error creating database: %w", err)
			}
			if err := db.Close(); err != nil {
				return fmt.Errorf("error closing database: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Database ID:", dbID)
			return nil
		},
	}
}

func (a *cli) databasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the databases in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := database.ListDatabases(a.cfg.DataDir)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

// Command to create an index in a database
func (a *cli) createIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-index [dbID] [name] [degree]",
		Short: "Create a new index in the specified database",
		Long:  "Creates an empty index. The minimum degree defaults to --degree and must be at least 2.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbID, name := args[0], args[1]

			degree := a.cfg.Degree
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid degree %q: %w", args[2], btree.ErrInvalidDegree)
				}
				degree = n
			}

			return a.withDB(dbID, func(db *database.Database) error {
				if err := db.CreateIndex(name, degree); err != nil {
					return fmt.Errorf("error creating index: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Index '%s' created with degree %d in database '%s'.\n", name, degree, dbID)
				return nil
			})
		},
	}
}

func (a *cli) indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes [dbID]",
		Short: "List the indexes of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *database.Database) error {
				for _, name := range db.ListIndexes() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

// Command to insert a file location into an index
func (a *cli) insertCmd() *cobra.Command {
	var unique bool
	cmd := &cobra.Command{
		Use:   "insert [dbID] [index] [key] [value]",
		Short: "Insert a file name and its location into an index",
		Long:  "Inserts the key into the index and commits. An existing key is overwritten unless --unique is set.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbID, name, key, value := args[0], args[1], args[2], args[3]

			return a.withIndex(dbID, name, func(db *database.Database, ix *database.Index) error {
				verb := "Inserted"
				if unique {
					if err := ix.InsertUnique(key, value); err != nil {
						return err
					}
				} else if !ix.Insert(key, value) {
					verb = "Updated"
				}
				if err := commitChanges(cmd.Context(), db, "insert "+key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s key '%s' with value '%s' in index '%s'.\n", verb, key, value, name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unique, "unique", false, "fail if the key already exists")
	return cmd
}

// Command to find a key in an index
func (a *cli) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find [dbID] [index] [key]",
		Short: "Look up the location stored for a file name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(args[0], args[1], func(_ *database.Database, ix *database.Index) error {
				val, err := ix.Get(args[2])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			})
		},
	}
}

func (a *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dbID] [index]",
		Short: "Print every entry of an index in key order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(args[0], args[1], func(_ *database.Database, ix *database.Index) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, e := range ix.Entries() {
					fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
				}
				return w.Flush()
			})
		},
	}
}

func (a *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [dbID] [index]",
		Short: "Show the shape of an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(args[0], args[1], func(db *database.Database, ix *database.Index) error {
				head, err := db.Head(args[1])
				if err != nil {
					return err
				}
				s := ix.Stats()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "degree:  %d\n", s.Degree)
				fmt.Fprintf(out, "entries: %d\n", s.Entries)
				fmt.Fprintf(out, "nodes:   %d\n", s.Nodes)
				fmt.Fprintf(out, "leaves:  %d\n", s.Leaves)
				fmt.Fprintf(out, "height:  %d\n", s.Height)
				fmt.Fprintf(out, "head:    %s\n", head)
				return nil
			})
		},
	}
}

func (a *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [dbID] [index]",
		Short: "Verify the B-tree invariants of an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(args[0], args[1], func(_ *database.Database, ix *database.Index) error {
				if err := ix.Validate(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Index '%s' is consistent (%d entries).\n", args[1], ix.Len())
				return nil
			})
		},
	}
}

func (a *cli) treeCmd() *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "tree [dbID] [index]",
		Short: "Print the node layout of an index level by level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withIndex(args[0], args[1], func(_ *database.Database, ix *database.Index) error {
				var err error
				ix.View(func(tree *btree.BTree) {
					err = RenderTree(cmd.OutOrStdout(), tree, noColor)
				})
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func (a *cli) seedCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed [dbID] [index]",
		Short: "Fill an index with generated file names",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.New("--count must be positive")
			}
			return a.withIndex(args[0], args[1], func(db *database.Database, ix *database.Index) error {
				inserted := 0
				for range count {
					key := faker.Username() + "/" + faker.Word() + ".dat"
					if ix.Insert(key, "/"+faker.Word()+"/"+faker.UUIDDigit()) {
						inserted++
					}
				}
				if err := commitChanges(cmd.Context(), db, fmt.Sprintf("seed %d", count)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d new keys into index '%s' (%d total).\n", inserted, args[1], ix.Len())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "number of entries to generate")
	return cmd
}

func (a *cli) commitCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit [dbID]",
		Short: "Snapshot every index of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *database.Database) error {
				snaps, err := db.Checkpoint(cmd.Context(), message)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", s.Index, s.ID, s.Digest.Encoded()[:12])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	return cmd
}

func (a *cli) snapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots [dbID] [index]",
		Short: "List snapshots, optionally for one index",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 2 {
				name = args[1]
			}
			return a.withDB(args[0], func(db *database.Database) error {
				snaps, err := db.Snapshots(name)
				if err != nil {
					return err
				}
				if len(snaps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No snapshots found.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tID\tDIGEST\tENTRIES\tTIMESTAMP\tMESSAGE")
				for _, s := range snaps {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
						s.Index, s.ID, s.Digest.Encoded()[:12], s.Entries, s.Timestamp, s.Message)
				}
				return w.Flush()
			})
		},
	}
}

func (a *cli) restoreToCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore-to [dbID] [index] [ref]",
		Short: "Restore an index to a snapshot",
		Long:  "Replaces the contents of an index with a snapshot. ref is a snapshot ID, a digest or a digest prefix.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *database.Database) error {
				if err := db.Restore(args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored index '%s' to %s\n", args[1], args[2])
				return nil
			})
		},
	}
}

func (a *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, a.cfg, a.logger)
		},
	}
}
