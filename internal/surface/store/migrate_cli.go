package store

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand. Output goes to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	fsys, err := MigrationsFS()
	if err != nil {
		return err
	}
	// The schema is left alone until the action runs.
	db, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	printVersion := func() error {
		version, dirty, err := db.MigrateVersion(fsys)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
		return nil
	}
	versionArg := func() (int, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("usage: surface migrate %s <version>", action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid version number: %s", args[1])
		}
		return v, nil
	}

	switch action {
	case "up":
		if err := db.MigrateUp(fsys); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations applied")
		return printVersion()

	case "down":
		if err := db.MigrateDown(fsys); err != nil {
			return err
		}
		fmt.Fprintln(out, "Rolled back one migration")
		return printVersion()

	case "status":
		version, dirty, err := db.MigrateVersion(fsys)
		if err != nil {
			return err
		}
		latest, err := LatestMigrationVersion(fsys)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "=== Migration Status ===")
		fmt.Fprintf(out, "Current version: %d\n", version)
		fmt.Fprintf(out, "Latest available: %d\n", latest)
		fmt.Fprintf(out, "Dirty: %v\n", dirty)
		switch {
		case dirty:
			fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run: surface migrate force <version>")
		case version < latest:
			fmt.Fprintf(out, "Database is %d version(s) behind. Run 'surface migrate up' to update.\n", latest-version)
		default:
			fmt.Fprintln(out, "Database is up to date")
		}
		return nil

	case "version":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := db.MigrateTo(fsys, uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Migrated to version %d\n", v)
		return nil

	case "force":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := db.MigrateForce(fsys, v); err != nil {
			return err
		}
		fmt.Fprintf(out, "Migration version forced to %d\n", v)
		return nil
	}

	PrintMigrateHelp(out)
	return fmt.Errorf("unknown migrate action: %s", action)
}

// PrintMigrateHelp writes the usage of the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Database Migration Commands

Usage: surface migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Roll back one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Options:
  -db <path>      Path to database file (default: surface.db)
`)
}
