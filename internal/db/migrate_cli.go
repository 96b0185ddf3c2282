package db

import (
	"errors"
	"fmt"
	"io"
)

// ErrMigrateUsage is returned when the migrate subcommand gets no or an
// unknown action.
var ErrMigrateUsage = errors.New("usage: beaconradar -archive <path> migrate up|down|status")

// RunMigrateCommand runs the migrate subcommand against the archive at path.
// The schema is left alone until the action runs, so "down" really steps
// back one version from where the file is.
func RunMigrateCommand(w io.Writer, args []string, path string) error {
	if len(args) < 1 {
		return ErrMigrateUsage
	}
	if path == "" {
		return errors.New("migrate needs an archive path")
	}

	action := args[0]
	switch action {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown migrate action %q: %w", action, ErrMigrateUsage)
	}

	database, err := openDB(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(w, "all migrations applied")
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(w, "rolled back one migration")
	}
	return printMigrateStatus(w, database)
}

func printMigrateStatus(w io.Writer, database *DB) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "version: %d (latest %d, dirty: %v)\n", version, latest, dirty)
	if dirty {
		fmt.Fprintln(w, "a migration failed part way; inspect the archive before retrying")
	}
	return nil
}
