package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/hydroglacier/glacierfrac/internal/log"
	"github.com/hydroglacier/glacierfrac/internal/store"
	"github.com/hydroglacier/glacierfrac/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbPath        = flag.String("db", "", "Path to the run ledger database")
		command       = flag.String("command", "status", "Command: up, down, to, version, status, runs")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		debug         = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -db flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	if *command == "runs" {
		if err := listRuns(ctx, *dbPath); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping ledger: %v", err)
	}

	migrator := migrate.NewMigrator(db, store.Migrations(), log.GetSugaredLogger())

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down":
		err = withTarget(ctx, *targetVersion, migrator.MigrateDown)
	case "to":
		err = withTarget(ctx, *targetVersion, migrator.MigrateTo)
	case "version":
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(ctx, migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Ledger command failed: %v", err)
	}
}

func withTarget(ctx context.Context, target string, fn func(context.Context, int) error) error {
	if target == "" {
		return fmt.Errorf("-target flag is required for this command")
	}
	v, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("invalid target version: %w", err)
	}
	return fn(ctx, v)
}

func listRuns(ctx context.Context, path string) error {
	s, err := store.Open(ctx, path, log.GetSugaredLogger())
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s\t%s\t%d-%d\tskipped=%d\n", r.ID, r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"), r.FirstYear, r.LastYear, r.SkippedCount)
	}
	return nil
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))
	for _, migration := range pending {
		fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
	}
	return nil
}

func showHelp() {
	fmt.Println("glacierfrac run ledger tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  glacierfrac-ledger -db ledger.db [-command status] [-target N]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending schema migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current schema version")
	fmt.Println("  status             Show schema status (default)")
	fmt.Println("  runs               List recorded pipeline runs, newest first")
}
