package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func main() {
	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== ebrevsmotor migration runner ===\n")

	command := "help"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command != "up" && command != "status" && command != "seed" {
		printUsage()
		if command != "help" {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}
	dialect := strings.ToLower(cfg.Database.Driver)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	printInfo(fmt.Sprintf("Connecting to %s database...", dialect))
	db, err := repository.Connect(ctx, cfg)
	if err != nil {
		printError(fmt.Sprintf("Failed to connect: %v", err))
		os.Exit(1)
	}
	defer db.Close()
	printSuccess("✓ Connected to database\n")

	switch command {
	case "up":
		err = runUp(ctx, db, dialect)
	case "status":
		err = showMigrationStatus(ctx, db, dialect)
	case "seed":
		err = runSeed(ctx, db, dialect)
	}
	if err != nil {
		printError(fmt.Sprintf("%s failed: %v", command, err))
		os.Exit(1)
	}

	printInfo("\n✨ Operation completed successfully!")
}

// runUp applies all pending migrations
func runUp(ctx context.Context, db *sqlx.DB, dialect string) error {
	printInfo("Running pending migrations...\n")

	applied, err := repository.Migrate(ctx, db, dialect)
	for _, m := range applied {
		printSuccess(fmt.Sprintf("  ✓ Migration %03d_%s applied", m.Version, m.Name))
	}
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		printSuccess("✓ Database is up to date")
		return nil
	}
	printSuccess(fmt.Sprintf("\n✓ Successfully applied %d migration(s)", len(applied)))
	return nil
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(ctx context.Context, db *sqlx.DB, dialect string) error {
	printInfo("Migration Status:\n")

	migrations, err := repository.MigrationStatus(ctx, db, dialect)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		printWarning(fmt.Sprintf("No migrations embedded for dialect %s", dialect))
		return nil
	}

	fmt.Printf("%s%-10s %-40s %-12s %-20s%s\n",
		colorBold, "VERSION", "NAME", "STATUS", "APPLIED AT", colorReset)
	fmt.Println(strings.Repeat("-", 85))

	appliedCount := 0
	for _, m := range migrations {
		status, statusColor, appliedAt := "pending", colorYellow, "-"
		if m.Applied {
			appliedCount++
			status, statusColor = "applied", colorGreen
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Printf("%-10s %-40s %s%-12s%s %-20s\n",
			fmt.Sprintf("%03d", m.Version), m.Name, statusColor, status, colorReset, appliedAt)
	}

	fmt.Println(strings.Repeat("-", 85))
	printInfo(fmt.Sprintf("\nSummary: %d/%d migrations applied", appliedCount, len(migrations)))
	return nil
}

// runSeed loads the demo newsletters and subscribers; the schema must be current
func runSeed(ctx context.Context, db *sqlx.DB, dialect string) error {
	migrations, err := repository.MigrationStatus(ctx, db, dialect)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if !m.Applied {
			return fmt.Errorf("migration %03d_%s is pending, run 'up' first", m.Version, m.Name)
		}
	}

	printInfo("Loading seed data...")
	if err := repository.Seed(ctx, db); err != nil {
		return err
	}
	printSuccess("✓ Seed data loaded")
	return nil
}

func printUsage() {
	fmt.Println(colorBold + "Usage:" + colorReset)
	fmt.Println("  go run ./cmd/migrate <command>")
	fmt.Println()
	fmt.Println(colorBold + "Commands:" + colorReset)
	fmt.Println("  up       Apply all pending migrations")
	fmt.Println("  status   Show applied and pending migrations")
	fmt.Println("  seed     Load demo newsletters and subscribers")
	fmt.Println("  help     Show this message")
	fmt.Println()
	fmt.Println(colorBold + "Environment:" + colorReset)
	fmt.Println("  DB_DRIVER=postgres|sqlite, POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DB, SQLITE_PATH")
}

func printInfo(msg string) {
	fmt.Println(colorCyan + msg + colorReset)
}

func printSuccess(msg string) {
	fmt.Println(colorGreen + msg + colorReset)
}

func printError(msg string) {
	fmt.Fprintln(os.Stderr, colorRed+"✗ "+msg+colorReset)
}

func printWarning(msg string) {
	fmt.Println(colorYellow + "⚠ " + msg + colorReset)
}
