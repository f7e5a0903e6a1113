// Package main - database migration tool for FleetCheck Engage Hub.
//
// Usage:
//
//	migrate up      apply all pending migrations
//	migrate down    roll back the most recent migration
//	migrate status  show applied and pending migrations
//
// The database is selected with DATABASE_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fleetcheck/engage-hub/internal/infrastructure/persistence/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down|status>")
	}
	command := os.Args[1]

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := postgres.NewConnectionFromURL(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)

	switch command {
	case "up":
		return migrateUp(ctx, migrator)
	case "down":
		return migrateDown(ctx, migrator)
	case "status":
		return migrateStatus(ctx, migrator)
	default:
		return fmt.Errorf("unknown command %q: expected up, down, or status", command)
	}
}

func migrateUp(ctx context.Context, migrator *postgres.Migrator) error {
	fmt.Println("applying pending migrations...")
	if err := migrator.Migrate(ctx); err != nil {
		return err
	}
	return migrateStatus(ctx, migrator)
}

func migrateDown(ctx context.Context, migrator *postgres.Migrator) error {
	fmt.Println("rolling back the most recent migration...")
	if err := migrator.Rollback(ctx); err != nil {
		return err
	}
	return migrateStatus(ctx, migrator)
}

func migrateStatus(ctx context.Context, migrator *postgres.Migrator) error {
	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	applied := 0
	for _, m := range status {
		state := "pending"
		if m.IsApplied {
			state = "applied"
			applied++
		}
		fmt.Printf("  %3d  %-40s %s\n", m.Version, m.Name, state)
	}
	fmt.Printf("%d/%d applied\n", applied, len(status))
	return nil
}
