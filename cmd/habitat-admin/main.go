// habitat-admin manages principals directly in the habitat database.
//
// Usage:
//
//	habitat-admin [-config path] <command> [flags]
//
// Commands:
//
//	add           create an administrator or tenant
//	set-password  replace a principal's password
//	set-active    activate or deactivate a principal
//	hash-password print an Argon2id hash for a password
//	migrate-status list applied and pending schema migrations
//	migrate-down  roll back the latest schema migrations
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/config"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/database"
	"github.com/LeaderSteve84/habitatT-backend/migrations"
)

const defaultConfigPath = "configs/config.yaml"

// errUsage is returned for malformed command lines; usage has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("habitat-admin", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", envOr("HABITAT_CONFIG", defaultConfigPath), "path to the config file")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return errUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return errUsage
	}
	name, cmdArgs := rest[0], rest[1:]

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		printUsage(stderr)
		return errUsage
	}

	if !cmd.needsDB {
		return cmd.run(ctx, &env{out: stdout, errOut: stderr}, cmdArgs)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// Schema commands inspect or roll back the schema as found.
	if !cmd.schema {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return cmd.run(ctx, &env{
		out:       stdout,
		errOut:    stderr,
		db:        db,
		repo:      auth.NewPrincipalRepository(db.DB),
		minLength: cfg.Security.Reset.MinPasswordLength,
	}, cmdArgs)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: habitat-admin [-config path] <command> [flags]

commands:
  add -role admin|tenant -email address [-inactive]
  set-password -role admin|tenant -email address
  set-active -role admin|tenant -email address -active=true|false
  hash-password
  migrate-status
  migrate-down [-steps n]
`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
