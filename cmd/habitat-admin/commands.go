package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/database"
	"github.com/LeaderSteve84/habitatT-backend/migrations"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinFD is the descriptor passwords are read from.
var stdinFD = func() int { return int(os.Stdin.Fd()) }

// env carries what a command needs. db and repo are nil for commands that
// do not touch the database.
type env struct {
	out       io.Writer
	errOut    io.Writer
	db        *database.DB
	repo      auth.PrincipalRepository
	minLength int
}

// command describes a subcommand. Schema commands get the database without
// the automatic upgrade every other database command runs first.
type command struct {
	needsDB bool
	schema  bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"add":            {needsDB: true, run: cmdAdd},
	"set-password":   {needsDB: true, run: cmdSetPassword},
	"set-active":     {needsDB: true, run: cmdSetActive},
	"hash-password":  {needsDB: false, run: cmdHashPassword},
	"migrate-status": {needsDB: true, schema: true, run: cmdMigrateStatus},
	"migrate-down":   {needsDB: true, schema: true, run: cmdMigrateDown},
}

// principalFlags registers the -role and -email flags shared by every
// database command.
func principalFlags(fs *flag.FlagSet) (role, email *string) {
	role = fs.String("role", string(auth.RoleTenant), "principal role (admin or tenant)")
	email = fs.String("email", "", "principal email address")
	return role, email
}

func parsePrincipal(fs *flag.FlagSet, roleFlag, emailFlag string) (auth.Role, string, error) {
	role, err := auth.ParseRole(roleFlag)
	if err != nil {
		return "", "", err
	}
	email := auth.NormalizeEmail(emailFlag)
	if email == "" {
		fs.Usage()
		return "", "", errUsage
	}
	return role, email, nil
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("add", e)
	roleFlag, emailFlag := principalFlags(fs)
	inactive := fs.Bool("inactive", false, "create the principal deactivated")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	role, email, err := parsePrincipal(fs, *roleFlag, *emailFlag)
	if err != nil {
		return err
	}

	password, err := promptNewPassword(e)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	p := &auth.Principal{
		Role:         role,
		Email:        email,
		PasswordHash: hash,
		Active:       !*inactive,
	}
	if err := e.repo.Create(ctx, p); err != nil {
		if errors.Is(err, auth.ErrPrincipalExists) {
			return fmt.Errorf("%s %s already exists", role, email)
		}
		return err
	}

	fmt.Fprintf(e.out, "created %s %s (%s)\n", role, email, p.ID)
	return nil
}

func cmdSetPassword(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("set-password", e)
	roleFlag, emailFlag := principalFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	role, email, err := parsePrincipal(fs, *roleFlag, *emailFlag)
	if err != nil {
		return err
	}

	if _, err := e.repo.GetByEmail(ctx, role, email); err != nil {
		return fmt.Errorf("%s %s: %w", role, email, err)
	}

	password, err := promptNewPassword(e)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := e.repo.UpdatePasswordHash(ctx, role, email, hash); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "password updated for %s %s\n", role, email)
	return nil
}

func cmdSetActive(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("set-active", e)
	roleFlag, emailFlag := principalFlags(fs)
	active := fs.Bool("active", true, "whether the principal may log in")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	role, email, err := parsePrincipal(fs, *roleFlag, *emailFlag)
	if err != nil {
		return err
	}

	if err := e.repo.SetActive(ctx, role, email, *active); err != nil {
		return fmt.Errorf("%s %s: %w", role, email, err)
	}

	state := "deactivated"
	if *active {
		state = "activated"
	}
	fmt.Fprintf(e.out, "%s %s %s\n", role, email, state)
	return nil
}

func cmdHashPassword(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("hash-password", e)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	password, err := promptNewPassword(e)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, hash)
	return nil
}

func cmdMigrateStatus(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("migrate-status", e)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	applied, pending, err := e.db.GetMigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(e.out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(e.out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// cmdMigrateDown rolls back the newest applied migrations, one transaction
// each. The server upgrades the schema again on its next start.
func cmdMigrateDown(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("migrate-down", e)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *steps < 1 {
		fs.Usage()
		return errUsage
	}

	for range *steps {
		applied, _, err := e.db.GetMigrationStatus(ctx, migrations.FS)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(e.out, "no migrations to roll back")
			return nil
		}
		latest := applied[len(applied)-1].Version
		if err := e.db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back %s: %w", latest, err)
		}
		fmt.Fprintf(e.out, "rolled back %s\n", latest)
	}
	return nil
}

// promptNewPassword reads a password and its confirmation without echo.
func promptNewPassword(e *env) (string, error) {
	first, err := promptPassword(e.errOut, "New password: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassword(e.errOut, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", auth.ErrPasswordMismatch
	}
	if first == "" {
		return "", fmt.Errorf("%w: password must not be empty", auth.ErrValidation)
	}
	if len(first) < e.minLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", auth.ErrValidation, e.minLength)
	}
	return first, nil
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	pw, err := readPassword(stdinFD())
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
