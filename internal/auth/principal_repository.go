package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// PrincipalRepository is the persistence collaborator behind CredentialStore.
// Lookups are keyed by (role, normalised email).
type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByEmail(ctx context.Context, role Role, email string) (*Principal, error)
	UpdatePasswordHash(ctx context.Context, role Role, email, passwordHash string) error
	SetActive(ctx context.Context, role Role, email string, active bool) error
	Count(ctx context.Context, role Role) (int, error)
}

// SQLitePrincipalRepository implements PrincipalRepository using SQLite.
type SQLitePrincipalRepository struct {
	db *sql.DB
}

// NewPrincipalRepository creates a new SQLite-backed principal repository.
func NewPrincipalRepository(db *sql.DB) *SQLitePrincipalRepository {
	return &SQLitePrincipalRepository{db: db}
}

const principalColumns = "id, role, email, password_hash, active, created_at, updated_at"

// Create inserts a new principal. The ID is generated if empty and the
// email is normalised before storage.
func (r *SQLitePrincipalRepository) Create(ctx context.Context, p *Principal) error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, p.Role)
	}
	if p.ID == "" {
		p.ID = string(p.Role)[:3] + "-" + uuid.NewString()[:8]
	}
	p.Email = NormalizeEmail(p.Email)

	now := time.Now().UTC().Format(time.RFC3339)
	p.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO principals (`+principalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Role), p.Email, p.PasswordHash, boolToInt(p.Active), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPrincipalExists
		}
		return fmt.Errorf("creating principal: %w", err)
	}
	return nil
}

// GetByEmail retrieves the principal with the given role and email.
func (r *SQLitePrincipalRepository) GetByEmail(ctx context.Context, role Role, email string) (*Principal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE role = ? AND email = ?`,
		string(role), NormalizeEmail(email),
	)
	return scanPrincipal(row)
}

// UpdatePasswordHash overwrites the stored hash.
func (r *SQLitePrincipalRepository) UpdatePasswordHash(ctx context.Context, role Role, email, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE principals SET password_hash = ?, updated_at = ? WHERE role = ? AND email = ?`,
		passwordHash, time.Now().UTC().Format(time.RFC3339), string(role), NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireOneRow(result)
}

// SetActive flips the active flag.
func (r *SQLitePrincipalRepository) SetActive(ctx context.Context, role Role, email string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE principals SET active = ?, updated_at = ? WHERE role = ? AND email = ?`,
		boolToInt(active), time.Now().UTC().Format(time.RFC3339), string(role), NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("updating active flag: %w", err)
	}
	return requireOneRow(result)
}

// Count returns the number of principals with the given role.
func (r *SQLitePrincipalRepository) Count(ctx context.Context, role Role) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM principals WHERE role = ?", string(role),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting principals: %w", err)
	}
	return count, nil
}

func requireOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var p Principal
	var role string
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &role, &p.Email, &p.PasswordHash, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("scanning principal: %w", err)
	}

	p.Role = Role(role)
	p.Active = active != 0
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
