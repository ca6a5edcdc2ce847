package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalRepository_CreateAndGetByEmail(t *testing.T) {
	db := testDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	p := &Principal{
		Role:         RoleTenant,
		Email:        "  Jane.Doe@Example.COM ",
		PasswordHash: "$argon2id$placeholder",
		Active:       true,
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ID == "" {
		t.Fatal("Create() should generate an ID")
	}
	if p.Email != "jane.doe@example.com" {
		t.Errorf("Email = %q, want normalised", p.Email)
	}

	got, err := repo.GetByEmail(ctx, RoleTenant, "JANE.DOE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}
	if got.Role != RoleTenant {
		t.Errorf("Role = %q, want %q", got.Role, RoleTenant)
	}
	if !got.Active {
		t.Error("Active should be true")
	}
	if got.PasswordHash != "$argon2id$placeholder" {
		t.Error("PasswordHash should be populated")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestPrincipalRepository_EmailUniquePerRole(t *testing.T) {
	db := testDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	first := &Principal{Role: RoleTenant, Email: "a@x.com", PasswordHash: "h", Active: true}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := &Principal{Role: RoleTenant, Email: "A@X.com", PasswordHash: "h", Active: true}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrPrincipalExists) {
		t.Errorf("Create() duplicate error = %v, want ErrPrincipalExists", err)
	}

	// Same email under the other role is a different principal.
	admin := &Principal{Role: RoleAdmin, Email: "a@x.com", PasswordHash: "h", Active: true}
	if err := repo.Create(ctx, admin); err != nil {
		t.Errorf("Create() admin with tenant email error = %v", err)
	}
}

func TestPrincipalRepository_RejectsUnknownRole(t *testing.T) {
	db := testDB(t)
	repo := NewPrincipalRepository(db)

	err := repo.Create(context.Background(), &Principal{Role: "landlord", Email: "l@x.com", PasswordHash: "h"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Create() error = %v, want ErrValidation", err)
	}
}

func TestPrincipalRepository_GetByEmail_WrongRole(t *testing.T) {
	db := testDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &Principal{Role: RoleAdmin, Email: "boss@x.com", PasswordHash: "h", Active: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.GetByEmail(ctx, RoleTenant, "boss@x.com"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrPrincipalNotFound", err)
	}
}

func TestPrincipalRepository_UpdatePasswordHash(t *testing.T) {
	db := testDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &Principal{Role: RoleTenant, Email: "t@x.com", PasswordHash: "old", Active: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdatePasswordHash(ctx, RoleTenant, "T@x.com", "new"); err != nil {
		t.Fatalf("UpdatePasswordHash() error = %v", err)
	}

	got, err := repo.GetByEmail(ctx, RoleTenant, "t@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.PasswordHash != "new" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "new")
	}

	if err := repo.UpdatePasswordHash(ctx, RoleTenant, "ghost@x.com", "new"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("UpdatePasswordHash() unknown error = %v, want ErrPrincipalNotFound", err)
	}
}

func TestPrincipalRepository_SetActiveAndCount(t *testing.T) {
	db := testDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	for _, email := range []string{"one@x.com", "two@x.com"} {
		if err := repo.Create(ctx, &Principal{Role: RoleTenant, Email: email, PasswordHash: "h", Active: true}); err != nil {
			t.Fatalf("Create(%s) error = %v", email, err)
		}
	}

	count, err := repo.Count(ctx, RoleTenant)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count(tenant) = %d, want 2", count)
	}
	if count, _ := repo.Count(ctx, RoleAdmin); count != 0 {
		t.Errorf("Count(admin) = %d, want 0", count)
	}

	if err := repo.SetActive(ctx, RoleTenant, "one@x.com", false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	got, err := repo.GetByEmail(ctx, RoleTenant, "one@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Active {
		t.Error("Active should be false after SetActive(false)")
	}
}

func TestPrincipalRepository_PersistenceFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewPrincipalRepository(db)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery(`SELECT .* FROM principals WHERE role = \? AND email = \?`).
		WithArgs("tenant", "a@x.com").
		WillReturnError(boom)

	_, err = repo.GetByEmail(context.Background(), RoleTenant, "A@x.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPrincipalNotFound)

	mock.ExpectExec(`UPDATE principals SET password_hash`).
		WithArgs("h", sqlmock.AnyArg(), "tenant", "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdatePasswordHash(context.Background(), RoleTenant, "a@x.com", "h")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
