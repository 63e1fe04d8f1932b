package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createUser(t, repo, "alice", "p1", RoleInstaller)
	if !strings.HasPrefix(u.ID, "usr-") {
		t.Errorf("ID = %q, want usr- prefix", u.ID)
	}
	if u.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want username fallback", u.DisplayName)
	}

	byID, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Username != "alice" || byID.Role != RoleInstaller || !byID.IsActive {
		t.Errorf("GetByID() = %+v", byID)
	}
	if byID.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if byName.ID != u.ID || byName.PasswordHash != u.PasswordHash {
		t.Errorf("GetByUsername() = %+v, want %+v", byName, u)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	createUser(t, repo, "bob", "p1", RoleGuest)

	err := repo.Create(context.Background(), &User{Username: "bob", PasswordHash: "x", IsActive: true})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_EdgeBinding(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	insertEdge(t, db, "edge0")

	u := &User{Username: "edge0", PasswordHash: "x", Role: RoleOwner, EdgeID: "edge0", IsActive: true}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.EdgeID != "edge0" {
		t.Errorf("EdgeID = %q, want edge0", got.EdgeID)
	}

	err = repo.Create(ctx, &User{Username: "ghost", PasswordHash: "x", EdgeID: "edge-missing", IsActive: true})
	if !errors.Is(err, ErrUnknownEdge) {
		t.Errorf("Create(unknown edge) error = %v, want ErrUnknownEdge", err)
	}
}

func TestUserRepository_InvalidUsername(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	if err := repo.Create(context.Background(), &User{Username: "bad name"}); err == nil {
		t.Error("Create() expected error for invalid username")
	}
}

func TestUserRepository_ListActiveOrderAndCount(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	createUser(t, repo, "first", "p1", RoleGuest)
	createUser(t, repo, "second", "p2", RoleGuest)
	inactive := &User{Username: "disabled", PasswordHash: "x", IsActive: false}
	if err := repo.Create(ctx, inactive); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	createUser(t, repo, "third", "p3", RoleGuest)

	users, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	if strings.Join(names, ",") != "first,second,third" {
		t.Errorf("ListActive() order = %v, want first,second,third", names)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 4 {
		t.Errorf("Count() = %d, want 4", count)
	}
}
