package repo_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/Skryldev/user-service/db"
	"github.com/Skryldev/user-service/migrations"
	"github.com/Skryldev/user-service/models"
	"github.com/Skryldev/user-service/repo"
	_ "github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixture
// ─────────────────────────────────────────────────────────────────────────────

func newTestRepo(t *testing.T) (repo.UserRepository, *db.DB) {
	t.Helper()

	database, err := db.Open(db.Config{
		DSN:          ":memory:",
		DriverName:   "sqlite3",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(context.Background(), database); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return repo.NewUserRepo(database), database
}

func alice() *models.User {
	return &models.User{
		Login:      "alice",
		Age:        31,
		FirstName:  "Alice",
		MiddleName: "M",
		LastName:   "Smith",
		Address:    &models.Address{City: "Paris", Building: "12", Street: "Rue de Rivoli"},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Save: insert
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Save_Insert(t *testing.T) {
	r, _ := newTestRepo(t)

	u, err := r.Save(context.Background(), alice())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if u.Login != "alice" || u.Age != 31 || u.LastName != "Smith" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.Address == nil || u.Address.Street != "Rue de Rivoli" {
		t.Fatalf("unexpected address: %+v", u.Address)
	}
}

func TestUserRepo_Save_DuplicateLoginAccepted(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := r.Save(ctx, alice())
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := r.Save(ctx, alice())
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %d", first.ID)
	}
}

func TestUserRepo_Save_WithoutAddress(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	u := alice()
	u.Address = nil
	saved, err := r.Save(ctx, u)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	fetched, err := r.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched.Address != nil {
		t.Fatalf("expected no address, got %+v", fetched.Address)
	}
}

func TestUserRepo_Save_EmptyAddressStaysPresent(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	u := alice()
	u.Address = &models.Address{}
	saved, err := r.Save(ctx, u)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	fetched, err := r.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched.Address == nil {
		t.Fatal("expected an empty address, got none")
	}
	if *fetched.Address != (models.Address{}) {
		t.Fatalf("expected zero address, got %+v", fetched.Address)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Save: update
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_Save_Update(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	u, _ := r.Save(ctx, alice())

	u.FirstName = "Alicia"
	u.Address = nil
	updated, err := r.Save(ctx, u)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != u.ID {
		t.Fatalf("id changed: %d -> %d", u.ID, updated.ID)
	}
	if updated.FirstName != "Alicia" || updated.LastName != "Smith" {
		t.Fatalf("unexpected user: %+v", updated)
	}
	if updated.Address != nil {
		t.Fatalf("expected address removed, got %+v", updated.Address)
	}
}

func TestUserRepo_Save_UpdateMissingRow(t *testing.T) {
	r, _ := newTestRepo(t)

	u := alice()
	u.ID = 4242
	_, err := r.Save(context.Background(), u)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// FindByID / FindAll / Count
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_FindByID_NotFound(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.FindByID(context.Background(), 99999)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepo_FindAll(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	empty, err := r.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty store, got %d", len(empty))
	}

	var ids []int64
	for _, login := range []string{"a", "b", "c"} {
		u := alice()
		u.Login = login
		saved, err := r.Save(ctx, u)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		ids = append(ids, saved.ID)
	}

	all, err := r.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	for i, u := range all {
		if u.ID != ids[i] {
			t.Fatalf("position %d: expected id %d, got %d", i, ids[i], u.ID)
		}
	}

	n, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DeleteByID
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_DeleteByID(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	u, _ := r.Save(ctx, alice())

	if err := r.DeleteByID(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.FindByID(ctx, u.ID); !db.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestUserRepo_DeleteByID_MissingIsNoop(t *testing.T) {
	r, _ := newTestRepo(t)
	if err := r.DeleteByID(context.Background(), 99999); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepo_InsideTransaction_Rollback(t *testing.T) {
	r, database := newTestRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := database.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := repo.NewUserRepo(tx).Save(ctx, alice()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	n, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback to discard the insert, got %d rows", n)
	}
}

func TestUserRepo_Save_UpdateTouchesOnlyItsRow(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	first, _ := r.Save(ctx, alice())
	second, _ := r.Save(ctx, alice())

	// A street that spells out another user's id must not select that row.
	second.Login = "bob"
	second.Address = &models.Address{Street: strconv.FormatInt(first.ID, 10)}
	updated, err := r.Save(ctx, second)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != second.ID || updated.Login != "bob" {
		t.Fatalf("unexpected user: %+v", updated)
	}

	untouched, err := r.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find first: %v", err)
	}
	if untouched.Login != "alice" || untouched.Age != 31 || untouched.Address == nil || untouched.Address.Street != "Rue de Rivoli" {
		t.Fatalf("first user was modified: %+v", untouched)
	}
}

func TestUserRepo_Save_NoAddressStoresNulls(t *testing.T) {
	r, database := newTestRepo(t)
	ctx := context.Background()

	u := alice()
	u.Address = nil
	saved, err := r.Save(ctx, u)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var nulls int
	err = database.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE id = $1 AND address_city IS NULL AND address_building IS NULL AND address_street IS NULL`,
		saved.ID).Scan(&nulls)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if nulls != 1 {
		t.Fatal("expected NULL address columns for a user without address")
	}
}
