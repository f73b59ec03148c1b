package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Skryldev/user-service/db"
	"github.com/Skryldev/user-service/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository is the persistence contract the user service relies on.
type UserRepository interface {
	FindAll(ctx context.Context) ([]*models.User, error)
	// FindByID returns db.ErrNotFound when no user has the id.
	FindByID(ctx context.Context, id int64) (*models.User, error)
	// Save inserts u when u.ID is zero and updates the row otherwise. The
	// returned user carries the store-assigned id.
	Save(ctx context.Context, u *models.User) (*models.User, error)
	// DeleteByID is a no-op for an unknown id.
	DeleteByID(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// userRepo is the SQL implementation backed by a db.Querier.
type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────────────────────

// Placeholders are numbered in the order they appear: SQLite binds $N by
// first occurrence, not by N.

const userColumns = `id, login, age, first_name, middle_name, last_name,
		has_address, address_city, address_building, address_street`

const (
	sqlInsertUser = `
		INSERT INTO users (login, age, first_name, middle_name, last_name,
			has_address, address_city, address_building, address_street)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	sqlUpdateUser = `
		UPDATE users
		SET    login = $1, age = $2, first_name = $3, middle_name = $4, last_name = $5,
		       has_address = $6, address_city = $7, address_building = $8, address_street = $9
		WHERE  id = $10
		RETURNING ` + userColumns

	sqlGetUserByID = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  id = $1`

	sqlListUsers = `
		SELECT ` + userColumns + `
		FROM   users
		ORDER  BY id`

	sqlDeleteUser = `
		DELETE FROM users WHERE id = $1`

	sqlCountUsers = `
		SELECT COUNT(*) FROM users`
)

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

func (r *userRepo) FindAll(ctx context.Context) ([]*models.User, error) {
	rows, err := r.q.Query(ctx, sqlListUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo/user: iterate: %w", err)
	}
	return users, nil
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.q.QueryRow(ctx, sqlGetUserByID, id))
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountUsers).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

func (r *userRepo) Save(ctx context.Context, u *models.User) (*models.User, error) {
	hasAddress, city, building, street := addressColumns(u.Address)
	if u.ID == 0 {
		return scanUser(r.q.QueryRow(ctx, sqlInsertUser,
			u.Login, u.Age, u.FirstName, u.MiddleName, u.LastName,
			hasAddress, city, building, street,
		))
	}
	return scanUser(r.q.QueryRow(ctx, sqlUpdateUser,
		u.Login, u.Age, u.FirstName, u.MiddleName, u.LastName,
		hasAddress, city, building, street,
		u.ID,
	))
}

func (r *userRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.q.Exec(ctx, sqlDeleteUser, id)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Column mapping
// ─────────────────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

// scanUser is the single place that knows the column order of userColumns.
func scanUser(s scanner) (*models.User, error) {
	var (
		u                      models.User
		hasAddress             bool
		city, building, street sql.NullString
	)
	err := s.Scan(
		&u.ID, &u.Login, &u.Age, &u.FirstName, &u.MiddleName, &u.LastName,
		&hasAddress, &city, &building, &street,
	)
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	if hasAddress {
		u.Address = &models.Address{
			City:     city.String,
			Building: building.String,
			Street:   street.String,
		}
	}
	return &u, nil
}

// addressColumns flattens a into its row columns. The address columns are
// NULL exactly when the user has no address.
func addressColumns(a *models.Address) (hasAddress bool, city, building, street sql.NullString) {
	if a == nil {
		return false, city, building, street
	}
	return true,
		sql.NullString{String: a.City, Valid: true},
		sql.NullString{String: a.Building, Valid: true},
		sql.NullString{String: a.Street, Valid: true}
}

var _ UserRepository = (*userRepo)(nil)
