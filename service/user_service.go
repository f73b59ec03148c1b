// Package service holds the user service: it reads and writes users through
// the repository and translates between entities, requests and responses.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Skryldev/user-service/db"
	"github.com/Skryldev/user-service/models"
	"github.com/Skryldev/user-service/repo"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("user not found")

// NotFoundError reports a user id with no stored user.
type NotFoundError struct {
	ID    int64
	Cause error
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("user %d is not found", e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Unwrap() error        { return e.Cause }

// UserService is the application-facing user API.
type UserService interface {
	FindAll(ctx context.Context) ([]models.UserResponse, error)
	FindByID(ctx context.Context, id int64) (*models.UserResponse, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.UserResponse, error)
	Update(ctx context.Context, id int64, req models.CreateUserRequest) (*models.UserResponse, error)
	Delete(ctx context.Context, id int64) error
}

type userService struct {
	db      *db.DB
	newRepo func(db.Querier) repo.UserRepository
	logger  *slog.Logger
}

// Option customises a UserService.
type Option func(*userService)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *userService) { s.logger = l }
}

// WithRepoFactory replaces how repositories are built over the pool or a
// transaction.
func WithRepoFactory(f func(db.Querier) repo.UserRepository) Option {
	return func(s *userService) { s.newRepo = f }
}

// NewUserService returns a UserService backed by database. Reads go straight
// to the pool; every write runs in its own transaction.
func NewUserService(database *db.DB, opts ...Option) UserService {
	s := &userService{
		db:      database,
		newRepo: repo.NewUserRepo,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) FindAll(ctx context.Context) ([]models.UserResponse, error) {
	users, err := s.newRepo(s.db).FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, *buildUserResponse(u))
	}
	s.logger.DebugContext(ctx, "users listed", "count", len(out))
	return out, nil
}

func (s *userService) FindByID(ctx context.Context, id int64) (*models.UserResponse, error) {
	u, err := findUser(ctx, s.newRepo(s.db), id)
	if err != nil {
		return nil, err
	}
	return buildUserResponse(u), nil
}

func (s *userService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.UserResponse, error) {
	var saved *models.User
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		var err error
		saved, err = s.newRepo(tx).Save(ctx, buildUser(req))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", "id", saved.ID)
	return buildUserResponse(saved), nil
}

func (s *userService) Update(ctx context.Context, id int64, req models.CreateUserRequest) (*models.UserResponse, error) {
	var saved *models.User
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		users := s.newRepo(tx)
		u, err := findUser(ctx, users, id)
		if err != nil {
			return err
		}
		mergeUser(u, req)
		saved, err = users.Save(ctx, u)
		if db.IsNotFound(err) {
			// deleted between the read and the write
			return &NotFoundError{ID: id, Cause: err}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user updated", "id", id)
	return buildUserResponse(saved), nil
}

// Delete removes the user. An unknown id is not an error.
func (s *userService) Delete(ctx context.Context, id int64) error {
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		return s.newRepo(tx).DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", "id", id)
	return nil
}

func findUser(ctx context.Context, users repo.UserRepository, id int64) (*models.User, error) {
	u, err := users.FindByID(ctx, id)
	if db.IsNotFound(err) {
		return nil, &NotFoundError{ID: id, Cause: err}
	}
	return u, err
}
