package services

import (
	"context"
	"fmt"
	"strings"

	"contabilidad/internal/auth"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
	"contabilidad/internal/storage"
)

type UserService struct {
	store Store
}

func NewUserService(store Store) *UserService {
	return &UserService{store: store}
}

// Register creates an account and seeds its default tags in the same
// transaction.
func (s *UserService) Register(ctx context.Context, username, email, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := core.ValidateRegistration(username, email, password); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}

	var user storage.User
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		if n, err := q.CountUsersByUsername(ctx, username); err != nil {
			return err
		} else if n > 0 {
			return core.Invalid("username", core.ErrUsernameTaken)
		}
		if n, err := q.CountUsersByEmail(ctx, email); err != nil {
			return err
		} else if n > 0 {
			return core.Invalid("email", core.ErrEmailTaken)
		}

		user, err = q.CreateUser(ctx, storage.CreateUserParams{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
		})
		if storage.IsUniqueViolation(err) {
			return core.Invalid("username", core.ErrUsernameTaken)
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		_, err = seedDefaultTags(ctx, q, user.ID)
		return err
	})
	if err != nil {
		return core.User{}, err
	}

	log.FromContext(ctx).WithComponent(log.ComponentUsers).InfoContext(ctx, "User registered",
		log.FieldUserID, user.ID, log.FieldOperation, log.OpRegister)
	return userFromRow(user), nil
}

// Authenticate accepts a username or an email as login. Unknown logins and
// wrong passwords both return core.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (core.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return core.User{}, core.ErrInvalidCredentials
	}
	row, err := s.store.Queries().GetUserByLogin(ctx, login)
	if storage.IsNoRows(err) && strings.Contains(login, "@") {
		row, err = s.store.Queries().GetUserByLogin(ctx, strings.ToLower(login))
	}
	if storage.IsNoRows(err) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := auth.CheckPassword(row.PasswordHash, password)
	if err != nil {
		return core.User{}, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		log.FromContext(ctx).WithComponent(log.ComponentAuth).WarnContext(ctx, "Failed login",
			log.FieldUserID, row.ID, log.FieldOperation, log.OpLogin)
		return core.User{}, core.ErrInvalidCredentials
	}
	return userFromRow(row), nil
}

func (s *UserService) Get(ctx context.Context, id int64) (core.User, error) {
	row, err := s.store.Queries().GetUser(ctx, id)
	if err != nil {
		return core.User{}, notFound(err)
	}
	return userFromRow(row), nil
}

// ChangePassword requires the current password.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	row, err := s.store.Queries().GetUser(ctx, id)
	if err != nil {
		return notFound(err)
	}
	ok, err := auth.CheckPassword(row.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return core.ErrInvalidCredentials
	}
	if err := core.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	n, err := s.store.Queries().UpdateUserPassword(ctx, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete removes the account and, through cascades, everything it owns.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	n, err := s.store.Queries().DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	log.FromContext(ctx).WithComponent(log.ComponentUsers).InfoContext(ctx, "User deleted",
		log.FieldUserID, id, log.FieldOperation, log.OpDelete)
	return nil
}

func userFromRow(r storage.User) core.User {
	return core.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}
