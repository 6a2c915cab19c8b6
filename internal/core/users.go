package core

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"alquimist/pkg/domain"
)

// UserFilter narrows ListUsers. Empty fields match everything.
type UserFilter struct {
	Role       string
	LabID      string
	OnlineOnly bool
}

func (f UserFilter) match(u domain.User) bool {
	return (f.Role == "" || u.Role == f.Role) &&
		(f.LabID == "" || u.LabID == f.LabID) &&
		(!f.OnlineOnly || u.IsOnline)
}

func profiles(users []domain.User) []domain.UserProfile {
	out := make([]domain.UserProfile, len(users))
	for i, u := range users {
		out[i] = u.Profile()
	}
	return out
}

// HashPassword hashes a plaintext password with the configured bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the email is unknown so that both
// failure paths cost one bcrypt comparison.
func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("alquimist-missing-user"), s.bcryptCost)
	})
	return s.dummy
}

// ListUsers returns matching users without credentials.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]domain.UserProfile, error) {
	var out []domain.UserProfile
	err := s.view(ctx, "list_users", func(v TransactionView) error {
		var matched []domain.User
		for _, u := range v.ListUsers() {
			if filter.match(u) {
				matched = append(matched, u)
			}
		}
		out = profiles(matched)
		return nil
	})
	return out, err
}

// GetUser returns one user without credentials.
func (s *Service) GetUser(ctx context.Context, id string) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := s.view(ctx, "get_user", func(v TransactionView) error {
		u, ok := v.FindUser(id)
		if !ok {
			return domain.ErrNotFound{Entity: EntityUser, ID: id}
		}
		out = u.Profile()
		return nil
	})
	return out, err
}

// CreateUser stores a new offline user. Permissions default to the role's set.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (domain.UserProfile, Result, error) {
	const op = "create_user"
	if err := in.Validate(false); err != nil {
		return domain.UserProfile{}, Result{}, s.reject(ctx, op, err)
	}
	hash, err := s.HashPassword(*in.Password)
	if err != nil {
		return domain.UserProfile{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.UserProfile
	res, err := s.run(ctx, op, func(tx Transaction) error {
		u := domain.User{
			Name:         *in.Name,
			Role:         *in.Role,
			Email:        *in.Email,
			PasswordHash: hash,
			Permissions:  domain.PermissionsForRole(*in.Role),
		}
		set(&u.LabID, in.LabID)
		set(&u.Permissions, in.Permissions)
		created, err := tx.CreateUser(u)
		if err != nil {
			return err
		}
		out = created.Profile()
		return s.audit(ctx, tx, auditEntry{
			action:      "create_user",
			description: fmt.Sprintf("Creó el usuario %s", created.Name),
			category:    domain.CategoryLabManagement,
			relatedID:   created.ID,
			relatedName: created.Name,
		})
	})
	return out, res, err
}

// UpdateUser merges the supplied fields into a user. A role change without
// explicit permissions re-derives them; a supplied password is rehashed.
func (s *Service) UpdateUser(ctx context.Context, id string, in UserInput) (domain.UserProfile, Result, error) {
	const op = "update_user"
	if err := in.Validate(true); err != nil {
		return domain.UserProfile{}, Result{}, s.reject(ctx, op, err)
	}
	var hash string
	if in.Password != nil {
		var err error
		if hash, err = s.HashPassword(*in.Password); err != nil {
			return domain.UserProfile{}, Result{}, s.reject(ctx, op, err)
		}
	}
	var out domain.UserProfile
	res, err := s.run(ctx, op, func(tx Transaction) error {
		updated, err := tx.UpdateUser(id, func(u *domain.User) error {
			set(&u.Name, in.Name)
			set(&u.Email, in.Email)
			set(&u.LabID, in.LabID)
			if in.Role != nil {
				u.Role = *in.Role
				if in.Permissions == nil {
					u.Permissions = domain.PermissionsForRole(u.Role)
				}
			}
			set(&u.Permissions, in.Permissions)
			if hash != "" {
				u.PasswordHash = hash
			}
			return nil
		})
		if err != nil {
			return err
		}
		out = updated.Profile()
		return s.audit(ctx, tx, auditEntry{
			action:      "update_user",
			description: fmt.Sprintf("Actualizó el usuario %s", updated.Name),
			category:    domain.CategoryLabManagement,
			relatedID:   updated.ID,
			relatedName: updated.Name,
		})
	})
	return out, res, err
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_user", func(tx Transaction) error {
		if err := tx.DeleteUser(id); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_user",
			description: fmt.Sprintf("Eliminó el usuario con ID %s", id),
			category:    domain.CategoryLabManagement,
			relatedID:   id,
		})
	})
}

// Authenticate checks credentials, marks the user online and logs the login.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (domain.UserProfile, Result, error) {
	const op = "login"
	if err := in.Validate(false); err != nil {
		return domain.UserProfile{}, Result{}, s.reject(ctx, op, err)
	}
	var (
		user  domain.User
		found bool
	)
	if err := s.store.View(ctx, func(v TransactionView) error {
		user, found = v.FindUserByEmail(*in.Email)
		return nil
	}); err != nil {
		return domain.UserProfile{}, Result{}, s.reject(ctx, op, err)
	}
	hash := s.dummyHash()
	if found && user.PasswordHash != "" {
		hash = []byte(user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(*in.Password)); err != nil || !found || user.PasswordHash == "" {
		return domain.UserProfile{}, Result{}, s.reject(ctx, op, domain.ErrInvalidCredentials)
	}
	var out domain.UserProfile
	res, err := s.run(ctx, op, func(tx Transaction) error {
		updated, err := tx.UpdateUser(user.ID, func(u *domain.User) error {
			now := tx.Now()
			u.IsOnline = true
			u.LastLogin = &now
			return nil
		})
		if err != nil {
			return err
		}
		out = updated.Profile()
		return appendActivity(tx, Actor{ID: updated.ID, Name: updated.Name, Role: updated.Role}, auditEntry{
			action:      "login",
			description: fmt.Sprintf("%s inició sesión en el sistema", updated.Name),
			category:    domain.CategoryAuthentication,
			relatedID:   updated.ID,
			relatedName: updated.Name,
		})
	})
	return out, res, err
}

// Logout marks the user offline and logs it. Unknown or empty ids are
// acknowledged without changes since no server session exists.
func (s *Service) Logout(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, nil
	}
	return s.run(ctx, "logout", func(tx Transaction) error {
		if _, ok := tx.FindUser(userID); !ok {
			return nil
		}
		updated, err := tx.UpdateUser(userID, func(u *domain.User) error {
			u.IsOnline = false
			return nil
		})
		if err != nil {
			return err
		}
		return appendActivity(tx, Actor{ID: updated.ID, Name: updated.Name, Role: updated.Role}, auditEntry{
			action:      "logout",
			description: fmt.Sprintf("%s cerró sesión", updated.Name),
			category:    domain.CategoryAuthentication,
			relatedID:   updated.ID,
			relatedName: updated.Name,
		})
	})
}
