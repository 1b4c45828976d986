package service

import (
	"context"
	"strings"

	"lionboard/internal/models"
	"lionboard/internal/repository"
)

// RoleService answers the privileged-actor question and manages roles.
type RoleService struct {
	users     repository.UserRepository
	allowlist map[string]struct{}
}

// NewRoleService builds the predicate from the users table plus an e-mail
// allowlist of accounts that always count as moderators.
func NewRoleService(users repository.UserRepository, moderatorEmails []string) *RoleService {
	allow := make(map[string]struct{}, len(moderatorEmails))
	for _, email := range moderatorEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allow[email] = struct{}{}
		}
	}
	return &RoleService{users: users, allowlist: allow}
}

// CanModerate is false for unknown users rather than an error.
func (s *RoleService) CanModerate(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.CanModerate() {
		return true, nil
	}
	_, ok := s.allowlist[strings.ToLower(user.Email)]
	return ok, nil
}

// SetRole changes the role of the account with the given e-mail.
func (s *RoleService) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, models.NewMissingFieldError("email")
	}
	if !role.Valid() {
		return nil, models.NewValidationError("invalid role")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, opaque(ctx, "role.lookup", err)
	}
	if err := s.users.UpdateRole(ctx, user.ID, role); err != nil {
		return nil, opaque(ctx, "role.update", err)
	}
	user.Role = role
	return user, nil
}

// Moderators lists every account holding a moderating role.
func (s *RoleService) Moderators(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListByRoles(ctx, models.RoleModerator, models.RoleStaff, models.RoleAdmin)
	if err != nil {
		return nil, opaque(ctx, "role.list", err)
	}
	return users, nil
}
