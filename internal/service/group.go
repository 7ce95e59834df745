package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
	"docvault/internal/domain/repositories"
)

// reservedGroups cannot be deleted or renamed; grant subjects depend on
// them existing.
var reservedGroups = map[string]bool{
	models.DefaultGroupName:    true,
	models.ManagementGroupName: true,
}

// GroupService manages groups and memberships.
type GroupService struct {
	txm    repositories.TransactionManager
	groups repositories.GroupRepository
	grants repositories.GrantRepository
	logger *slog.Logger
}

// NewGroupService creates a new group service
func NewGroupService(
	txm repositories.TransactionManager,
	groups repositories.GroupRepository,
	grants repositories.GrantRepository,
	logger *slog.Logger,
) *GroupService {
	return &GroupService{txm: txm, groups: groups, grants: grants, logger: logger}
}

// Create makes a new group. Names are unique across the system.
func (s *GroupService) Create(ctx context.Context, principal models.Principal, name string) (*models.Group, error) {
	if err := requireAdmin(principal, "create group"); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	group := &models.Group{Name: name}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// Rename changes a group's name. Reserved groups keep theirs.
func (s *GroupService) Rename(ctx context.Context, principal models.Principal, groupID int64, name string) error {
	if err := requireAdmin(principal, "rename group"); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if reservedGroups[group.Name] {
		return fmt.Errorf("%w: group %q is reserved", domain.ErrValidation, group.Name)
	}

	return s.groups.Rename(ctx, groupID, name)
}

// Delete removes a group, its memberships and every grant row it holds,
// so no dangling subject references survive.
func (s *GroupService) Delete(ctx context.Context, principal models.Principal, groupID int64) error {
	if err := requireAdmin(principal, "delete group"); err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if reservedGroups[group.Name] {
		return fmt.Errorf("%w: group %q is reserved", domain.ErrValidation, group.Name)
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.grants.DeleteBySubject(ctx, models.SubjectGroup, groupID); err != nil {
			return err
		}
		if err := s.groups.DeleteMemberships(ctx, groupID); err != nil {
			return err
		}
		return s.groups.Delete(ctx, groupID)
	})
}

// List returns all groups.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	return s.groups.List(ctx)
}

// SetUserGroups replaces a user's memberships with the given set.
func (s *GroupService) SetUserGroups(ctx context.Context, principal models.Principal, userID int64, groupIDs []int64) error {
	if err := requireAdmin(principal, "set memberships"); err != nil {
		return err
	}
	for _, id := range groupIDs {
		if _, err := s.groups.GetByID(ctx, id); err != nil {
			return fmt.Errorf("group %d: %w", id, err)
		}
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.groups.ReplaceUserGroups(ctx, userID, groupIDs)
	})
}

// EnsureReserved creates the reserved groups if they are missing. The
// seed binary calls this at bootstrap; it is idempotent.
func (s *GroupService) EnsureReserved(ctx context.Context) error {
	for name := range reservedGroups {
		_, err := s.groups.GetByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := s.groups.Create(ctx, &models.Group{Name: name}); err != nil {
			return fmt.Errorf("bootstrap group %q: %w", name, err)
		}
		s.logger.Info("created reserved group", "name", name)
	}
	return nil
}
