package repositories

import (
	"context"

	"docvault/internal/domain/models"
)

// GroupRepository persists groups and the membership index. Single-row
// lookups report an absent row as domain.ErrNotFound, never as a nil
// result.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]models.Group, error)
	GetByName(ctx context.Context, name string) (*models.Group, error)

	// GroupIDsForUser resolves a user to its set of group subjects.
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	ReplaceUserGroups(ctx context.Context, userID int64, groupIDs []int64) error
	DeleteMemberships(ctx context.Context, groupID int64) error
}
