package category

import "context"

// Repository defines the interface for category reference data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// CreateGroup creates a new category group
	CreateGroup(ctx context.Context, params CreateGroupParams) (*Group, error)

	// GetGroup retrieves a group by its ID
	GetGroup(ctx context.Context, groupID string) (*Group, error)

	// ListGroups retrieves groups ordered by sort order
	ListGroups(ctx context.Context, includeInactive bool) ([]*Group, error)

	// UpdateGroup applies the non-nil fields of params to a group
	UpdateGroup(ctx context.Context, groupID string, params UpdateGroupParams) (*Group, error)

	// DeactivateGroup soft-deletes a group
	DeactivateGroup(ctx context.Context, groupID string) error

	// CreateCategory creates a new category
	CreateCategory(ctx context.Context, params CreateCategoryParams) (*Category, error)

	// GetCategory retrieves a category by its ID
	GetCategory(ctx context.Context, categoryID string) (*Category, error)

	// ListCategories retrieves categories grouped by their group's sort order
	ListCategories(ctx context.Context, includeInactive bool) ([]*Category, error)

	// UpdateCategory applies the non-nil fields of params to a category
	UpdateCategory(ctx context.Context, categoryID string, params UpdateCategoryParams) (*Category, error)

	// DeactivateCategory soft-deletes a category
	DeactivateCategory(ctx context.Context, categoryID string) error

	// CountActiveCategories counts active categories within a group
	CountActiveCategories(ctx context.Context, groupID string) (int, error)
}
