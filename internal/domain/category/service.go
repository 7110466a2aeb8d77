package category

import "context"

// Service contains the business logic for category administration
type Service struct {
	repo Repository
}

// NewService creates a new category service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateGroup creates a category group after validating its slug and name
func (s *Service) CreateGroup(ctx context.Context, params CreateGroupParams) (*Group, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.CreateGroup(ctx, params)
}

// GetGroup retrieves a group by ID
func (s *Service) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	return s.repo.GetGroup(ctx, groupID)
}

// ListGroups retrieves groups ordered by sort order
func (s *Service) ListGroups(ctx context.Context, includeInactive bool) ([]*Group, error) {
	return s.repo.ListGroups(ctx, includeInactive)
}

// UpdateGroup renames or reorders a group. System groups are immutable.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, params UpdateGroupParams) (*Group, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.IsSystem {
		return nil, ErrSystemImmutable
	}
	if params.Name != nil && *params.Name == "" {
		return nil, ErrNameRequired
	}
	return s.repo.UpdateGroup(ctx, groupID, params)
}

// DeactivateGroup soft-deletes a group. The group must be empty: active
// categories must be moved or deactivated first.
func (s *Service) DeactivateGroup(ctx context.Context, groupID string) error {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.IsSystem {
		return ErrSystemImmutable
	}

	count, err := s.repo.CountActiveCategories(ctx, groupID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrGroupNotEmpty
	}

	return s.repo.DeactivateGroup(ctx, groupID)
}

// CreateCategory creates a category inside an existing active group
func (s *Service) CreateCategory(ctx context.Context, params CreateCategoryParams) (*Category, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Relationships are application-enforced; verify the group here.
	group, err := s.repo.GetGroup(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, ErrGroupNotFound
	}

	return s.repo.CreateCategory(ctx, params)
}

// GetCategory retrieves a category by ID
func (s *Service) GetCategory(ctx context.Context, categoryID string) (*Category, error) {
	return s.repo.GetCategory(ctx, categoryID)
}

// ListCategories retrieves categories for the reference data surface
func (s *Service) ListCategories(ctx context.Context, includeInactive bool) ([]*Category, error) {
	return s.repo.ListCategories(ctx, includeInactive)
}

// UpdateCategory renames a category or moves it to another group.
// System categories are immutable.
func (s *Service) UpdateCategory(ctx context.Context, categoryID string, params UpdateCategoryParams) (*Category, error) {
	cat, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if cat.IsSystem {
		return nil, ErrSystemImmutable
	}
	if params.Name != nil && *params.Name == "" {
		return nil, ErrNameRequired
	}
	if params.GroupID != nil {
		group, err := s.repo.GetGroup(ctx, *params.GroupID)
		if err != nil {
			return nil, err
		}
		if !group.IsActive {
			return nil, ErrGroupNotFound
		}
	}
	return s.repo.UpdateCategory(ctx, categoryID, params)
}

// DeactivateCategory soft-deletes a category. System categories are
// immutable. Historical postings keep referencing the deactivated id.
func (s *Service) DeactivateCategory(ctx context.Context, categoryID string) error {
	cat, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if cat.IsSystem {
		return ErrSystemImmutable
	}
	return s.repo.DeactivateCategory(ctx, categoryID)
}
