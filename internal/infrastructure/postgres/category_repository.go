package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"centavo/internal/domain/category"
)

// CategoryRepository implements the category.Repository interface for PostgreSQL
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new PostgreSQL category repository
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// CreateGroup creates a new category group
func (r *CategoryRepository) CreateGroup(ctx context.Context, params category.CreateGroupParams) (*category.Group, error) {
	query := `
		INSERT INTO category_groups (group_id, name, sort_order)
		VALUES ($1, $2, $3)
		RETURNING group_id, name, sort_order, is_system, is_active, created_at, updated_at
	`

	var g category.Group
	err := r.db.QueryRowContext(ctx, query, params.GroupID, params.Name, params.SortOrder).Scan(
		&g.GroupID, &g.Name, &g.SortOrder, &g.IsSystem, &g.IsActive, &g.CreatedAt, &g.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, category.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create category group: %w", err)
	}

	return &g, nil
}

// GetGroup retrieves a group by its ID
func (r *CategoryRepository) GetGroup(ctx context.Context, groupID string) (*category.Group, error) {
	query := `
		SELECT group_id, name, sort_order, is_system, is_active, created_at, updated_at
		FROM category_groups
		WHERE group_id = $1
	`

	var g category.Group
	err := r.db.QueryRowContext(ctx, query, groupID).Scan(
		&g.GroupID, &g.Name, &g.SortOrder, &g.IsSystem, &g.IsActive, &g.CreatedAt, &g.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, category.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category group: %w", err)
	}

	return &g, nil
}

// ListGroups retrieves groups ordered by sort order
func (r *CategoryRepository) ListGroups(ctx context.Context, includeInactive bool) ([]*category.Group, error) {
	query := `
		SELECT group_id, name, sort_order, is_system, is_active, created_at, updated_at
		FROM category_groups
		WHERE ($1 OR is_active)
		ORDER BY sort_order, group_id
	`

	rows, err := r.db.QueryContext(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list category groups: %w", err)
	}
	defer rows.Close()

	var groups []*category.Group
	for rows.Next() {
		var g category.Group
		err := rows.Scan(&g.GroupID, &g.Name, &g.SortOrder, &g.IsSystem, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category group: %w", err)
		}
		groups = append(groups, &g)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category groups: %w", err)
	}

	return groups, nil
}

// UpdateGroup applies the non-nil fields of params to a group
func (r *CategoryRepository) UpdateGroup(ctx context.Context, groupID string, params category.UpdateGroupParams) (*category.Group, error) {
	query := `
		UPDATE category_groups
		SET name = COALESCE($1, name),
		    sort_order = COALESCE($2, sort_order),
		    updated_at = now()
		WHERE group_id = $3
		RETURNING group_id, name, sort_order, is_system, is_active, created_at, updated_at
	`

	var g category.Group
	err := r.db.QueryRowContext(ctx, query, params.Name, params.SortOrder, groupID).Scan(
		&g.GroupID, &g.Name, &g.SortOrder, &g.IsSystem, &g.IsActive, &g.CreatedAt, &g.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, category.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update category group: %w", err)
	}

	return &g, nil
}

// DeactivateGroup soft-deletes a group
func (r *CategoryRepository) DeactivateGroup(ctx context.Context, groupID string) error {
	query := `UPDATE category_groups SET is_active = FALSE, updated_at = now() WHERE group_id = $1`

	result, err := r.db.ExecContext(ctx, query, groupID)
	if err != nil {
		return fmt.Errorf("failed to deactivate category group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return category.ErrGroupNotFound
	}

	return nil
}

// CreateCategory creates a new category
func (r *CategoryRepository) CreateCategory(ctx context.Context, params category.CreateCategoryParams) (*category.Category, error) {
	query := `
		INSERT INTO budget_categories (category_id, group_id, name)
		VALUES ($1, $2, $3)
		RETURNING category_id, group_id, name, is_system, is_active, created_at, updated_at
	`

	var c category.Category
	err := r.db.QueryRowContext(ctx, query, params.CategoryID, params.GroupID, params.Name).Scan(
		&c.CategoryID, &c.GroupID, &c.Name, &c.IsSystem, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, category.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &c, nil
}

// GetCategory retrieves a category by its ID
func (r *CategoryRepository) GetCategory(ctx context.Context, categoryID string) (*category.Category, error) {
	query := `
		SELECT category_id, group_id, name, is_system, is_active, created_at, updated_at
		FROM budget_categories
		WHERE category_id = $1
	`

	var c category.Category
	err := r.db.QueryRowContext(ctx, query, categoryID).Scan(
		&c.CategoryID, &c.GroupID, &c.Name, &c.IsSystem, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, category.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return &c, nil
}

// ListCategories retrieves categories grouped by their group's sort order
func (r *CategoryRepository) ListCategories(ctx context.Context, includeInactive bool) ([]*category.Category, error) {
	query := `
		SELECT c.category_id, c.group_id, c.name, c.is_system, c.is_active, c.created_at, c.updated_at
		FROM budget_categories c
		LEFT JOIN category_groups g ON g.group_id = c.group_id
		WHERE ($1 OR c.is_active)
		ORDER BY COALESCE(g.sort_order, 0), c.group_id, c.category_id
	`

	rows, err := r.db.QueryContext(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*category.Category
	for rows.Next() {
		var c category.Category
		err := rows.Scan(&c.CategoryID, &c.GroupID, &c.Name, &c.IsSystem, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// UpdateCategory applies the non-nil fields of params to a category
func (r *CategoryRepository) UpdateCategory(ctx context.Context, categoryID string, params category.UpdateCategoryParams) (*category.Category, error) {
	query := `
		UPDATE budget_categories
		SET name = COALESCE($1, name),
		    group_id = COALESCE($2, group_id),
		    updated_at = now()
		WHERE category_id = $3
		RETURNING category_id, group_id, name, is_system, is_active, created_at, updated_at
	`

	var c category.Category
	err := r.db.QueryRowContext(ctx, query, params.Name, params.GroupID, categoryID).Scan(
		&c.CategoryID, &c.GroupID, &c.Name, &c.IsSystem, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, category.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	return &c, nil
}

// DeactivateCategory soft-deletes a category
func (r *CategoryRepository) DeactivateCategory(ctx context.Context, categoryID string) error {
	query := `UPDATE budget_categories SET is_active = FALSE, updated_at = now() WHERE category_id = $1`

	result, err := r.db.ExecContext(ctx, query, categoryID)
	if err != nil {
		return fmt.Errorf("failed to deactivate category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return category.ErrCategoryNotFound
	}

	return nil
}

// CountActiveCategories counts active categories within a group
func (r *CategoryRepository) CountActiveCategories(ctx context.Context, groupID string) (int, error) {
	query := `SELECT COUNT(*) FROM budget_categories WHERE group_id = $1 AND is_active`

	var count int
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}

	return count, nil
}
