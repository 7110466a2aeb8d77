package category

import (
	"errors"
	"regexp"
	"time"
)

// System categories created with the schema. They are structural: the pool
// holds unassigned funds (Ready to Assign) and the wash absorbs transfer
// legs so transfers never show up as budget activity.
const (
	PoolCategoryID     = "available_to_budget"
	TransferCategoryID = "account_transfer"
	SystemGroupID      = "system"
)

// Identifiers are caller-supplied slugs, stable across renames.
var slugPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Domain errors
var (
	ErrGroupNotFound    = errors.New("category group not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidSlug      = errors.New("identifier must match ^[a-z0-9_]+$")
	ErrNameRequired     = errors.New("name is required")
	ErrSystemImmutable  = errors.New("system categories cannot be modified")
	ErrGroupNotEmpty    = errors.New("group still has active categories")
	ErrAlreadyExists    = errors.New("identifier already in use")
)

// Group represents a display grouping of budget categories
type Group struct {
	GroupID   string    `json:"groupId"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sortOrder"`
	IsSystem  bool      `json:"isSystem"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category represents a budget envelope
type Category struct {
	CategoryID string    `json:"categoryId"`
	GroupID    string    `json:"groupId"`
	Name       string    `json:"name"`
	IsSystem   bool      `json:"isSystem"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateGroupParams contains parameters for creating a category group
type CreateGroupParams struct {
	GroupID   string
	Name      string
	SortOrder int
}

// Validate validates the group create parameters
func (p CreateGroupParams) Validate() error {
	if !IsValidSlug(p.GroupID) {
		return ErrInvalidSlug
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// CreateCategoryParams contains parameters for creating a category
type CreateCategoryParams struct {
	CategoryID string
	GroupID    string
	Name       string
}

// Validate validates the category create parameters
func (p CreateCategoryParams) Validate() error {
	if !IsValidSlug(p.CategoryID) {
		return ErrInvalidSlug
	}
	if !IsValidSlug(p.GroupID) {
		return ErrInvalidSlug
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// UpdateGroupParams contains parameters for updating a group
type UpdateGroupParams struct {
	Name      *string
	SortOrder *int
}

// UpdateCategoryParams contains parameters for updating a category
type UpdateCategoryParams struct {
	Name    *string
	GroupID *string
}

// IsValidSlug checks if the provided identifier is a valid slug.
func IsValidSlug(s string) bool {
	return s != "" && len(s) <= 64 && slugPattern.MatchString(s)
}

// IsSystemCategory reports whether the id names one of the structural
// categories.
func IsSystemCategory(categoryID string) bool {
	return categoryID == PoolCategoryID || categoryID == TransferCategoryID
}
