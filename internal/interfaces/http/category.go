package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/category"
)

// CategoryHandler exposes category and group administration.
type CategoryHandler struct {
	categories *category.Service
	log        zerolog.Logger
}

func NewCategoryHandler(categoryService *category.Service, log zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categoryService, log: log}
}

// Request/Response DTOs

type CreateGroupRequest struct {
	GroupID   string `json:"groupId"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder,omitempty"`
}

type UpdateGroupRequest struct {
	Name      *string `json:"name,omitempty"`
	SortOrder *int    `json:"sortOrder,omitempty"`
}

type CreateCategoryRequest struct {
	CategoryID string `json:"categoryId"`
	GroupID    string `json:"groupId"`
	Name       string `json:"name"`
}

type UpdateCategoryRequest struct {
	Name    *string `json:"name,omitempty"`
	GroupID *string `json:"groupId,omitempty"`
}

type GroupResponse struct {
	GroupID   string `json:"groupId"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	IsSystem  bool   `json:"isSystem"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type CategoryResponse struct {
	CategoryID string `json:"categoryId"`
	GroupID    string `json:"groupId"`
	Name       string `json:"name"`
	IsSystem   bool   `json:"isSystem"`
	IsActive   bool   `json:"isActive"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func toGroupResponse(g *category.Group) GroupResponse {
	return GroupResponse{
		GroupID:   g.GroupID,
		Name:      g.Name,
		SortOrder: g.SortOrder,
		IsSystem:  g.IsSystem,
		IsActive:  g.IsActive,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
		UpdatedAt: g.UpdatedAt.Format(time.RFC3339),
	}
}

func toCategoryResponse(c *category.Category) CategoryResponse {
	return CategoryResponse{
		CategoryID: c.CategoryID,
		GroupID:    c.GroupID,
		Name:       c.Name,
		IsSystem:   c.IsSystem,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
	}
}

// HandleGroups routes requests to the appropriate handler based on method
func (h *CategoryHandler) HandleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListGroups(w, r)
	case http.MethodPost:
		h.handleCreateGroup(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGroupByID routes requests for a specific group
func (h *CategoryHandler) HandleGroupByID(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if groupID == "" {
		http.Error(w, "Group ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.handleUpdateGroup(w, r, groupID)
	case http.MethodDelete:
		h.handleDeactivateGroup(w, r, groupID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCategories routes requests to the appropriate handler based on method
func (h *CategoryHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListCategories(w, r)
	case http.MethodPost:
		h.handleCreateCategory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCategoryByID routes requests for a specific category
func (h *CategoryHandler) HandleCategoryByID(w http.ResponseWriter, r *http.Request) {
	categoryID := r.PathValue("id")
	if categoryID == "" {
		http.Error(w, "Category ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.handleUpdateCategory(w, r, categoryID)
	case http.MethodDelete:
		h.handleDeactivateCategory(w, r, categoryID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CategoryHandler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	groups, err := h.categories.ListGroups(r.Context(), includeInactive)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list category groups")
		http.Error(w, "Failed to list category groups", http.StatusInternalServerError)
		return
	}

	response := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		response = append(response, toGroupResponse(g))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *CategoryHandler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.categories.CreateGroup(r.Context(), category.CreateGroupParams{
		GroupID:   req.GroupID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		switch {
		case errors.Is(err, category.ErrInvalidSlug), errors.Is(err, category.ErrNameRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, category.ErrAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("group_id", req.GroupID).Msg("failed to create category group")
			http.Error(w, "Failed to create category group", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toGroupResponse(group))
}

func (h *CategoryHandler) handleUpdateGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	var req UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.categories.UpdateGroup(r.Context(), groupID, category.UpdateGroupParams{
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		switch {
		case errors.Is(err, category.ErrGroupNotFound):
			http.Error(w, "Category group not found", http.StatusNotFound)
		case errors.Is(err, category.ErrSystemImmutable), errors.Is(err, category.ErrNameRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("group_id", groupID).Msg("failed to update category group")
			http.Error(w, "Failed to update category group", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toGroupResponse(group))
}

func (h *CategoryHandler) handleDeactivateGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	err := h.categories.DeactivateGroup(r.Context(), groupID)
	if err != nil {
		switch {
		case errors.Is(err, category.ErrGroupNotFound):
			http.Error(w, "Category group not found", http.StatusNotFound)
		case errors.Is(err, category.ErrSystemImmutable):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, category.ErrGroupNotEmpty):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("group_id", groupID).Msg("failed to deactivate category group")
			http.Error(w, "Failed to deactivate category group", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	categories, err := h.categories.ListCategories(r.Context(), includeInactive)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list categories")
		http.Error(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}

	response := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		response = append(response, toCategoryResponse(c))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *CategoryHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cat, err := h.categories.CreateCategory(r.Context(), category.CreateCategoryParams{
		CategoryID: req.CategoryID,
		GroupID:    req.GroupID,
		Name:       req.Name,
	})
	if err != nil {
		switch {
		// An unknown or inactive group is a bad reference in the body,
		// not a missing resource.
		case errors.Is(err, category.ErrInvalidSlug), errors.Is(err, category.ErrNameRequired),
			errors.Is(err, category.ErrGroupNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, category.ErrAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(err).Str("category_id", req.CategoryID).Msg("failed to create category")
			http.Error(w, "Failed to create category", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toCategoryResponse(cat))
}

func (h *CategoryHandler) handleUpdateCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cat, err := h.categories.UpdateCategory(r.Context(), categoryID, category.UpdateCategoryParams{
		Name:    req.Name,
		GroupID: req.GroupID,
	})
	if err != nil {
		switch {
		case errors.Is(err, category.ErrCategoryNotFound):
			http.Error(w, "Category not found", http.StatusNotFound)
		case errors.Is(err, category.ErrSystemImmutable), errors.Is(err, category.ErrNameRequired),
			errors.Is(err, category.ErrGroupNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("category_id", categoryID).Msg("failed to update category")
			http.Error(w, "Failed to update category", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCategoryResponse(cat))
}

func (h *CategoryHandler) handleDeactivateCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	err := h.categories.DeactivateCategory(r.Context(), categoryID)
	if err != nil {
		switch {
		case errors.Is(err, category.ErrCategoryNotFound):
			http.Error(w, "Category not found", http.StatusNotFound)
		case errors.Is(err, category.ErrSystemImmutable):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("category_id", categoryID).Msg("failed to deactivate category")
			http.Error(w, "Failed to deactivate category", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
