package catalog

import (
	"github.com/possales/backend/internal/domain/catalog"
)

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// UpdateCategoryRequest represents a request to rename a category
type UpdateCategoryRequest struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryListResponse represents a category in list responses.
// Active is the string "true" for every listed category.
type CategoryListResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active string `json:"active"`
}

// ToCategoryResponse converts a domain Category to CategoryResponse
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:   c.ID,
		Name: c.Name,
	}
}

// ToCategoryListResponse converts a domain Category to its upper-cased list form
func ToCategoryListResponse(c *catalog.Category) CategoryListResponse {
	return CategoryListResponse{
		ID:     c.ID,
		Name:   c.DisplayName(),
		Active: "true",
	}
}
