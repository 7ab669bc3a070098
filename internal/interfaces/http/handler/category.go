package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/possales/backend/internal/application/catalog"
	"github.com/possales/backend/internal/interfaces/http/dto"
)

// Messages POS clients match on
const (
	msgNoCategory         = "No category found"
	msgMissingName        = "Missing key 'name' in request"
	msgCategoryIDRequired = "Category ID is required"
	msgCategoryCreated    = "Product added successfully"
	msgCategoryUpdated    = "Category updated successfully"
	msgCategoryDeleted    = "Category deleted successfully"
)

// CategoryHandler handles category-related API endpoints
type CategoryHandler struct {
	BaseHandler
	categoryService *catalogapp.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService *catalogapp.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
	}
}

// CreateCategoryRequest represents a request to create a new category.
// Pointer fields tell an absent key from an empty value.
type CreateCategoryRequest struct {
	Name *string `json:"name"`
}

// UpdateCategoryRequest represents a request to rename a category
type UpdateCategoryRequest struct {
	CategoryID *int64  `json:"category_id"`
	Name       *string `json:"name"`
}

// DeleteCategoryRequest represents a request to delete a category
type DeleteCategoryRequest struct {
	CategoryID *int64 `json:"category_id"`
}

// CreateCategoryResponse is the body of a successful create.
// The category travels under "product" for compatibility with existing clients.
type CreateCategoryResponse struct {
	Message string                      `json:"message"`
	Product catalogapp.CategoryResponse `json:"product"`
}

// UpdateCategoryResponse is the body of a successful update
type UpdateCategoryResponse struct {
	Message  string                      `json:"message"`
	Category catalogapp.CategoryResponse `json:"category"`
}

// DeleteCategoryResponse is the body of a successful delete
type DeleteCategoryResponse struct {
	Message string                      `json:"message"`
	Product catalogapp.CategoryResponse `json:"product"`
}

// List returns all categories with upper-cased names.
//
//	GET /category
//	GET /category/list
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if len(categories) == 0 {
		h.Message(c, http.StatusOK, msgNoCategory)
		return
	}
	h.OK(c, categories)
}

// GetByID returns one category as stored.
//
//	GET /category/list/:id
func (h *CategoryHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid category ID format")
		return
	}

	category, err := h.categoryService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, category)
}

// Create creates a category.
//
//	POST /category/create {"name": "..."}
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CreateCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Name == nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, msgMissingName)
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), catalogapp.CreateCategoryRequest{
		Name: *req.Name,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, CreateCategoryResponse{Message: msgCategoryCreated, Product: *category})
}

// Update renames a category.
//
//	PUT /category/update {"category_id": 1, "name": "..."}
func (h *CategoryHandler) Update(c *gin.Context) {
	var req UpdateCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.CategoryID == nil || *req.CategoryID == 0 {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, msgCategoryIDRequired)
		return
	}
	if req.Name == nil || *req.Name == "" {
		// An unknown category is reported before a missing name
		if _, err := h.categoryService.GetByID(c.Request.Context(), *req.CategoryID); err != nil {
			h.HandleError(c, err)
			return
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, msgMissingName)
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), catalogapp.UpdateCategoryRequest{
		CategoryID: *req.CategoryID,
		Name:       *req.Name,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, UpdateCategoryResponse{Message: msgCategoryUpdated, Category: *category})
}

// Delete deletes a category. Its products become uncategorized.
//
//	DELETE /category/delete {"category_id": 1}
func (h *CategoryHandler) Delete(c *gin.Context) {
	var req DeleteCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.CategoryID == nil || *req.CategoryID == 0 {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, msgCategoryIDRequired)
		return
	}

	category, err := h.categoryService.Delete(c.Request.Context(), *req.CategoryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, DeleteCategoryResponse{Message: msgCategoryDeleted, Product: *category})
}

// bindJSON decodes the body into req. An empty body decodes as {}.
func (h *CategoryHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid JSON body")
		return false
	}
	return true
}
