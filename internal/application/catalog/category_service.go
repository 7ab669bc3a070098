package catalog

import (
	"context"
	"errors"

	"github.com/possales/backend/internal/domain/catalog"
	"github.com/possales/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrCategoryNotFound is returned when the requested category does not exist
var ErrCategoryNotFound = shared.NewDomainError("NOT_FOUND", "Category not found")

// CategoryService handles category-related business operations
type CategoryService struct {
	categoryRepo catalog.CategoryRepository
	logger       *zap.Logger
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categoryRepo catalog.CategoryRepository, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

// List retrieves all categories ordered by ID, names upper-cased
func (s *CategoryService) List(ctx context.Context) ([]CategoryListResponse, error) {
	categories, err := s.categoryRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]CategoryListResponse, len(categories))
	for i := range categories {
		responses[i] = ToCategoryListResponse(&categories[i])
	}
	return responses, nil
}

// GetByID retrieves a category by ID
func (s *CategoryService) GetByID(ctx context.Context, id int64) (*CategoryResponse, error) {
	category, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToCategoryResponse(category)
	return &response, nil
}

// Create creates a new category. The response carries the upper-cased name.
func (s *CategoryService) Create(ctx context.Context, req CreateCategoryRequest) (*CategoryResponse, error) {
	category, err := catalog.NewCategory(req.Name)
	if err != nil {
		return nil, err
	}

	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created",
		zap.Int64("category_id", category.ID),
		zap.String("name", category.Name),
	)

	return &CategoryResponse{ID: category.ID, Name: category.DisplayName()}, nil
}

// Update renames a category
func (s *CategoryService) Update(ctx context.Context, req UpdateCategoryRequest) (*CategoryResponse, error) {
	category, err := s.find(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	if err := category.Rename(req.Name); err != nil {
		return nil, err
	}

	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}

	response := ToCategoryResponse(category)
	return &response, nil
}

// Delete deletes a category and returns it as it was before deletion.
// Products in the category become uncategorized.
func (s *CategoryService) Delete(ctx context.Context, id int64) (*CategoryResponse, error) {
	category, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	s.logger.Info("Category deleted", zap.Int64("category_id", id))

	response := ToCategoryResponse(category)
	return &response, nil
}

func (s *CategoryService) find(ctx context.Context, id int64) (*catalog.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}
