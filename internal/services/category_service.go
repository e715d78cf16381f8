package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"incomeledger/internal/core"
	"incomeledger/internal/storage"

	"github.com/google/uuid"
)

// CategoryService answers category visibility questions and manages the
// actor-owned categories. Default categories are seeded by migration and
// never change.
type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(storage *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: storage}
}

// Resolve returns the category only if it exists and is usable by the
// actor: a default category, or one the actor owns. No side effects.
func (s *CategoryService) Resolve(ctx context.Context, categoryID, actorID string) (core.Category, error) {
	return s.storage.GetVisibleCategory(ctx, categoryID, actorID)
}

// List returns the categories visible to the actor, defaults first.
func (s *CategoryService) List(ctx context.Context, actorID string) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, actorID)
}

// Create adds a custom category for the actor. The name must be unused
// among the actor's own categories; duplicates fail with
// core.ErrCategoryExists. Default category names may be reused.
func (s *CategoryService) Create(ctx context.Context, actorID, name, color string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, &core.ValidationError{Field: "name", Message: "is required"}
	}
	if len(name) > 100 {
		return core.Category{}, &core.ValidationError{Field: "name", Message: "cannot exceed 100 characters"}
	}
	if color == "" {
		color = core.DefaultCategoryColor
	}

	exists, err := s.storage.CategoryNameExists(ctx, actorID, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("check category name: %w", err)
	}
	if exists {
		return core.Category{}, core.ErrCategoryExists
	}

	c := core.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		IsDefault: false,
		OwnerID:   &actorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.storage.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Custom category created", "id", c.ID, "name", c.Name, "owner_id", actorID)
	return c, nil
}
