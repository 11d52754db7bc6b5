package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// ReferenceService serves tags and ingredients. Both are read-only over the
// API; the loaddata command fills them through the Import methods.
type ReferenceService struct {
	tags        repository.TagRepository
	ingredients repository.IngredientRepository
	logger      *slog.Logger
}

func NewReferenceService(
	tags repository.TagRepository,
	ingredients repository.IngredientRepository,
	logger *slog.Logger,
) *ReferenceService {
	return &ReferenceService{tags: tags, ingredients: ingredients, logger: logger}
}

// ListTags returns every tag ordered by ID, or only the one with slug.
func (s *ReferenceService) ListTags(ctx context.Context, slug string) ([]model.Tag, error) {
	return s.tags.ListTags(ctx, strings.TrimSpace(slug))
}

func (s *ReferenceService) GetTag(ctx context.Context, id int64) (*model.Tag, error) {
	return s.tags.GetTagByID(ctx, id)
}

// ListIngredients returns ingredients ordered by name, optionally only those
// whose name starts with prefix (case-insensitive).
func (s *ReferenceService) ListIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	return s.ingredients.ListIngredients(ctx, strings.TrimSpace(prefix))
}

func (s *ReferenceService) GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error) {
	return s.ingredients.GetIngredientByID(ctx, id)
}

// ImportTags validates and loads tags, skipping ones that already exist.
// It returns how many were inserted.
func (s *ReferenceService) ImportTags(ctx context.Context, tags []model.Tag) (int, error) {
	for i := range tags {
		tags[i].Name = strings.TrimSpace(tags[i].Name)
		tags[i].Slug = strings.TrimSpace(tags[i].Slug)
		t := tags[i]
		switch {
		case t.Name == "" || len([]rune(t.Name)) > 35:
			return 0, apperror.ValidationFailed("name", fmt.Sprintf("tag %d: name must be 1 to 35 characters", i+1))
		case len(t.Slug) > MaxNameLength || !slugPattern.MatchString(t.Slug):
			return 0, apperror.ValidationFailed("slug", fmt.Sprintf("tag %d: invalid slug %q", i+1, t.Slug))
		}
	}
	n, err := s.tags.ImportTags(ctx, tags)
	if err != nil {
		return 0, fmt.Errorf("importing tags: %w", err)
	}
	s.logger.Info("tags imported", slog.Int("read", len(tags)), slog.Int("inserted", n))
	return n, nil
}

// ImportIngredients validates and loads ingredients, skipping (name, unit)
// pairs that already exist. It returns how many were inserted.
func (s *ReferenceService) ImportIngredients(ctx context.Context, ingredients []model.Ingredient) (int, error) {
	for i := range ingredients {
		ingredients[i].Name = strings.TrimSpace(ingredients[i].Name)
		ingredients[i].MeasurementUnit = strings.TrimSpace(ingredients[i].MeasurementUnit)
		ing := ingredients[i]
		if ing.Name == "" || len([]rune(ing.Name)) > MaxNameLength {
			return 0, apperror.ValidationFailed("name", fmt.Sprintf("ingredient %d: name must be 1 to %d characters", i+1, MaxNameLength))
		}
		if ing.MeasurementUnit == "" || len([]rune(ing.MeasurementUnit)) > MaxNameLength {
			return 0, apperror.ValidationFailed("measurement_unit", fmt.Sprintf("ingredient %d: unit must be 1 to %d characters", i+1, MaxNameLength))
		}
	}
	n, err := s.ingredients.ImportIngredients(ctx, ingredients)
	if err != nil {
		return 0, fmt.Errorf("importing ingredients: %w", err)
	}
	s.logger.Info("ingredients imported", slog.Int("read", len(ingredients)), slog.Int("inserted", n))
	return n, nil
}
