package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// RelationService toggles favorites and shopping-cart entries. Both are the
// same state machine over a (user, recipe) row: absent → present on add,
// present → absent on remove, anything else is an error.
type RelationService struct {
	recipes   repository.RecipeRepository
	relations repository.RelationRepository
	logger    *slog.Logger
}

func NewRelationService(
	recipes repository.RecipeRepository,
	relations repository.RelationRepository,
	logger *slog.Logger,
) *RelationService {
	return &RelationService{
		recipes:   recipes,
		relations: relations,
		logger:    logger,
	}
}

// Add links the recipe to the user and returns the recipe's short form.
// Unknown recipe → NotFound; already linked → Conflict.
func (s *RelationService) Add(ctx context.Context, kind model.RelationKind, userID, recipeID int64) (*model.RecipeShort, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	recipe, err := s.recipes.GetRecipe(ctx, recipeID, userID)
	if err != nil {
		return nil, err
	}

	exists, err := s.relations.RelationExists(ctx, kind, userID, recipeID)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", kind, err)
	}
	if exists {
		return nil, apperror.AlreadyExists(kind.AlreadyMessage())
	}

	// A concurrent add can still win between the check and here; the unique
	// constraint turns that into the same Conflict.
	if err := s.relations.AddRelation(ctx, kind, userID, recipeID); err != nil {
		return nil, err
	}

	s.logger.Info("relation added",
		slog.String("kind", string(kind)),
		slog.Int64("userID", userID),
		slog.Int64("recipeID", recipeID),
	)
	short := recipe.Short()
	return &short, nil
}

// Remove unlinks the recipe. Unknown recipe or missing link → NotFound.
func (s *RelationService) Remove(ctx context.Context, kind model.RelationKind, userID, recipeID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := s.recipes.GetRecipeRecord(ctx, recipeID); err != nil {
		return err
	}
	if err := s.relations.RemoveRelation(ctx, kind, userID, recipeID); err != nil {
		return err
	}

	s.logger.Info("relation removed",
		slog.String("kind", string(kind)),
		slog.Int64("userID", userID),
		slog.Int64("recipeID", recipeID),
	)
	return nil
}
