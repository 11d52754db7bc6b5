package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/shortcode"
)

// ShortLinkService builds and resolves recipe short links.
type ShortLinkService struct {
	recipes repository.RecipeRepository
	baseURL string
	logger  *slog.Logger
}

// NewShortLinkService creates the service. baseURL is the public origin of
// the site, e.g. "https://foodgram.example.com".
func NewShortLinkService(recipes repository.RecipeRepository, baseURL string, logger *slog.Logger) *ShortLinkService {
	return &ShortLinkService{
		recipes: recipes,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Link returns the absolute short URL of a recipe.
func (s *ShortLinkService) Link(ctx context.Context, recipeID int64) (string, error) {
	rec, err := s.recipes.GetRecipeRecord(ctx, recipeID)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/s/" + rec.ShortCode, nil
}

// Resolve maps a short code to its recipe ID. Matching is exact and
// case-sensitive. A code that cannot have been generated is rejected without
// touching the database.
func (s *ShortLinkService) Resolve(ctx context.Context, code string) (int64, error) {
	if !shortcode.Valid(code) {
		return 0, apperror.NotExists("no recipe with short code " + code)
	}
	return s.recipes.GetRecipeIDByShortCode(ctx, code)
}

// RecipePath is where a resolved short link redirects.
func RecipePath(recipeID int64) string {
	return fmt.Sprintf("/recipes/%d", recipeID)
}

// codeGenerator draws one candidate code. shortcode.Generate in production;
// tests substitute a scripted sequence to force collisions.
type codeGenerator func() (string, error)

// uniqueShortCode draws codes until one is not in use.
//
// There is no attempt limit: with 62^6 (about 5.7e10) possible codes a long
// run of collisions does not happen at any realistic table size. The check
// is only a pre-check; the UNIQUE constraint on recipes.short_code decides,
// and createWithShortCode retries on repository.ErrShortCodeTaken.
func uniqueShortCode(ctx context.Context, recipes repository.RecipeRepository, gen codeGenerator) (string, error) {
	for {
		code, err := gen()
		if err != nil {
			return "", fmt.Errorf("generating short code: %w", err)
		}
		taken, err := recipes.ShortCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking short code: %w", err)
		}
		if !taken {
			return code, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
}

// isShortCodeTaken reports whether a create failed only because another
// request claimed the same code in the meantime.
func isShortCodeTaken(err error) bool {
	return errors.Is(err, repository.ErrShortCodeTaken)
}
