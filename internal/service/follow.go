package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// FollowService manages subscriptions between users.
type FollowService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	recipes repository.RecipeRepository
	logger  *slog.Logger
}

func NewFollowService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	recipes repository.RecipeRepository,
	logger *slog.Logger,
) *FollowService {
	return &FollowService{
		users:   users,
		follows: follows,
		recipes: recipes,
		logger:  logger,
	}
}

// Subscribe makes followerID follow authorID and returns the author's
// subscription view. recipesLimit bounds the embedded recipes; 0 means all.
//
// Checked in this order: self-follow, unknown author, existing edge.
func (s *FollowService) Subscribe(ctx context.Context, followerID, authorID int64, recipesLimit int) (*model.Subscription, error) {
	if err := requireUser(followerID); err != nil {
		return nil, err
	}
	if err := validateRecipesLimit(recipesLimit); err != nil {
		return nil, err
	}
	if followerID == authorID {
		return nil, apperror.AlreadyExists(model.MsgSelfFollow)
	}

	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}

	exists, err := s.follows.FollowExists(ctx, followerID, authorID)
	if err != nil {
		return nil, fmt.Errorf("checking subscription: %w", err)
	}
	if exists {
		return nil, apperror.AlreadyExists(model.MsgAlreadyFollowed)
	}
	if err := s.follows.CreateFollow(ctx, followerID, authorID); err != nil {
		return nil, err
	}

	s.logger.Info("subscribed",
		slog.Int64("followerID", followerID),
		slog.Int64("authorID", authorID),
	)
	return s.subscriptionOf(ctx, author, recipesLimit)
}

// Unsubscribe removes the edge. Unknown author or no edge → NotFound.
func (s *FollowService) Unsubscribe(ctx context.Context, followerID, authorID int64) error {
	if err := requireUser(followerID); err != nil {
		return err
	}
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return err
	}
	if err := s.follows.DeleteFollow(ctx, followerID, authorID); err != nil {
		return err
	}

	s.logger.Info("unsubscribed",
		slog.Int64("followerID", followerID),
		slog.Int64("authorID", authorID),
	)
	return nil
}

// Subscriptions lists the authors followerID follows, one page at a time.
func (s *FollowService) Subscriptions(ctx context.Context, followerID int64, page PageRequest, recipesLimit int) (Page[model.Subscription], error) {
	if err := requireUser(followerID); err != nil {
		return Page[model.Subscription]{}, err
	}
	if err := validateRecipesLimit(recipesLimit); err != nil {
		return Page[model.Subscription]{}, err
	}

	page = page.normalize()
	authors, total, err := s.follows.ListFollowedAuthors(ctx, followerID, page.listOptions())
	if err != nil {
		s.logger.Error("failed to list subscriptions", slog.String("error", err.Error()))
		return Page[model.Subscription]{}, fmt.Errorf("listing subscriptions: %w", err)
	}

	subs := make([]model.Subscription, 0, len(authors))
	for i := range authors {
		sub, err := s.subscriptionOf(ctx, &authors[i], recipesLimit)
		if err != nil {
			return Page[model.Subscription]{}, err
		}
		subs = append(subs, *sub)
	}
	return newPage(subs, total, page), nil
}

// subscriptionOf builds the view of an author the caller follows, so
// is_subscribed is always true.
func (s *FollowService) subscriptionOf(ctx context.Context, author *model.User, recipesLimit int) (*model.Subscription, error) {
	recipes, count, err := s.recipes.ListRecipesByAuthor(ctx, author.ID, recipesLimit)
	if err != nil {
		return nil, fmt.Errorf("listing recipes of author %d: %w", author.ID, err)
	}
	return &model.Subscription{
		Profile:      model.NewProfile(author, true),
		Recipes:      recipes,
		RecipesCount: count,
	}, nil
}

func validateRecipesLimit(limit int) error {
	if limit < 0 {
		return apperror.ValidationFailed("recipes_limit", "recipes_limit must be a non-negative integer")
	}
	return nil
}
