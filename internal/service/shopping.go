package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// ShoppingService produces the consolidated shopping list of a user's cart.
// It only reads; calling it twice returns the same list.
type ShoppingService struct {
	lists  repository.ShoppingListRepository
	logger *slog.Logger
}

func NewShoppingService(lists repository.ShoppingListRepository, logger *slog.Logger) *ShoppingService {
	return &ShoppingService{lists: lists, logger: logger}
}

// List returns the cart's ingredients grouped by (name, unit), amounts summed,
// ordered by name. An empty cart gives an empty list.
func (s *ShoppingService) List(ctx context.Context, userID int64) ([]model.ShoppingItem, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	items, err := s.lists.ShoppingList(ctx, userID)
	if err != nil {
		s.logger.Error("failed to build shopping list",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("building shopping list: %w", err)
	}
	return items, nil
}
