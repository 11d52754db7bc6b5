package repository

import (
	"context"
	"errors"

	"github.com/sakif/foodgram/internal/model"
)

// ErrShortCodeTaken is returned (wrapped) by CreateRecipe when the recipe's
// short code collided with an existing one. The caller may retry with a new code.
var ErrShortCodeTaken = errors.New("short code already taken")

type ListOptions struct {
	Limit  int
	Offset int
}

// RecipeFilter narrows a recipe listing. Zero values mean "no filter".
// ViewerID is the requesting user (0 for anonymous) and drives both the
// favorited/in-cart filters and the per-viewer flags on each result.
type RecipeFilter struct {
	ListOptions
	ViewerID      int64
	AuthorID      int64
	TagSlugs      []string // any matching tag qualifies
	OnlyFavorited bool
	OnlyInCart    bool
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, int, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateAvatar(ctx context.Context, id int64, avatar string) error
}

type TagRepository interface {
	ListTags(ctx context.Context, slug string) ([]model.Tag, error)
	GetTagByID(ctx context.Context, id int64) (*model.Tag, error)
	CountTags(ctx context.Context, ids []int64) (int, error)
	ImportTags(ctx context.Context, tags []model.Tag) (int, error)
}

type IngredientRepository interface {
	ListIngredients(ctx context.Context, namePrefix string) ([]model.Ingredient, error)
	GetIngredientByID(ctx context.Context, id int64) (*model.Ingredient, error)
	CountIngredients(ctx context.Context, ids []int64) (int, error)
	ImportIngredients(ctx context.Context, ingredients []model.Ingredient) (int, error)
}

type RecipeRepository interface {
	// CreateRecipe stores the recipe row, its ingredient lines and its tags in
	// one transaction and fills rec.ID and rec.CreatedAt.
	CreateRecipe(ctx context.Context, rec *model.RecipeRecord) error
	// UpdateRecipe rewrites the recipe row and replaces the ingredient lines
	// (delete by recipe, then bulk insert) and tags in one transaction.
	UpdateRecipe(ctx context.Context, rec *model.RecipeRecord) error
	DeleteRecipe(ctx context.Context, id int64) error
	GetRecipeRecord(ctx context.Context, id int64) (*model.RecipeRecord, error)
	GetRecipe(ctx context.Context, id, viewerID int64) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, int, error)
	ListRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.RecipeShort, int, error)
	GetRecipeIDByShortCode(ctx context.Context, code string) (int64, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
}

// RelationRepository stores favorites and shopping-cart entries. The row's
// presence is the whole state.
type RelationRepository interface {
	AddRelation(ctx context.Context, kind model.RelationKind, userID, recipeID int64) error
	RemoveRelation(ctx context.Context, kind model.RelationKind, userID, recipeID int64) error
	RelationExists(ctx context.Context, kind model.RelationKind, userID, recipeID int64) (bool, error)
}

type FollowRepository interface {
	CreateFollow(ctx context.Context, followerID, authorID int64) error
	DeleteFollow(ctx context.Context, followerID, authorID int64) error
	FollowExists(ctx context.Context, followerID, authorID int64) (bool, error)
	ListFollowedAuthors(ctx context.Context, followerID int64, opts ListOptions) ([]model.User, int, error)
}

type ShoppingListRepository interface {
	// ShoppingList returns the user's cart ingredients grouped by
	// (name, unit), amounts summed, ordered by name.
	ShoppingList(ctx context.Context, userID int64) ([]model.ShoppingItem, error)
}
