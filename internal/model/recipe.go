package model

import "time"

// Recipe is the full representation of a recipe as seen by a viewer.
//
// IsFavorited and IsInShoppingCart describe the viewer's relation to the
// recipe and are always false for anonymous viewers. ShortCode is assigned
// once at creation and never changes; it is not part of the JSON body (the
// get-link endpoint exposes it as a URL).
type Recipe struct {
	ID               int64              `json:"id"`
	Tags             []Tag              `json:"tags"`
	Author           Profile            `json:"author"`
	Ingredients      []RecipeIngredient `json:"ingredients"`
	IsFavorited      bool               `json:"is_favorited"`
	IsInShoppingCart bool               `json:"is_in_shopping_cart"`
	Name             string             `json:"name"`
	Image            string             `json:"image"`
	Text             string             `json:"text"`
	CookingTime      int                `json:"cooking_time"`
	ShortCode        string             `json:"-"`
	CreatedAt        time.Time          `json:"-"`
}

// RecipeShort is the compact form used in favorite/cart responses and in
// subscription listings.
type RecipeShort struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// Short returns the compact form of r.
func (r *Recipe) Short() RecipeShort {
	return RecipeShort{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}

// RecipeRecord is the write-side row of the recipes table together with the
// composition that must be stored alongside it.
type RecipeRecord struct {
	ID          int64
	AuthorID    int64
	Name        string
	Text        string
	Image       string
	CookingTime int
	ShortCode   string
	CreatedAt   time.Time
	TagIDs      []int64
	Ingredients []IngredientAmount
}

// RelationKind names a user-recipe presence relation.
type RelationKind string

const (
	Favorite     RelationKind = "favorite"
	ShoppingCart RelationKind = "shopping_cart"
)

// AlreadyMessage is the caller-facing reason an add is rejected because the
// relation is already present.
func (k RelationKind) AlreadyMessage() string {
	if k == Favorite {
		return "recipe is already in favorites"
	}
	return "recipe is already in the shopping cart"
}

// MissingMessage is the caller-facing reason a remove is rejected because the
// relation is absent.
func (k RelationKind) MissingMessage() string {
	if k == Favorite {
		return "recipe is not in favorites"
	}
	return "recipe is not in the shopping cart"
}
