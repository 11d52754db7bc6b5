package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/shortcode"
	"github.com/sakif/foodgram/internal/storage"
)

// RecipeInput is the body of POST and PATCH /api/recipes/.
//
// Scalar fields are pointers so an update can tell "not sent" from "sent
// empty". On create every field is required. On update name, text, image and
// cooking_time may be omitted, but tags and ingredients must always be sent.
type RecipeInput struct {
	Name        *string                  `json:"name"         validate:"omitnil,min=1,max=150"`
	Text        *string                  `json:"text"         validate:"omitnil,min=1"`
	Image       *string                  `json:"image"`
	CookingTime *int                     `json:"cooking_time" validate:"omitnil,min=1,max=32000"`
	Tags        []int64                  `json:"tags"`
	Ingredients []model.IngredientAmount `json:"ingredients"  validate:"dive"`
}

// RecipeQuery is the filter set of GET /api/recipes/.
type RecipeQuery struct {
	PageRequest
	AuthorID      int64
	TagSlugs      []string
	OnlyFavorited bool
	OnlyInCart    bool
}

// RecipeService handles recipe CRUD and the composition rules.
type RecipeService struct {
	recipes     repository.RecipeRepository
	tags        repository.TagRepository
	ingredients repository.IngredientRepository
	images      storage.Store
	newCode     codeGenerator
	logger      *slog.Logger
}

func NewRecipeService(
	recipes repository.RecipeRepository,
	tags repository.TagRepository,
	ingredients repository.IngredientRepository,
	images storage.Store,
	logger *slog.Logger,
) *RecipeService {
	return &RecipeService{
		recipes:     recipes,
		tags:        tags,
		ingredients: ingredients,
		images:      images,
		newCode:     shortcode.Generate,
		logger:      logger,
	}
}

// Create validates the input, stores the image, assigns a short code and
// saves the recipe with its composition.
//
// ORDER OF CHECKS:
// Everything that can fail validation (fields, composition, referenced IDs,
// image decoding) runs before the first write, so a rejected request leaves
// nothing behind.
func (s *RecipeService) Create(ctx context.Context, authorID int64, in RecipeInput) (*model.Recipe, error) {
	if err := requireUser(authorID); err != nil {
		return nil, err
	}
	trimInput(&in)
	if err := requireFields(in); err != nil {
		return nil, err
	}
	if err := s.validateWrite(ctx, in); err != nil {
		return nil, err
	}
	img, err := decodeRecipeImage(*in.Image)
	if err != nil {
		return nil, err
	}

	imageURL, err := s.images.Save(ctx, storage.NewKey("recipes", img.Ext), img.Data, img.ContentType)
	if err != nil {
		s.logger.Error("failed to store recipe image", slog.String("error", err.Error()))
		return nil, fmt.Errorf("saving recipe image: %w", err)
	}

	rec := &model.RecipeRecord{
		AuthorID:    authorID,
		Name:        *in.Name,
		Text:        *in.Text,
		Image:       imageURL,
		CookingTime: *in.CookingTime,
		TagIDs:      in.Tags,
		Ingredients: in.Ingredients,
	}
	if err := s.createWithShortCode(ctx, rec); err != nil {
		s.discardImage(ctx, imageURL)
		s.logger.Error("failed to create recipe",
			slog.String("name", rec.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.Int64("id", rec.ID),
		slog.Int64("authorID", authorID),
		slog.String("shortCode", rec.ShortCode),
	)
	return s.recipes.GetRecipe(ctx, rec.ID, authorID)
}

// createWithShortCode assigns a fresh code and inserts. If another request
// took the same code between the pre-check and the insert, it draws again.
func (s *RecipeService) createWithShortCode(ctx context.Context, rec *model.RecipeRecord) error {
	for {
		code, err := uniqueShortCode(ctx, s.recipes, s.newCode)
		if err != nil {
			return err
		}
		rec.ShortCode = code
		err = s.recipes.CreateRecipe(ctx, rec)
		if !isShortCodeTaken(err) {
			return err
		}
		s.logger.Warn("short code collision, retrying", slog.String("code", code))
	}
}

// Update applies a partial update. Only the author may update a recipe.
// The short code and creation time never change.
func (s *RecipeService) Update(ctx context.Context, userID, recipeID int64, in RecipeInput) (*model.Recipe, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	rec, err := s.recipes.GetRecipeRecord(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if rec.AuthorID != userID {
		return nil, apperror.Forbidden("only the author can change this recipe")
	}

	trimInput(&in)
	if err := s.validateWrite(ctx, in); err != nil {
		return nil, err
	}

	var newImage *storage.Image
	if in.Image != nil {
		if newImage, err = decodeRecipeImage(*in.Image); err != nil {
			return nil, err
		}
	}

	if in.Name != nil {
		rec.Name = *in.Name
	}
	if in.Text != nil {
		rec.Text = *in.Text
	}
	if in.CookingTime != nil {
		rec.CookingTime = *in.CookingTime
	}
	rec.TagIDs = in.Tags
	rec.Ingredients = in.Ingredients

	oldImage := rec.Image
	if newImage != nil {
		url, err := s.images.Save(ctx, storage.NewKey("recipes", newImage.Ext), newImage.Data, newImage.ContentType)
		if err != nil {
			return nil, fmt.Errorf("saving recipe image: %w", err)
		}
		rec.Image = url
	}

	if err := s.recipes.UpdateRecipe(ctx, rec); err != nil {
		if rec.Image != oldImage {
			s.discardImage(ctx, rec.Image)
		}
		s.logger.Error("failed to update recipe",
			slog.Int64("id", recipeID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating recipe: %w", err)
	}
	if rec.Image != oldImage {
		s.discardImage(ctx, oldImage)
	}

	s.logger.Info("recipe updated", slog.Int64("id", recipeID))
	return s.recipes.GetRecipe(ctx, recipeID, userID)
}

// Delete removes a recipe. Only the author may delete it.
func (s *RecipeService) Delete(ctx context.Context, userID, recipeID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	rec, err := s.recipes.GetRecipeRecord(ctx, recipeID)
	if err != nil {
		return err
	}
	if rec.AuthorID != userID {
		return apperror.Forbidden("only the author can delete this recipe")
	}
	if err := s.recipes.DeleteRecipe(ctx, recipeID); err != nil {
		return err
	}
	s.discardImage(ctx, rec.Image)

	s.logger.Info("recipe deleted", slog.Int64("id", recipeID))
	return nil
}

// Get returns one recipe as seen by viewerID (0 for anonymous).
func (s *RecipeService) Get(ctx context.Context, viewerID, recipeID int64) (*model.Recipe, error) {
	return s.recipes.GetRecipe(ctx, recipeID, viewerID)
}

// List returns one page of recipes, newest first.
func (s *RecipeService) List(ctx context.Context, viewerID int64, q RecipeQuery) (Page[model.Recipe], error) {
	page := q.PageRequest.normalize()
	recipes, total, err := s.recipes.ListRecipes(ctx, repository.RecipeFilter{
		ListOptions:   page.listOptions(),
		ViewerID:      viewerID,
		AuthorID:      q.AuthorID,
		TagSlugs:      q.TagSlugs,
		OnlyFavorited: q.OnlyFavorited,
		OnlyInCart:    q.OnlyInCart,
	})
	if err != nil {
		s.logger.Error("failed to list recipes", slog.String("error", err.Error()))
		return Page[model.Recipe]{}, fmt.Errorf("listing recipes: %w", err)
	}
	return newPage(recipes, total, page), nil
}

// validateWrite runs the checks shared by create and update: field tags,
// composition shape, and existence of every referenced tag and ingredient.
func (s *RecipeService) validateWrite(ctx context.Context, in RecipeInput) error {
	if err := validateComposition(in.Tags, in.Ingredients); err != nil {
		return err
	}
	if err := validateStruct(in); err != nil {
		return err
	}

	n, err := s.tags.CountTags(ctx, in.Tags)
	if err != nil {
		return fmt.Errorf("checking tags: %w", err)
	}
	if n != len(in.Tags) {
		return apperror.ValidationFailed("tags", "one or more tags do not exist")
	}

	ids := make([]int64, len(in.Ingredients))
	for i, ing := range in.Ingredients {
		ids[i] = ing.IngredientID
	}
	n, err = s.ingredients.CountIngredients(ctx, ids)
	if err != nil {
		return fmt.Errorf("checking ingredients: %w", err)
	}
	if n != len(ids) {
		return apperror.ValidationFailed("ingredients", "one or more ingredients do not exist")
	}
	return nil
}

func (s *RecipeService) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to remove recipe image",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

// requireFields enforces that a create sends every scalar field.
func requireFields(in RecipeInput) error {
	switch {
	case in.Name == nil:
		return apperror.ValidationFailed("name", "this field is required")
	case in.Text == nil:
		return apperror.ValidationFailed("text", "this field is required")
	case in.CookingTime == nil:
		return apperror.ValidationFailed("cooking_time", "this field is required")
	case in.Image == nil || *in.Image == "":
		return apperror.ValidationFailed("image", "this field is required")
	}
	return nil
}

func trimInput(in *RecipeInput) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Text != nil {
		text := strings.TrimSpace(*in.Text)
		in.Text = &text
	}
}

func decodeRecipeImage(dataURI string) (*storage.Image, error) {
	img, err := storage.DecodeDataURI(dataURI)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			return nil, apperror.ValidationFailed("image", err.Error())
		}
		return nil, err
	}
	return img, nil
}
