package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
)

// Field bounds shared by the input types below.
const (
	MinValue          = 1     // smallest cooking time or ingredient amount
	MaxValue          = 32000 // largest cooking time or ingredient amount
	MaxNameLength     = 150
	MaxEmailLength    = 254
	MaxPasswordLength = 72 // bcrypt input limit
)

// usernamePattern allows letters, digits and @ . + - _ (Unicode letters too).
var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// DECLARATIVE VALIDATION:
// Input structs carry `validate:"..."` tags and one shared validator checks
// them. Business rules that need the database (does this tag exist?) or span
// several fields (no duplicate ingredient IDs) are checked by hand afterwards.
//
// The validator is safe for concurrent use and caches struct metadata, so
// one package-level instance serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name ("cooking_time", not "CookingTime"),
	// since that is what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs the tag rules on s and converts the first failure into
// a field-level apperror.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(topLevelField(fe.Namespace()), fieldMessage(fe))
}

// topLevelField turns "RecipeInput.ingredients[1].amount" into "ingredients".
func topLevelField(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	if i := strings.IndexAny(rest, ".["); i >= 0 {
		return rest[:i]
	}
	return rest
}

func fieldMessage(fe validator.FieldError) string {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "this field is required"
	case "email":
		msg = "enter a valid email address"
	case "username":
		msg = "enter a valid username: only letters, digits and @/./+/-/_ are allowed"
	case "max":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
		} else {
			msg = fmt.Sprintf("ensure this value is less than or equal to %s", fe.Param())
		}
	case "min":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
		} else {
			msg = fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param())
		}
	default:
		msg = fmt.Sprintf("failed the %q rule", fe.Tag())
	}
	// Nested failures name the inner field too: "amount: ensure this value ...".
	if strings.ContainsAny(fe.Namespace(), "[") {
		return fe.Field() + ": " + msg
	}
	return msg
}

// validateComposition checks the tag and ingredient lists of a recipe write.
//
// A nil slice means the field was not sent at all, which is a different
// mistake from sending an empty list, so it gets a different message.
// Existence of the referenced tags and ingredients is checked separately
// against the database.
func validateComposition(tagIDs []int64, ingredients []model.IngredientAmount) error {
	if tagIDs == nil {
		return apperror.ValidationFailed("tags", "this field is required")
	}
	if len(tagIDs) == 0 {
		return apperror.ValidationFailed("tags", "this field must not be empty")
	}
	if hasDuplicates(tagIDs) {
		return apperror.ValidationFailed("tags", "tag list contains duplicates")
	}

	if ingredients == nil {
		return apperror.ValidationFailed("ingredients", "this field is required")
	}
	if len(ingredients) == 0 {
		return apperror.ValidationFailed("ingredients", "this field must not be empty")
	}
	ids := make([]int64, len(ingredients))
	for i, ing := range ingredients {
		ids[i] = ing.IngredientID
	}
	if hasDuplicates(ids) {
		return apperror.ValidationFailed("ingredients", "ingredient list contains duplicates")
	}
	return nil
}

func hasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
