package model

// Ingredient is a named product with a measurement unit.
// The same name may appear more than once with different units.
type Ingredient struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

// RecipeIngredient is one ingredient line of a recipe: the ingredient plus the
// per-recipe amount stored on the junction row.
type RecipeIngredient struct {
	ID              int64  `json:"id"` // ingredient ID, not the junction row
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// IngredientAmount is the write-side form of a recipe ingredient line.
type IngredientAmount struct {
	IngredientID int64 `json:"id"     validate:"required"`
	Amount       int   `json:"amount" validate:"min=1,max=32000"`
}
