package model

// Tag is static reference data used to categorise recipes.
// Name and Slug are each unique, and the pair is jointly unique.
type Tag struct {
	ID   int64  `json:"id"   yaml:"-"`
	Name string `json:"name" yaml:"name"`
	Slug string `json:"slug" yaml:"slug"`
}
