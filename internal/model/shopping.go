package model

// ShoppingItem is one line of the aggregated shopping list: the summed amount
// of an ingredient across every recipe in a user's cart.
type ShoppingItem struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}
