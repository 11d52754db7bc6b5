package service

import (
	"context"
	"testing"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
)

func TestShoppingList_SumsAcrossCart(t *testing.T) {
	f := newRecipeFixture(t)
	// salt 5 + sugar 10, and salt 3 on its own
	first := f.create(t, validInput(f.tags, f.line(0, 5), f.line(1, 10)))
	second := f.create(t, validInput(f.tags, f.line(0, 3)))
	f.create(t, validInput(f.tags, f.line(2, 100))) // never added to the cart

	relations := NewRelationService(f.store, f.store, testLogger())
	svc := NewShoppingService(f.store, testLogger())
	ctx := context.Background()

	for _, id := range []int64{first.ID, second.ID} {
		if _, err := relations.Add(ctx, model.ShoppingCart, f.other, id); err != nil {
			t.Fatalf("Add(%d) error = %v", id, err)
		}
	}

	items, err := svc.List(ctx, f.other)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []model.ShoppingItem{
		{Name: "salt", MeasurementUnit: "g", Amount: 8},
		{Name: "sugar", MeasurementUnit: "g", Amount: 10},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %+v, want %+v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}

	// Reading the list does not change the cart.
	again, err := svc.List(ctx, f.other)
	if err != nil || len(again) != len(items) {
		t.Errorf("second List() = %v, %v", again, err)
	}
}

func TestShoppingList_EmptyCartAndAnonymous(t *testing.T) {
	f := newRecipeFixture(t)
	svc := NewShoppingService(f.store, testLogger())

	items, err := svc.List(context.Background(), f.other)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}

	_, err = svc.List(context.Background(), 0)
	wantErr(t, err, apperror.ErrUnauthorized)
}
