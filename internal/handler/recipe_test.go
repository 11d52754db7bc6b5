package handler_test

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recipeJSON struct {
	ID     int64 `json:"id"`
	Author struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
	Tags []struct {
		Slug string `json:"slug"`
	} `json:"tags"`
	Ingredients []struct {
		ID              int64  `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	} `json:"ingredients"`
	IsFavorited      bool   `json:"is_favorited"`
	IsInShoppingCart bool   `json:"is_in_shopping_cart"`
	Name             string `json:"name"`
	Image            string `json:"image"`
	Text             string `json:"text"`
	CookingTime      int    `json:"cooking_time"`
}

type recipePage struct {
	Count   int          `json:"count"`
	Results []recipeJSON `json:"results"`
}

func TestCreateAndGetRecipe(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")

	rr := env.do(http.MethodPost, "/api/recipes/",
		recipeBody("Pancakes", tags, line(ingredients[2], 250), line(ingredients[1], 30)), alice)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created recipeJSON
	decode(t, rr, &created)
	assert.Equal(t, "Pancakes", created.Name)
	assert.Equal(t, alice, created.Author.ID)
	assert.Len(t, created.Tags, 2)
	require.Len(t, created.Ingredients, 2)
	assert.Equal(t, "ml", created.Ingredients[0].MeasurementUnit)
	assert.True(t, strings.HasPrefix(created.Image, "/media/recipes/"), created.Image)
	assert.NotContains(t, rr.Body.String(), "short_code")

	rr = env.do(http.MethodGet, recipePath(created.ID, ""), nil, 0)
	require.Equal(t, http.StatusOK, rr.Code)
	var fetched recipeJSON
	decode(t, rr, &fetched)
	assert.Equal(t, created, fetched)
}

func TestCreateRecipe_Validation(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"no tags", recipeBody("Soup", nil, line(ingredients[0], 1)), "tags"},
		{"no ingredients", recipeBody("Soup", tags), "ingredients"},
		{"duplicate ingredient", recipeBody("Soup", tags, line(ingredients[0], 1), line(ingredients[0], 2)), "ingredients"},
		{"unknown tag", recipeBody("Soup", []int64{999}, line(ingredients[0], 1)), "tags"},
		{"zero amount", recipeBody("Soup", tags, line(ingredients[0], 0)), "ingredients"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/api/recipes/", tt.body, alice)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tt.field, errorBody(t, rr).Field)
		})
	}
}

func TestCreateRecipe_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()

	rr := env.do(http.MethodPost, "/api/recipes/", recipeBody("Soup", tags, line(ingredients[0], 1)), 0)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateRecipe_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	token, err := env.tokens.Generate(alice)
	require.NoError(t, err)

	req := newRequest(http.MethodPost, "/api/recipes/")
	req.Body = http.NoBody
	req.Header.Set("Authorization", "Token "+token)
	rr := env.serve(req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "body", errorBody(t, rr).Field)
}

func TestUpdateRecipe(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	bob := env.register("bob")
	id := env.createRecipe(alice, "Soup", tags[:1], line(ingredients[0], 5))

	patch := map[string]any{
		"name":        "Better soup",
		"tags":        tags,
		"ingredients": []map[string]int64{line(ingredients[1], 7)},
	}

	rr := env.do(http.MethodPatch, recipePath(id, ""), patch, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(http.MethodPatch, recipePath(id, ""), map[string]any{
		"name":        "No tags",
		"ingredients": []map[string]int64{line(ingredients[1], 7)},
	}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "tags", errorBody(t, rr).Field)

	rr = env.do(http.MethodPatch, recipePath(id, ""), patch, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated recipeJSON
	decode(t, rr, &updated)
	assert.Equal(t, "Better soup", updated.Name)
	assert.Equal(t, "Mix everything.", updated.Text)
	assert.Equal(t, 15, updated.CookingTime)
	assert.Len(t, updated.Tags, 2)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "sugar", updated.Ingredients[0].Name)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPatch, recipePath(999, ""), patch, alice).Code)
}

func TestDeleteRecipe(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	bob := env.register("bob")
	id := env.createRecipe(alice, "Soup", tags[:1], line(ingredients[0], 5))

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, recipePath(id, ""), nil, bob).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, recipePath(id, ""), nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, recipePath(id, ""), nil, alice).Code)
}

func TestFavorite(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	bob := env.register("bob")
	id := env.createRecipe(bob, "Soup", tags[:1], line(ingredients[0], 5))

	rr := env.do(http.MethodPost, recipePath(id, "favorite/"), nil, alice)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var short map[string]any
	decode(t, rr, &short)
	assert.ElementsMatch(t, []string{"id", "name", "image", "cooking_time"}, keys(short))

	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, recipePath(id, "favorite/"), nil, alice).Code)

	rr = env.do(http.MethodGet, recipePath(id, ""), nil, alice)
	var seen recipeJSON
	decode(t, rr, &seen)
	assert.True(t, seen.IsFavorited)
	assert.False(t, seen.IsInShoppingCart)

	rr = env.do(http.MethodGet, "/api/recipes/?is_favorited=1", nil, alice)
	var page recipePage
	decode(t, rr, &page)
	assert.Equal(t, 1, page.Count)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, recipePath(id, "favorite/"), nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, recipePath(id, "favorite/"), nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, recipePath(999, "favorite/"), nil, alice).Code)
}

func TestListRecipes_Filters(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	bob := env.register("bob")
	breakfast := env.createRecipe(alice, "Porridge", tags[:1], line(ingredients[2], 200))
	env.createRecipe(bob, "Steak", tags[1:], line(ingredients[0], 3))
	env.createRecipe(bob, "Eggs", tags, line(ingredients[0], 1))

	list := func(query string, viewer int64) recipePage {
		t.Helper()
		rr := env.do(http.MethodGet, "/api/recipes/"+query, nil, viewer)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var page recipePage
		decode(t, rr, &page)
		return page
	}

	all := list("", 0)
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, "Eggs", all.Results[0].Name, "newest first")

	assert.Equal(t, 2, list("?author="+itoa(bob), 0).Count)
	assert.Equal(t, 2, list("?tags=breakfast", 0).Count)
	assert.Equal(t, 3, list("?tags=breakfast&tags=dinner", 0).Count)
	assert.Equal(t, 1, list("?tags=breakfast&author="+itoa(alice), 0).Count)

	anon := list("?is_favorited=1", 0)
	assert.Equal(t, 0, anon.Count)
	assert.NotNil(t, anon.Results)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, recipePath(breakfast, "shopping_cart/"), nil, bob).Code)
	inCart := list("?is_in_shopping_cart=1", bob)
	require.Equal(t, 1, inCart.Count)
	assert.Equal(t, breakfast, inCart.Results[0].ID)
	assert.True(t, inCart.Results[0].IsInShoppingCart)

	rr := env.do(http.MethodGet, "/api/recipes/?author=bob", nil, 0)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestShortLink(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	id := env.createRecipe(alice, "Soup", tags[:1], line(ingredients[0], 5))

	rr := env.do(http.MethodGet, recipePath(id, "get-link/"), nil, 0)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body map[string]string
	decode(t, rr, &body)
	link := body["short-link"]
	require.True(t, strings.HasPrefix(link, "http://foodgram.test/s/"), link)

	code := strings.TrimPrefix(link, "http://foodgram.test")
	rr = env.do(http.MethodGet, code, nil, 0)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/recipes/"+itoa(id), rr.Header().Get("Location"))

	rr = env.do(http.MethodGet, recipePath(id, "get-link/"), nil, 0)
	var again map[string]string
	decode(t, rr, &again)
	assert.Equal(t, link, again["short-link"], "the link is stable")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/s/zzzzzz", nil, 0).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/s/not-a-code!", nil, 0).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, recipePath(999, "get-link/"), nil, 0).Code)
}

func TestDownloadShoppingCart(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	soup := env.createRecipe(alice, "Soup", tags[:1], line(ingredients[0], 5), line(ingredients[2], 100))
	stew := env.createRecipe(alice, "Stew", tags[:1], line(ingredients[0], 3))
	for _, id := range []int64{soup, stew} {
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, recipePath(id, "shopping_cart/"), nil, alice).Code)
	}

	rr := env.do(http.MethodGet, "/api/recipes/download_shopping_cart/", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="shopping_cart.csv"`)
	assert.Contains(t, rr.Body.String(), "salt (g),8")
	assert.Contains(t, rr.Body.String(), "milk (ml),100")

	rr = env.do(http.MethodGet, "/api/recipes/download_shopping_cart/?format=txt", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "salt  - 8(g)\n")

	rr = env.do(http.MethodGet, "/api/recipes/download_shopping_cart/?format=pdf", nil, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "format", errorBody(t, rr).Field)

	assert.Equal(t, http.StatusUnauthorized,
		env.do(http.MethodGet, "/api/recipes/download_shopping_cart/", nil, 0).Code)
}

func TestDownloadShoppingCart_RepeatableAndReadOnly(t *testing.T) {
	env := newTestEnv(t)
	tags, ingredients := env.seedReference()
	alice := env.register("alice")
	soup := env.createRecipe(alice, "Soup", tags[:1], line(ingredients[0], 5), line(ingredients[2], 100))
	stew := env.createRecipe(alice, "Stew", tags[:1], line(ingredients[0], 3), line(ingredients[1], 10))
	for _, id := range []int64{soup, stew} {
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, recipePath(id, "shopping_cart/"), nil, alice).Code)
	}

	for _, format := range []string{"csv", "txt"} {
		path := "/api/recipes/download_shopping_cart/?format=" + format
		first := env.do(http.MethodGet, path, nil, alice)
		require.Equal(t, http.StatusOK, first.Code, first.Body.String())
		second := env.do(http.MethodGet, path, nil, alice)
		require.Equal(t, http.StatusOK, second.Code, second.Body.String())
		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), format)
	}

	rr := env.do(http.MethodGet, "/api/recipes/?is_in_shopping_cart=1", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cart recipePage
	decode(t, rr, &cart)
	assert.Equal(t, 2, cart.Count, "downloading must not empty the cart")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
