package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/handler"
	"github.com/sakif/foodgram/internal/model"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
	"github.com/sakif/foodgram/internal/storage"
)

// testEnv is the whole API stack over an in-memory SQLite database and a
// temporary media directory. Requests go through a chi router so URL
// parameters and the auth middleware behave as in production.
type testEnv struct {
	t      *testing.T
	router http.Handler
	db     *sqliteRepo.DB
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := storage.NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", 0)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	users := service.NewUserService(db, db, passwords, images, logger)
	follows := service.NewFollowService(db, db, db, logger)
	authSvc := service.NewAuthService(db, tokens, passwords, logger)
	recipes := service.NewRecipeService(db, db, db, images, logger)
	relations := service.NewRelationService(db, db, logger)
	shoppingSvc := service.NewShoppingService(db, logger)
	links := service.NewShortLinkService(db, "http://foodgram.test", logger)
	refs := service.NewReferenceService(db, db, logger)

	authH := handler.NewAuthHandler(authSvc, nil, tokens.TTL(), logger)
	userH := handler.NewUserHandler(users, follows, logger)
	recipeH := handler.NewRecipeHandler(recipes, relations, shoppingSvc, links, logger)
	refH := handler.NewReferenceHandler(refs)
	linkH := handler.NewShortLinkHandler(links, logger)

	r := chi.NewRouter()
	r.Get("/s/{code}", linkH.HandleRedirect)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/token/login/", authH.HandleTokenLogin)
		r.Get("/tags/", refH.HandleListTags)
		r.Get("/tags/{id}/", refH.HandleGetTag)
		r.Get("/ingredients/", refH.HandleListIngredients)
		r.Get("/ingredients/{id}/", refH.HandleGetIngredient)

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/users/", userH.HandleList)
			r.Post("/users/", userH.HandleRegister)
			r.Get("/users/{id}/", userH.HandleGet)
			r.Get("/recipes/", recipeH.HandleList)
			r.Get("/recipes/{id}/", recipeH.HandleGet)
			r.Get("/recipes/{id}/get-link/", recipeH.HandleGetLink)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/auth/token/logout/", authH.HandleTokenLogout)
			r.Get("/users/me/", userH.HandleMe)
			r.Post("/users/set_password/", userH.HandleSetPassword)
			r.Put("/users/me/avatar/", userH.HandleSetAvatar)
			r.Delete("/users/me/avatar/", userH.HandleDeleteAvatar)
			r.Get("/users/subscriptions/", userH.HandleSubscriptions)
			r.Post("/users/{id}/subscribe/", userH.HandleSubscribe)
			r.Delete("/users/{id}/subscribe/", userH.HandleUnsubscribe)
			r.Post("/recipes/", recipeH.HandleCreate)
			r.Patch("/recipes/{id}/", recipeH.HandleUpdate)
			r.Delete("/recipes/{id}/", recipeH.HandleDelete)
			r.Get("/recipes/download_shopping_cart/", recipeH.HandleDownloadShoppingCart)
			r.Post("/recipes/{id}/favorite/", recipeH.HandleAddRelation(model.Favorite))
			r.Delete("/recipes/{id}/favorite/", recipeH.HandleRemoveRelation(model.Favorite))
			r.Post("/recipes/{id}/shopping_cart/", recipeH.HandleAddRelation(model.ShoppingCart))
			r.Delete("/recipes/{id}/shopping_cart/", recipeH.HandleRemoveRelation(model.ShoppingCart))
		})
	})

	return &testEnv{t: t, router: r, db: db, tokens: tokens}
}

// do sends a request as userID (0 = anonymous) and returns the recorder.
func (e *testEnv) do(method, path string, body any, userID int64) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := e.tokens.Generate(userID)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Token "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// register creates a user through the API and returns its ID.
func (e *testEnv) register(username string) int64 {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/users/", map[string]string{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "First",
		"last_name":  "Last",
		"password":   "pass-" + username,
	}, 0)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	var body struct {
		ID int64 `json:"id"`
	}
	decode(e.t, rr, &body)
	return body.ID
}

// seedReference loads tags breakfast/dinner and ingredients salt, sugar (g)
// and milk (ml), returning their IDs in that order.
func (e *testEnv) seedReference() (tags, ingredients []int64) {
	e.t.Helper()
	ctx := context.Background()
	_, err := e.db.ImportTags(ctx, []model.Tag{
		{Name: "Breakfast", Slug: "breakfast"},
		{Name: "Dinner", Slug: "dinner"},
	})
	require.NoError(e.t, err)
	_, err = e.db.ImportIngredients(ctx, []model.Ingredient{
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "g"},
		{Name: "milk", MeasurementUnit: "ml"},
	})
	require.NoError(e.t, err)

	allTags, err := e.db.ListTags(ctx, "")
	require.NoError(e.t, err)
	for _, t := range allTags {
		tags = append(tags, t.ID)
	}
	for _, name := range []string{"salt", "sugar", "milk"} {
		found, err := e.db.ListIngredients(ctx, name)
		require.NoError(e.t, err)
		require.Len(e.t, found, 1)
		ingredients = append(ingredients, found[0].ID)
	}
	return tags, ingredients
}

// createRecipe posts a recipe and returns its ID.
func (e *testEnv) createRecipe(authorID int64, name string, tagIDs []int64, lines ...map[string]int64) int64 {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/recipes/", recipeBody(name, tagIDs, lines...), authorID)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	var body struct {
		ID int64 `json:"id"`
	}
	decode(e.t, rr, &body)
	return body.ID
}

func recipeBody(name string, tagIDs []int64, lines ...map[string]int64) map[string]any {
	return map[string]any{
		"name":         name,
		"text":         "Mix everything.",
		"cooking_time": 15,
		"image":        pngURI,
		"tags":         tagIDs,
		"ingredients":  lines,
	}
}

func line(id int64, amount int64) map[string]int64 {
	return map[string]int64{"id": id, "amount": amount}
}

// pngURI is a 1x1 transparent PNG as a data URI.
const pngURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var e handler.ErrorResponse
	decode(t, rr, &e)
	return e
}

func recipePath(id int64, suffix string) string {
	return "/api/recipes/" + strconv.FormatInt(id, 10) + "/" + suffix
}

func userPath(id int64, suffix string) string {
	return "/api/users/" + strconv.FormatInt(id, 10) + "/" + suffix
}
