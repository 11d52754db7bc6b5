package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface.
// Using a fake (not a mock framework) keeps tests dependency-free and easy
// to read: you can see exactly what the fake does.
type fakeStore struct {
	users       map[int64]*model.User
	tags        []model.Tag
	ingredients []model.Ingredient
	recipes     map[int64]*model.RecipeRecord
	relations   map[model.RelationKind]map[[2]int64]bool
	follows     map[[2]int64]bool
	nextID      int64
	clock       time.Time

	// stolenCodes makes CreateRecipe fail with ErrShortCodeTaken once per
	// code, as if another request inserted it after the pre-check.
	stolenCodes map[string]bool
	// set to a non-nil error to simulate a database failure
	createUserErr error
	listErr       error
}

var (
	_ repository.UserRepository         = (*fakeStore)(nil)
	_ repository.TagRepository          = (*fakeStore)(nil)
	_ repository.IngredientRepository   = (*fakeStore)(nil)
	_ repository.RecipeRepository       = (*fakeStore)(nil)
	_ repository.RelationRepository     = (*fakeStore)(nil)
	_ repository.FollowRepository       = (*fakeStore)(nil)
	_ repository.ShoppingListRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*model.User),
		recipes: make(map[int64]*model.RecipeRecord),
		relations: map[model.RelationKind]map[[2]int64]bool{
			model.Favorite:     {},
			model.ShoppingCart: {},
		},
		follows:     make(map[[2]int64]bool),
		stolenCodes: make(map[string]bool),
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// tick returns strictly increasing timestamps so "newest first" is stable.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.AlreadyExists("a user with this email already exists")
		}
		if u.Username == user.Username {
			return apperror.AlreadyExists("a user with this username already exists")
		}
	}
	user.ID = f.id()
	user.CreatedAt = f.tick()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", githubID)
}

func (f *fakeStore) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	all := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), len(all), nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) UpdateAvatar(_ context.Context, id int64, avatar string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Avatar = avatar
	return nil
}

// --- tags and ingredients ---

func (f *fakeStore) ListTags(_ context.Context, slug string) ([]model.Tag, error) {
	out := make([]model.Tag, 0, len(f.tags))
	for _, t := range f.tags {
		if slug == "" || t.Slug == slug {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTagByID(_ context.Context, id int64) (*model.Tag, error) {
	for _, t := range f.tags {
		if t.ID == id {
			copied := t
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("tag", id)
}

func (f *fakeStore) CountTags(_ context.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		for _, t := range f.tags {
			if t.ID == id {
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeStore) ImportTags(_ context.Context, tags []model.Tag) (int, error) {
	inserted := 0
outer:
	for _, t := range tags {
		for _, existing := range f.tags {
			if existing.Name == t.Name || existing.Slug == t.Slug {
				continue outer
			}
		}
		t.ID = f.id()
		f.tags = append(f.tags, t)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) ListIngredients(_ context.Context, prefix string) ([]model.Ingredient, error) {
	out := make([]model.Ingredient, 0, len(f.ingredients))
	for _, i := range f.ingredients {
		if strings.HasPrefix(strings.ToLower(i.Name), strings.ToLower(prefix)) {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (f *fakeStore) GetIngredientByID(_ context.Context, id int64) (*model.Ingredient, error) {
	if i, ok := f.ingredient(id); ok {
		return &i, nil
	}
	return nil, apperror.NotFound("ingredient", id)
}

func (f *fakeStore) CountIngredients(_ context.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := f.ingredient(id); ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ImportIngredients(_ context.Context, ingredients []model.Ingredient) (int, error) {
	inserted := 0
outer:
	for _, i := range ingredients {
		for _, existing := range f.ingredients {
			if existing.Name == i.Name && existing.MeasurementUnit == i.MeasurementUnit {
				continue outer
			}
		}
		i.ID = f.id()
		f.ingredients = append(f.ingredients, i)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) ingredient(id int64) (model.Ingredient, bool) {
	for _, i := range f.ingredients {
		if i.ID == id {
			return i, true
		}
	}
	return model.Ingredient{}, false
}

// --- recipes ---

func (f *fakeStore) CreateRecipe(_ context.Context, rec *model.RecipeRecord) error {
	if f.stolenCodes[rec.ShortCode] {
		delete(f.stolenCodes, rec.ShortCode)
		return repository.ErrShortCodeTaken
	}
	for _, r := range f.recipes {
		if r.ShortCode == rec.ShortCode {
			return repository.ErrShortCodeTaken
		}
	}
	rec.ID = f.id()
	rec.CreatedAt = f.tick()
	copied := *rec
	f.recipes[rec.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateRecipe(_ context.Context, rec *model.RecipeRecord) error {
	existing, ok := f.recipes[rec.ID]
	if !ok {
		return apperror.NotFound("recipe", rec.ID)
	}
	existing.Name = rec.Name
	existing.Text = rec.Text
	existing.Image = rec.Image
	existing.CookingTime = rec.CookingTime
	if rec.TagIDs != nil {
		existing.TagIDs = rec.TagIDs
	}
	if rec.Ingredients != nil {
		existing.Ingredients = rec.Ingredients
	}
	return nil
}

func (f *fakeStore) DeleteRecipe(_ context.Context, id int64) error {
	if _, ok := f.recipes[id]; !ok {
		return apperror.NotFound("recipe", id)
	}
	delete(f.recipes, id)
	for _, rel := range f.relations {
		for k := range rel {
			if k[1] == id {
				delete(rel, k)
			}
		}
	}
	return nil
}

func (f *fakeStore) GetRecipeRecord(_ context.Context, id int64) (*model.RecipeRecord, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, apperror.NotFound("recipe", id)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) GetRecipe(_ context.Context, id, viewerID int64) (*model.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, apperror.NotFound("recipe", id)
	}
	recipe := f.view(r, viewerID)
	return &recipe, nil
}

func (f *fakeStore) ListRecipes(_ context.Context, filter repository.RecipeFilter) ([]model.Recipe, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var matched []model.Recipe
	for _, r := range f.recipes {
		v := f.view(r, filter.ViewerID)
		if filter.AuthorID != 0 && r.AuthorID != filter.AuthorID {
			continue
		}
		if filter.OnlyFavorited && !v.IsFavorited {
			continue
		}
		if filter.OnlyInCart && !v.IsInShoppingCart {
			continue
		}
		if len(filter.TagSlugs) > 0 && !hasAnySlug(v.Tags, filter.TagSlugs) {
			continue
		}
		matched = append(matched, v)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filter.ListOptions), len(matched), nil
}

func (f *fakeStore) ListRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.RecipeShort, int, error) {
	all, total, _ := f.ListRecipes(ctx, repository.RecipeFilter{AuthorID: authorID})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	shorts := make([]model.RecipeShort, 0, len(all))
	for i := range all {
		shorts = append(shorts, all[i].Short())
	}
	return shorts, total, nil
}

func (f *fakeStore) GetRecipeIDByShortCode(_ context.Context, code string) (int64, error) {
	for _, r := range f.recipes {
		if r.ShortCode == code {
			return r.ID, nil
		}
	}
	return 0, apperror.NotExists("no recipe with short code " + code)
}

func (f *fakeStore) ShortCodeExists(_ context.Context, code string) (bool, error) {
	for _, r := range f.recipes {
		if r.ShortCode == code {
			return true, nil
		}
	}
	return false, nil
}

// view renders a stored recipe the way the SQL layer does.
func (f *fakeStore) view(r *model.RecipeRecord, viewerID int64) model.Recipe {
	author := f.users[r.AuthorID]
	recipe := model.Recipe{
		ID:               r.ID,
		Author:           model.NewProfile(author, f.follows[[2]int64{viewerID, r.AuthorID}]),
		IsFavorited:      f.relations[model.Favorite][[2]int64{viewerID, r.ID}],
		IsInShoppingCart: f.relations[model.ShoppingCart][[2]int64{viewerID, r.ID}],
		Name:             r.Name,
		Image:            r.Image,
		Text:             r.Text,
		CookingTime:      r.CookingTime,
		ShortCode:        r.ShortCode,
		CreatedAt:        r.CreatedAt,
		Tags:             []model.Tag{},
		Ingredients:      []model.RecipeIngredient{},
	}
	for _, t := range f.tags {
		for _, id := range r.TagIDs {
			if t.ID == id {
				recipe.Tags = append(recipe.Tags, t)
			}
		}
	}
	for _, line := range r.Ingredients {
		ing, _ := f.ingredient(line.IngredientID)
		recipe.Ingredients = append(recipe.Ingredients, model.RecipeIngredient{
			ID:              ing.ID,
			Name:            ing.Name,
			MeasurementUnit: ing.MeasurementUnit,
			Amount:          line.Amount,
		})
	}
	sort.SliceStable(recipe.Ingredients, func(i, j int) bool {
		return recipe.Ingredients[i].Name < recipe.Ingredients[j].Name
	})
	return recipe
}

func hasAnySlug(tags []model.Tag, slugs []string) bool {
	for _, t := range tags {
		for _, s := range slugs {
			if t.Slug == s {
				return true
			}
		}
	}
	return false
}

// --- relations and follows ---

func (f *fakeStore) AddRelation(_ context.Context, kind model.RelationKind, userID, recipeID int64) error {
	key := [2]int64{userID, recipeID}
	if f.relations[kind][key] {
		return apperror.AlreadyExists(kind.AlreadyMessage())
	}
	f.relations[kind][key] = true
	return nil
}

func (f *fakeStore) RemoveRelation(_ context.Context, kind model.RelationKind, userID, recipeID int64) error {
	key := [2]int64{userID, recipeID}
	if !f.relations[kind][key] {
		return apperror.NotExists(kind.MissingMessage())
	}
	delete(f.relations[kind], key)
	return nil
}

func (f *fakeStore) RelationExists(_ context.Context, kind model.RelationKind, userID, recipeID int64) (bool, error) {
	return f.relations[kind][[2]int64{userID, recipeID}], nil
}

func (f *fakeStore) CreateFollow(_ context.Context, followerID, authorID int64) error {
	if followerID == authorID {
		return apperror.AlreadyExists(model.MsgSelfFollow)
	}
	key := [2]int64{followerID, authorID}
	if f.follows[key] {
		return apperror.AlreadyExists(model.MsgAlreadyFollowed)
	}
	f.follows[key] = true
	return nil
}

func (f *fakeStore) DeleteFollow(_ context.Context, followerID, authorID int64) error {
	key := [2]int64{followerID, authorID}
	if !f.follows[key] {
		return apperror.NotExists(model.MsgNotFollowed)
	}
	delete(f.follows, key)
	return nil
}

func (f *fakeStore) FollowExists(_ context.Context, followerID, authorID int64) (bool, error) {
	return f.follows[[2]int64{followerID, authorID}], nil
}

func (f *fakeStore) ListFollowedAuthors(_ context.Context, followerID int64, opts repository.ListOptions) ([]model.User, int, error) {
	var authors []model.User
	for key := range f.follows {
		if key[0] == followerID {
			authors = append(authors, *f.users[key[1]])
		}
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i].ID < authors[j].ID })
	return paginate(authors, opts), len(authors), nil
}

// --- shopping list ---

func (f *fakeStore) ShoppingList(_ context.Context, userID int64) ([]model.ShoppingItem, error) {
	var lines []model.RecipeIngredient
	for key := range f.relations[model.ShoppingCart] {
		if key[0] != userID {
			continue
		}
		lines = append(lines, f.view(f.recipes[key[1]], userID).Ingredients...)
	}
	return aggregateShopping(lines), nil
}

// aggregateShopping sums lines by (name, unit) and sorts by name, then unit,
// as the SQL GROUP BY in the sqlite store does.
func aggregateShopping(lines []model.RecipeIngredient) []model.ShoppingItem {
	type key struct{ name, unit string }
	totals := make(map[key]int)
	for _, l := range lines {
		totals[key{l.Name, l.MeasurementUnit}] += l.Amount
	}

	items := make([]model.ShoppingItem, 0, len(totals))
	for k, amount := range totals {
		items = append(items, model.ShoppingItem{Name: k.name, MeasurementUnit: k.unit, Amount: amount})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MeasurementUnit < items[j].MeasurementUnit
	})
	return items
}

func paginate[T any](items []T, opts repository.ListOptions) []T {
	if opts.Limit <= 0 {
		return items
	}
	if opts.Offset >= len(items) {
		return []T{}
	}
	end := opts.Offset + opts.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[opts.Offset:end]
}

// memImages is an in-memory storage.Store.
type memImages struct {
	objects map[string][]byte
	saveErr error
}

func newMemImages() *memImages {
	return &memImages{objects: make(map[string][]byte)}
}

func (m *memImages) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	url := "/media/" + key
	m.objects[url] = data
	return url, nil
}

func (m *memImages) Delete(_ context.Context, url string) error {
	delete(m.objects, url)
	return nil
}

// pngURI is a 1x1 transparent PNG as a data URI.
const pngURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Cost 4 is the bcrypt minimum, which keeps hashing fast in tests.
func testPasswords() *auth.PasswordService {
	return auth.NewPasswordServiceForTest(4)
}

// seedUser inserts a user directly into the store and returns its ID.
func seedUser(t *testing.T, store *fakeStore, username string) int64 {
	t.Helper()
	hash, err := testPasswords().Hash("secret-" + username)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &model.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    "First",
		LastName:     "Last",
		PasswordHash: hash,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %q: %v", username, err)
	}
	return u.ID
}

// seedReference adds two tags and three ingredients and returns their IDs.
func seedReference(store *fakeStore) (tags, ingredients []int64) {
	ctx := context.Background()
	store.ImportTags(ctx, []model.Tag{
		{Name: "Breakfast", Slug: "breakfast"},
		{Name: "Dinner", Slug: "dinner"},
	})
	store.ImportIngredients(ctx, []model.Ingredient{
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "g"},
		{Name: "milk", MeasurementUnit: "ml"},
	})
	for _, t := range store.tags {
		tags = append(tags, t.ID)
	}
	for _, i := range store.ingredients {
		ingredients = append(ingredients, i.ID)
	}
	return tags, ingredients
}

func ptr[T any](v T) *T { return &v }

// validInput returns a create body that passes every check.
func validInput(tagIDs []int64, lines ...model.IngredientAmount) RecipeInput {
	return RecipeInput{
		Name:        ptr("Pancakes"),
		Text:        ptr("Mix and fry."),
		Image:       ptr(pngURI),
		CookingTime: ptr(20),
		Tags:        tagIDs,
		Ingredients: lines,
	}
}

// wantErr fails the test unless err wraps target.
func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want one wrapping %v", err, target)
	}
}

// wantField fails the test unless err is a validation error on field.
func wantField(t *testing.T, err error, field string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want a validation error", err)
	}
	if appErr.Field != field {
		t.Errorf("field = %q, want %q (message %q)", appErr.Field, field, appErr.Message)
	}
}
