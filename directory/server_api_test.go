// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuumi-shop/yuumi/spatial"
)

type apiTest struct {
	router *gin.Engine
	repos  *repositories
	mailer *recordingMailer
	auth   *AuthService
	claims *ClaimService
}

func setupAPITest(t *testing.T) (*apiTest, func()) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, repos := setupTestDB(t)

	mailer := &recordingMailer{}
	auth := NewAuthService(repos.users, []byte("test-secret"))
	claims := NewClaimService(repos.stores, mailer)

	server := NewServer(repos.stores, repos.categories, repos.products,
		repos.hours, repos.images, repos.users,
		NewStoreService(repos.stores, nil),
		claims,
		auth,
		NewMenuBuilder(repos.stores, repos.categories, rand.New(rand.NewSource(1))),
		"localhost:0")

	return &apiTest{
		router: server.router(),
		repos:  repos,
		mailer: mailer,
		auth:   auth,
		claims: claims,
	}, func() { db.Close() }
}

func (a *apiTest) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))

	return payload
}

// registerAndLogin creates an account through the API and returns its token.
func (a *apiTest) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/inscription", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "motdepasse",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/connexion", gin.H{
		"username": username,
		"password": "motdepasse",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token, ok := decodeJSON(t, w)["token"].(string)
	require.True(t, ok, "missing token in login response")

	return token
}

func TestListDepartmentsAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	require.NoError(t, api.repos.stores.SaveStore(testStore("A", "Lyon", "Rhône", "a")))

	w := api.do(t, http.MethodGet, "/api/departements", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeJSON(t, w)
	assert.Equal(t, []any{"Rhône"}, payload["departements"])

	index, ok := payload["index"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Lyon"}, index["Rhône"])
}

func TestMenuAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	category := Category{Name: "Boulangerie", SuperCategory: "alimentation"}
	require.NoError(t, api.repos.categories.SaveCategory(&category))

	store := testStore("A", "Lyon", "Rhône", "a")
	store.CategoryID = &category.ID
	require.NoError(t, api.repos.stores.SaveStore(store))

	w := api.do(t, http.MethodGet, "/api/menu?path=/Rhône/Lyon", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeJSON(t, w)
	assert.Equal(t, "Rhône", payload["department"])
	assert.Equal(t, "Lyon", payload["city"])
	assert.Equal(t, []any{"Boulangerie"}, payload["categories"])

	groups, ok := payload["super_categories"].([]any)
	require.True(t, ok)
	assert.Len(t, groups, 3, "every super-category is present")
}

func TestStoreDetailAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("Boulangerie du Parc", "Lyon", "Rhône", "boulangerie-du-parc")
	require.NoError(t, api.repos.stores.SaveStore(store))

	require.NoError(t, api.repos.hours.SaveOpeningHour(&OpeningHour{
		StoreID: store.ID, Weekday: "lundi", MorningOpen: "07:00", MorningClose: "13:00"}))

	w := api.do(t, http.MethodGet, "/api/Rhône/Lyon/boulangerie-du-parc", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeJSON(t, w)
	commerce, ok := payload["commerce"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Boulangerie du Parc", commerce["name"])
	assert.Equal(t, false, payload["revendique"])
	assert.Equal(t, false, payload["favori"])

	hours, ok := payload["horaires"].([]any)
	require.True(t, ok)
	assert.Len(t, hours, 1)

	w = api.do(t, http.MethodGet, "/api/Rhône/Lyon/inconnu", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClaimAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	token := api.registerAndLogin(t, "margot")

	path := fmt.Sprintf("/api/commerces/%d/reclamer", store.ID)

	w := api.do(t, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "claims need a session")

	w = api.do(t, http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, api.mailer.sent, 1)
	assert.Contains(t, api.mailer.sent[0].body, "margot")

	// Second request inside the cooldown.
	w = api.do(t, http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	payload := decodeJSON(t, w)
	remaining, ok := payload["remaining_seconds"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 3600, remaining, 5)
	assert.Len(t, api.mailer.sent, 1)
}

func TestClaimAPIOwnedStore(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	user := &User{Username: "alice", Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, api.repos.users.CreateUser(user))
	require.NoError(t, api.repos.stores.SetOwner(store.ID, user.ID))

	token := api.registerAndLogin(t, "margot")

	w := api.do(t, http.MethodPost,
		fmt.Sprintf("/api/commerces/%d/reclamer", store.ID), nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, api.mailer.sent)
}

func TestClaimAPIMailFailure(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	token := api.registerAndLogin(t, "margot")

	api.mailer.err = fmt.Errorf("smtp unreachable")

	w := api.do(t, http.MethodPost,
		fmt.Sprintf("/api/commerces/%d/reclamer", store.ID), nil, token)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// The cooldown never started, so a retry succeeds.
	api.mailer.err = nil

	w = api.do(t, http.MethodPost,
		fmt.Sprintf("/api/commerces/%d/reclamer", store.ID), nil, token)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestFavoritesAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	token := api.registerAndLogin(t, "margot")

	path := fmt.Sprintf("/api/commerces/%d/favoris", store.ID)

	w := api.do(t, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "favorites need a session")

	w = api.do(t, http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "added", decodeJSON(t, w)["action"])

	w = api.do(t, http.MethodGet, "/api/mes-favoris", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	favorites, ok := decodeJSON(t, w)["favoris"].([]any)
	require.True(t, ok)
	assert.Len(t, favorites, 1)

	// Toggling again removes the mark.
	w = api.do(t, http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "removed", decodeJSON(t, w)["action"])
}

func TestUpdateStorePermissions(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	ownerToken := api.registerAndLogin(t, "owner")
	strangerToken := api.registerAndLogin(t, "stranger")

	owner, err := api.repos.users.GetUserByUsername("owner")
	require.NoError(t, err)
	require.NoError(t, api.repos.stores.SetOwner(store.ID, owner.ID))

	path := fmt.Sprintf("/api/commerces/%d", store.ID)

	update := gin.H{
		"name":              "A rénové",
		"city":              "Lyon",
		"department":        "Rhône",
		"slug":              "a",
		"short_description": "nouvelle description",
	}

	w := api.do(t, http.MethodPut, path, update, strangerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPut, path, update, ownerToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := api.repos.stores.GetStoreByID(store.ID)
	require.NoError(t, err)
	assert.Equal(t, "A rénové", got.Name)
	require.NotNil(t, got.OwnerID, "ownership survives an update")
	assert.Equal(t, owner.ID, *got.OwnerID)
}

func TestSuperuserCanEditAnyStore(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	api.registerAndLogin(t, "admin")

	_, err := api.repos.stores.DB().Exec(
		`UPDATE users SET is_superuser = TRUE WHERE username = 'admin'`)
	require.NoError(t, err)

	// Re-login so the token carries the superuser flag.
	w := api.do(t, http.MethodPost, "/api/connexion", gin.H{
		"username": "admin", "password": "motdepasse"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeJSON(t, w)["token"].(string)

	w = api.do(t, http.MethodPut, fmt.Sprintf("/api/commerces/%d", store.ID), gin.H{
		"name":       "A",
		"city":       "Lyon",
		"department": "Rhône",
		"slug":       "a",
	}, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestReplaceHoursAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("A", "Lyon", "Rhône", "a")
	require.NoError(t, api.repos.stores.SaveStore(store))

	token := api.registerAndLogin(t, "owner")

	owner, err := api.repos.users.GetUserByUsername("owner")
	require.NoError(t, err)
	require.NoError(t, api.repos.stores.SetOwner(store.ID, owner.ID))

	w := api.do(t, http.MethodPut,
		fmt.Sprintf("/api/commerces/%d/horaires", store.ID), gin.H{
			"horaires": []gin.H{
				{"weekday": "lundi", "morning_open": "08:00", "morning_close": "12:00"},
				{"weekday": "mardi", "morning_open": "08:00", "morning_close": "12:00"},
			},
		}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	hours, err := api.repos.hours.ListOpeningHours(store.ID)
	require.NoError(t, err)
	assert.Len(t, hours, 2)

	// A replacement drops the previous schedule.
	w = api.do(t, http.MethodPut,
		fmt.Sprintf("/api/commerces/%d/horaires", store.ID), gin.H{
			"horaires": []gin.H{
				{"weekday": "samedi", "morning_open": "09:00", "morning_close": "13:00"},
			},
		}, token)
	require.Equal(t, http.StatusOK, w.Code)

	hours, err = api.repos.hours.ListOpeningHours(store.ID)
	require.NoError(t, err)
	require.Len(t, hours, 1)
	assert.Equal(t, "samedi", hours[0].Weekday)
}

func TestReplaceImagesAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("Boulangerie du Parc", "Lyon", "Rhône", "boulangerie-du-parc")
	require.NoError(t, api.repos.stores.SaveStore(store))

	token := api.registerAndLogin(t, "owner")

	owner, err := api.repos.users.GetUserByUsername("owner")
	require.NoError(t, err)
	require.NoError(t, api.repos.stores.SetOwner(store.ID, owner.ID))

	w := api.do(t, http.MethodPut,
		fmt.Sprintf("/api/commerces/%d/images", store.ID), gin.H{
			"images": []gin.H{
				{"image": "/static/photos/devanture.jpg"},
				{"image": "/static/photos/vitrine.jpg"},
			},
		}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The gallery shows up on the public detail page.
	w = api.do(t, http.MethodGet, "/api/Rhône/Lyon/boulangerie-du-parc", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	images, ok := decodeJSON(t, w)["images"].([]any)
	require.True(t, ok)
	require.Len(t, images, 2)
	assert.Equal(t, "/static/photos/devanture.jpg",
		images[0].(map[string]any)["image"])

	// A replacement drops the previous gallery.
	w = api.do(t, http.MethodPut,
		fmt.Sprintf("/api/commerces/%d/images", store.ID), gin.H{
			"images": []gin.H{
				{"image": "/static/photos/nouvelle.jpg"},
			},
		}, token)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := api.repos.images.ListImages(store.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/static/photos/nouvelle.jpg", got[0].Image)
}

func TestProductSearchAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	store := testStore("Boulangerie du Parc", "Lyon", "Rhône", "boulangerie-du-parc")
	require.NoError(t, api.repos.stores.SaveStore(store))

	family := &ProductFamily{StoreID: store.ID, Name: "Pains"}
	require.NoError(t, api.repos.products.SaveFamily(family))
	require.NoError(t, api.repos.products.SaveProduct(
		&Product{FamilyID: family.ID, Name: "Baguette tradition"}))

	w := api.do(t, http.MethodGet, "/api/recherche-produit?q=baguette", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	results, ok := decodeJSON(t, w)["resultats"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)

	match := results[0].(map[string]any)
	assert.Equal(t, "Baguette tradition", match["product"])
	assert.Equal(t, "Boulangerie du Parc", match["store"])

	w = api.do(t, http.MethodGet, "/api/recherche-produit", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapViewAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	located := testStore("A", "Lyon", "Rhône", "a")
	located.Point = &spatial.Point{Lat: 45.7589, Lng: 4.8414}
	require.NoError(t, api.repos.stores.SaveStore(located))

	unlocated := testStore("B", "Lyon", "Rhône", "b")
	require.NoError(t, api.repos.stores.SaveStore(unlocated))

	w := api.do(t, http.MethodGet, "/api/carte/Rhône", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeJSON(t, w)
	markers, ok := payload["marqueurs"].([]any)
	require.True(t, ok)
	require.Len(t, markers, 1, "only stores with coordinates appear on the map")

	marker := markers[0].(map[string]any)
	assert.Equal(t, "A", marker["name"])
	assert.NotEmpty(t, marker["h3"])
}

func TestAutocompleteAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	require.NoError(t, api.repos.stores.SaveStore(testStore("A", "Lyon", "Rhône", "a")))
	require.NoError(t, api.repos.stores.SaveStore(testStore("B", "Lille", "Nord", "b")))

	category := Category{Name: "Boulangerie", SuperCategory: "alimentation"}
	require.NoError(t, api.repos.categories.SaveCategory(&category))

	w := api.do(t, http.MethodGet, "/api/autocomplete/villes?q=ly", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Lyon"}, decodeJSON(t, w)["resultats"])

	// Scoped to a department, the other city disappears even without q.
	w = api.do(t, http.MethodGet, "/api/autocomplete/villes?departement=Nord", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Lille"}, decodeJSON(t, w)["resultats"])

	// Accent-folded prefix match.
	w = api.do(t, http.MethodGet, "/api/autocomplete/departements?q=rho", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Rhône"}, decodeJSON(t, w)["resultats"])

	w = api.do(t, http.MethodGet, "/api/autocomplete/categories", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Boulangerie"}, decodeJSON(t, w)["resultats"])
}

func TestCreateStoreAPI(t *testing.T) {
	api, cleanup := setupAPITest(t)
	defer cleanup()

	token := api.registerAndLogin(t, "margot")

	w := api.do(t, http.MethodPost, "/api/commerces", gin.H{
		"name":              "Boulangerie du Parc",
		"city":              "Lyon",
		"department":        "Rhône",
		"short_description": "pains au levain",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	payload := decodeJSON(t, w)
	assert.Equal(t, "boulangerie-du-parc", payload["slug"])

	w = api.do(t, http.MethodPost, "/api/commerces", gin.H{
		"city": "Lyon", "department": "Rhône",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing name is rejected")
}
