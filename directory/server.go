// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/uber/h3-go/v4"
	"github.com/yuumi-shop/yuumi/utils/textutils"
)

// Server exposes the directory over a JSON API.
type Server struct {
	stores     StoreRepository
	categories CategoryRepository
	products   ProductRepository
	hours      HourRepository
	images     ImageRepository
	users      UserRepository

	saver  *StoreService
	claims *ClaimService
	auth   *AuthService
	menu   *MenuBuilder

	addr string
}

// NewServer wires the API over the given services.
func NewServer(stores StoreRepository, categories CategoryRepository,
	products ProductRepository, hours HourRepository, images ImageRepository,
	users UserRepository,
	saver *StoreService, claims *ClaimService, auth *AuthService,
	menu *MenuBuilder, addr string) *Server {
	return &Server{
		stores:     stores,
		categories: categories,
		products:   products,
		hours:      hours,
		images:     images,
		users:      users,
		saver:      saver,
		claims:     claims,
		auth:       auth,
		menu:       menu,
		addr:       addr,
	}
}

// Run starts the HTTP listener.
func (s *Server) Run() error {
	return s.router().Run(s.addr)
}

func (s *Server) router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/departements", s.departmentIndex)
	r.GET("/api/menu", s.menuContext)
	r.GET("/api/carte/:departement", s.mapView)
	r.GET("/api/recherche-produit", s.searchProducts)
	r.GET("/api/autocomplete/departements", s.autocompleteDepartments)
	r.GET("/api/autocomplete/villes", s.autocompleteCities)
	r.GET("/api/autocomplete/categories", s.autocompleteCategories)

	r.GET("/api/:departement/villes", s.listCities)
	r.GET("/api/:departement/:ville/commerces", s.listStores)
	r.GET("/api/:departement/:ville/categories", s.categoryTiles)
	r.GET("/api/:departement/:ville/categorie/:slug", s.listStoresByCategory)
	r.GET("/api/:departement/:ville/:slug", s.storeDetail)

	r.POST("/api/inscription", s.register)
	r.POST("/api/connexion", s.login)

	authed := r.Group("/", s.requireAuth)
	authed.POST("/api/commerces", s.createStore)
	authed.PUT("/api/commerces/:id", s.updateStore)
	authed.PUT("/api/commerces/:id/horaires", s.replaceHours)
	authed.PUT("/api/commerces/:id/produits", s.replaceProducts)
	authed.PUT("/api/commerces/:id/images", s.replaceImages)
	authed.POST("/api/commerces/:id/reclamer", s.claimStore)
	authed.POST("/api/commerces/:id/favoris", s.toggleFavorite)
	authed.GET("/api/mes-favoris", s.listFavorites)
	authed.GET("/api/mon-commerce", s.myStore)

	return r
}

// mapError translates domain failures to HTTP statuses.
func mapError(ctx *gin.Context, err error) {
	var (
		validation *ValidationError
		cooldown   *CooldownActiveError
	)

	switch {
	case errors.As(err, &validation):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Message, "field": validation.Field})
	case errors.Is(err, ErrInvalidCredentials):
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, ErrPermissionDenied):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrAlreadyOwned):
		ctx.JSON(http.StatusConflict, gin.H{"error": "store already has an owner"})
	case errors.As(err, &cooldown):
		ctx.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "claim cooldown active",
			"remaining_seconds": cooldown.RemainingSeconds,
		})
	case errors.Is(err, ErrMailDelivery):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "notification delivery failed"})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

const identityKey = "identity"

// requireAuth extracts the bearer token and stores the caller identity in
// the request context.
func (s *Server) requireAuth(ctx *gin.Context) {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})

		return
	}

	identity, err := s.auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})

		return
	}

	ctx.Set(identityKey, identity)
	ctx.Next()
}

func currentIdentity(ctx *gin.Context) *Identity {
	v, ok := ctx.Get(identityKey)
	if !ok {
		return nil
	}

	identity, _ := v.(*Identity)

	return identity
}

// departmentIndex is the landing page payload: every department with its
// sorted city list.
func (s *Server) departmentIndex(ctx *gin.Context) {
	locations, err := s.stores.DistinctLocations()
	if err != nil {
		mapError(ctx, err)

		return
	}

	index := map[string][]string{}
	departments := []string{}

	for _, loc := range locations {
		department := textutils.TitleCase(loc.Department)
		if _, seen := index[department]; !seen {
			departments = append(departments, department)
		}

		index[department] = append(index[department], textutils.TitleCase(loc.City))
	}

	ctx.JSON(http.StatusOK, gin.H{"departements": departments, "index": index})
}

func (s *Server) listCities(ctx *gin.Context) {
	cities, err := s.stores.DistinctCities(ctx.Param("departement"))
	if err != nil {
		mapError(ctx, err)

		return
	}

	if cities == nil {
		cities = []string{}
	}

	ctx.JSON(http.StatusOK, gin.H{"villes": cities})
}

func (s *Server) menuContext(ctx *gin.Context) {
	menu, err := s.menu.MenuContext(ctx.Query("path"))
	if err != nil {
		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, menu)
}

func (s *Server) listStores(ctx *gin.Context) {
	filter := LocationFilter{
		Department: ctx.Param("departement"),
		City:       ctx.Param("ville"),
	}

	stores, err := s.stores.ListStores(filter)
	if err != nil {
		mapError(ctx, err)

		return
	}

	recent, err := s.stores.ListRecentStores(filter, 10)
	if err != nil {
		mapError(ctx, err)

		return
	}

	if stores == nil {
		stores = []*Store{}
	}

	if recent == nil {
		recent = []*Store{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"commerces":          stores,
		"derniers_arrivants": recent,
	})
}

func (s *Server) listStoresByCategory(ctx *gin.Context) {
	category, err := s.categories.GetCategoryBySlug(ctx.Param("slug"))
	if err != nil {
		mapError(ctx, err)

		return
	}

	all, err := s.stores.ListStores(LocationFilter{
		Department: ctx.Param("departement"),
		City:       ctx.Param("ville"),
	})
	if err != nil {
		mapError(ctx, err)

		return
	}

	stores := []*Store{}

	for _, store := range all {
		if store.CategoryID != nil && *store.CategoryID == category.ID {
			stores = append(stores, store)
		}
	}

	payload := gin.H{"categorie": category, "commerces": stores}
	if len(stores) == 0 {
		payload["message"] = "Aucun commerce dans cette catégorie pour le moment."
	}

	ctx.JSON(http.StatusOK, payload)
}

func (s *Server) categoryTiles(ctx *gin.Context) {
	tiles, err := s.menu.CategoryTiles(ctx.Param("departement"), ctx.Param("ville"))
	if err != nil {
		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, tiles)
}

func (s *Server) storeDetail(ctx *gin.Context) {
	store, err := s.stores.GetStoreBySlug(
		ctx.Param("departement"), ctx.Param("ville"), ctx.Param("slug"))
	if err != nil {
		mapError(ctx, err)

		return
	}

	hours, err := s.hours.ListOpeningHours(store.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	families, err := s.products.ListFamilies(store.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	images, err := s.images.ListImages(store.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	if hours == nil {
		hours = []OpeningHour{}
	}

	if families == nil {
		families = []ProductFamily{}
	}

	// The detail page is public; the favorite flag only appears for a
	// caller with a valid token.
	favorite := false

	if identity := s.optionalIdentity(ctx); identity != nil {
		favorite, err = s.users.IsFavorite(identity.ID, store.ID)
		if err != nil {
			mapError(ctx, err)

			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"commerce":   store,
		"horaires":   hours,
		"familles":   families,
		"images":     images,
		"revendique": ClaimStateOf(store).Kind == Claimed,
		"favori":     favorite,
	})
}

// optionalIdentity parses the bearer token when present, without failing
// the request when it is absent or invalid.
func (s *Server) optionalIdentity(ctx *gin.Context) *Identity {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}

	identity, err := s.auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil
	}

	return identity
}

// mapMarker is one store pin on the department map.
type mapMarker struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Slug  string  `json:"slug"`
	URL   string  `json:"url"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	H3Res string  `json:"h3,omitempty"`
}

func (s *Server) mapView(ctx *gin.Context) {
	stores, err := s.stores.ListStores(LocationFilter{Department: ctx.Param("departement")})
	if err != nil {
		mapError(ctx, err)

		return
	}

	byID, err := s.menu.categoryIndex()
	if err != nil {
		mapError(ctx, err)

		return
	}

	markers := []mapMarker{}
	cells := map[string]int{}
	categorySet := map[string]bool{}

	for _, store := range stores {
		if store.CategoryID != nil {
			if cat, ok := byID[*store.CategoryID]; ok {
				categorySet[cat.Name] = true
			}
		}

		if store.Point == nil {
			continue
		}

		marker := mapMarker{
			ID:   store.ID,
			Name: store.Name,
			Slug: store.Slug,
			URL:  store.URL(),
			Lat:  store.Point.Lat,
			Lng:  store.Point.Lng,
		}

		if store.H3Res5 != 0 {
			cell := h3.Cell(store.H3Res5).String()
			marker.H3Res = cell
			cells[cell]++
		}

		markers = append(markers, marker)
	}

	categories := make([]string, 0, len(categorySet))
	for name := range categorySet {
		categories = append(categories, name)
	}

	sort.Strings(categories)

	ctx.JSON(http.StatusOK, gin.H{
		"marqueurs":  markers,
		"cellules":   cells,
		"categories": categories,
	})
}

func (s *Server) searchProducts(ctx *gin.Context) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "q query parameter is required"})

		return
	}

	limit := 20

	if l := ctx.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 100 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})

			return
		}

		limit = parsed
	}

	matches, err := s.products.SearchProducts(query, limit)
	if err != nil {
		mapError(ctx, err)

		return
	}

	if matches == nil {
		matches = []ProductMatch{}
	}

	ctx.JSON(http.StatusOK, gin.H{"resultats": matches})
}

// matchesPrefix folds accents and case on both sides, so "herau" finds
// "Hérault". An empty query matches everything.
func matchesPrefix(value, query string) bool {
	if query == "" {
		return true
	}

	return strings.HasPrefix(textutils.LowerASCIIFolding(value), textutils.LowerASCIIFolding(query))
}

func (s *Server) autocompleteDepartments(ctx *gin.Context) {
	departments, err := s.stores.DistinctDepartments()
	if err != nil {
		mapError(ctx, err)

		return
	}

	query := ctx.Query("q")
	results := []string{}

	for _, department := range departments {
		if matchesPrefix(department, query) {
			results = append(results, department)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"resultats": results})
}

func (s *Server) autocompleteCities(ctx *gin.Context) {
	cities, err := s.stores.DistinctCities(ctx.Query("departement"))
	if err != nil {
		mapError(ctx, err)

		return
	}

	query := ctx.Query("q")
	results := []string{}

	for _, city := range cities {
		if matchesPrefix(city, query) {
			results = append(results, city)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"resultats": results})
}

func (s *Server) autocompleteCategories(ctx *gin.Context) {
	categories, err := s.categories.ListCategories()
	if err != nil {
		mapError(ctx, err)

		return
	}

	query := ctx.Query("q")
	results := []string{}

	for _, category := range categories {
		if matchesPrefix(category.Name, query) {
			results = append(results, category.Name)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"resultats": results})
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) register(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	user, err := s.auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusCreated, user)
}

func (s *Server) login(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) claimStore(ctx *gin.Context) {
	identity := currentIdentity(ctx)

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})

		return
	}

	if err := s.claims.RequestClaim(id, identity.Username); err != nil {
		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"status": "demande envoyée"})
}

func (s *Server) createStore(ctx *gin.Context) {
	var store Store
	if err := ctx.ShouldBindJSON(&store); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	store.ID = 0
	store.OwnerID = nil
	store.LastClaimRequest = nil

	if err := s.saver.Save(ctx.Request.Context(), &store); err != nil {
		if IsUniqueViolation(err) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})

			return
		}

		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusCreated, store)
}

// editableStore looks the store up and checks the caller may modify it.
func (s *Server) editableStore(ctx *gin.Context) (*Store, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})

		return nil, false
	}

	store, err := s.stores.GetStoreByID(id)
	if err != nil {
		mapError(ctx, err)

		return nil, false
	}

	identity := currentIdentity(ctx)
	if identity == nil ||
		(!identity.Superuser && (store.OwnerID == nil || *store.OwnerID != identity.ID)) {
		mapError(ctx, ErrPermissionDenied)

		return nil, false
	}

	return store, true
}

func (s *Server) updateStore(ctx *gin.Context) {
	store, ok := s.editableStore(ctx)
	if !ok {
		return
	}

	var update Store
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	// Ownership and claim bookkeeping are not submitter-editable.
	update.ID = store.ID
	update.OwnerID = store.OwnerID
	update.LastClaimRequest = store.LastClaimRequest
	update.CreatedAt = store.CreatedAt

	if err := s.saver.Save(ctx.Request.Context(), &update); err != nil {
		if IsUniqueViolation(err) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})

			return
		}

		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, update)
}

func (s *Server) replaceHours(ctx *gin.Context) {
	store, ok := s.editableStore(ctx)
	if !ok {
		return
	}

	var req struct {
		Horaires []OpeningHour `json:"horaires"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	existing, err := s.hours.ListOpeningHours(store.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	for _, hour := range existing {
		if err := s.hours.DeleteOpeningHour(hour.ID); err != nil {
			mapError(ctx, err)

			return
		}
	}

	saved := []OpeningHour{}

	for _, hour := range req.Horaires {
		hour.ID = 0
		hour.StoreID = store.ID

		if err := s.hours.SaveOpeningHour(&hour); err != nil {
			if IsUniqueViolation(err) {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error": "duplicate weekday", "field": "weekday"})

				return
			}

			mapError(ctx, err)

			return
		}

		saved = append(saved, hour)
	}

	ctx.JSON(http.StatusOK, gin.H{"horaires": saved})
}

func (s *Server) replaceProducts(ctx *gin.Context) {
	store, ok := s.editableStore(ctx)
	if !ok {
		return
	}

	var req struct {
		Familles []ProductFamily `json:"familles"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	existing, err := s.products.ListFamilies(store.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	for _, family := range existing {
		if err := s.products.DeleteFamily(family.ID); err != nil {
			mapError(ctx, err)

			return
		}
	}

	for i := range req.Familles {
		family := &req.Familles[i]
		family.ID = 0
		family.StoreID = store.ID

		if err := s.products.SaveFamily(family); err != nil {
			mapError(ctx, err)

			return
		}

		for j := range family.Products {
			product := &family.Products[j]
			product.ID = 0
			product.FamilyID = family.ID

			if err := s.products.SaveProduct(product); err != nil {
				mapError(ctx, err)

				return
			}
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"familles": req.Familles})
}

func (s *Server) replaceImages(ctx *gin.Context) {
	store, ok := s.editableStore(ctx)
	if !ok {
		return
	}

	var req struct {
		Images []StoreImage `json:"images"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := s.images.DeleteImagesForStore(store.ID); err != nil {
		mapError(ctx, err)

		return
	}

	saved := []StoreImage{}

	for i := range req.Images {
		image := req.Images[i]
		image.ID = 0
		image.StoreID = store.ID
		image.Position = i

		if err := s.images.SaveImage(&image); err != nil {
			mapError(ctx, err)

			return
		}

		saved = append(saved, image)
	}

	ctx.JSON(http.StatusOK, gin.H{"images": saved})
}

func (s *Server) toggleFavorite(ctx *gin.Context) {
	identity := currentIdentity(ctx)

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})

		return
	}

	if _, err := s.stores.GetStoreByID(id); err != nil {
		mapError(ctx, err)

		return
	}

	added, err := s.users.ToggleFavorite(identity.ID, id)
	if err != nil {
		mapError(ctx, err)

		return
	}

	action := "removed"
	if added {
		action = "added"
	}

	ctx.JSON(http.StatusOK, gin.H{"action": action})
}

func (s *Server) listFavorites(ctx *gin.Context) {
	identity := currentIdentity(ctx)

	ids, err := s.users.ListFavoriteStoreIDs(identity.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	stores := []*Store{}

	for _, id := range ids {
		store, err := s.stores.GetStoreByID(id)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			mapError(ctx, err)

			return
		}

		stores = append(stores, store)
	}

	ctx.JSON(http.StatusOK, gin.H{"favoris": stores})
}

func (s *Server) myStore(ctx *gin.Context) {
	identity := currentIdentity(ctx)

	store, err := s.stores.GetStoreByOwner(identity.ID)
	if err != nil {
		mapError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, store)
}
