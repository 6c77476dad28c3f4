package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/foodhunt/api/internal/database"
	"github.com/foodhunt/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries.
type MenuStore interface {
	CreateFoodItem(ctx context.Context, arg database.CreateFoodItemParams) (database.FoodItem, error)
	GetFoodItem(ctx context.Context, id uuid.UUID) (database.FoodItem, error)
	ListFoodItems(ctx context.Context, arg database.ListFoodItemsParams) ([]database.FoodItem, error)
	UpdateFoodItem(ctx context.Context, arg database.UpdateFoodItemParams) (database.FoodItem, error)
	DeleteFoodItem(ctx context.Context, id uuid.UUID) (int64, error)
}

// MenuHandler handles food catalog endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers the read endpoints available to any
// authenticated user.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/food", h.List)
	r.Get("/food/{id}", h.Get)
}

// RegisterAdminRoutes registers the catalog write endpoints.
func (h *MenuHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/food", h.Create)
	r.Put("/food/{id}", h.Update)
	r.Delete("/food/{id}", h.Delete)
}

// --- Request / Response types ---

type foodItemRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           string `json:"price"`
	Category        string `json:"category"`
	ImageURL        string `json:"image_url"`
	IsAvailable     *bool  `json:"is_available"`
	PreparationTime int32  `json:"preparation_time"`
	Stock           int32  `json:"stock"`
	MaxDailyStock   int32  `json:"max_daily_stock"`
}

type foodItemResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           string    `json:"price"`
	Category        string    `json:"category"`
	ImageURL        *string   `json:"image_url"`
	IsAvailable     bool      `json:"is_available"`
	PreparationTime int32     `json:"preparation_time"`
	Stock           int32     `json:"stock"`
	MaxDailyStock   int32     `json:"max_daily_stock"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// --- Handlers ---

// List handles GET /food. Optional category and available query filters.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListFoodItemsParams{
		Category:      r.URL.Query().Get("category"),
		OnlyAvailable: r.URL.Query().Get("available") == "true",
	}
	if params.Category != "" && !isValidCategory(params.Category) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category"})
		return
	}

	items, err := h.store.ListFoodItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list food items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]foodItemResponse, len(items))
	for i, item := range items {
		resp[i] = dbFoodItemToResponse(item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"food_items": resp})
}

// Get handles GET /food/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food item ID"})
		return
	}

	item, err := h.store.GetFoodItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "food item not found"})
			return
		}
		log.Printf("ERROR: get food item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbFoodItemToResponse(item))
}

// Create handles POST /food.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req foodItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, errMsg := validateFoodItemRequest(&req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	isAvailable := req.Stock > 0
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}
	if isAvailable && req.Stock == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "an item with zero stock cannot be available"})
		return
	}

	var imageURL pgtype.Text
	if req.ImageURL != "" {
		imageURL = pgtype.Text{String: req.ImageURL, Valid: true}
	}

	item, err := h.store.CreateFoodItem(r.Context(), database.CreateFoodItemParams{
		Name:            req.Name,
		Description:     req.Description,
		Price:           decimalToNumeric(price),
		Category:        req.Category,
		ImageUrl:        imageURL,
		IsAvailable:     isAvailable,
		PreparationTime: req.PreparationTime,
		Stock:           req.Stock,
		MaxDailyStock:   req.MaxDailyStock,
	})
	if err != nil {
		log.Printf("ERROR: create food item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbFoodItemToResponse(item))
}

// Update handles PUT /food/{id}. Stock and availability are managed through
// the dedicated admin endpoints; this edits the catalog fields only.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food item ID"})
		return
	}

	var req foodItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, errMsg := validateFoodItemRequest(&req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	var imageURL pgtype.Text
	if req.ImageURL != "" {
		imageURL = pgtype.Text{String: req.ImageURL, Valid: true}
	}

	item, err := h.store.UpdateFoodItem(r.Context(), database.UpdateFoodItemParams{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		Price:           decimalToNumeric(price),
		Category:        req.Category,
		ImageUrl:        imageURL,
		PreparationTime: req.PreparationTime,
		MaxDailyStock:   req.MaxDailyStock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "food item not found"})
			return
		}
		log.Printf("ERROR: update food item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbFoodItemToResponse(item))
}

// Delete handles DELETE /food/{id}. Past orders keep their own snapshots of
// the item, so deleting a catalog entry never touches order history.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food item ID"})
		return
	}

	n, err := h.store.DeleteFoodItem(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: delete food item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "food item not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "food item deleted"})
}

// --- Helpers ---

// validateFoodItemRequest checks the shared create/update fields and parses
// the price. Returns an error message for the client, or "" if valid.
func validateFoodItemRequest(req *foodItemRequest) (decimal.Decimal, string) {
	if req.Name == "" {
		return decimal.Zero, "name is required"
	}
	if !isValidCategory(req.Category) {
		return decimal.Zero, "invalid category"
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() || price.IsZero() {
		return decimal.Zero, "price must be a positive decimal"
	}
	if req.PreparationTime < 1 {
		return decimal.Zero, "preparation_time must be at least 1 minute"
	}
	if req.MaxDailyStock < 1 {
		return decimal.Zero, "max_daily_stock must be at least 1"
	}
	if req.Stock < 0 || req.Stock > req.MaxDailyStock {
		return decimal.Zero, "stock must be between 0 and max_daily_stock"
	}
	return price, ""
}

func isValidCategory(c string) bool {
	switch c {
	case enum.CategoryBreakfast, enum.CategoryLunch, enum.CategoryDinner,
		enum.CategorySnacks, enum.CategoryBeverages:
		return true
	}
	return false
}

func dbFoodItemToResponse(item database.FoodItem) foodItemResponse {
	resp := foodItemResponse{
		ID:              item.ID,
		Name:            item.Name,
		Description:     item.Description,
		Price:           numericToString(item.Price),
		Category:        item.Category,
		IsAvailable:     item.IsAvailable,
		PreparationTime: item.PreparationTime,
		Stock:           item.Stock,
		MaxDailyStock:   item.MaxDailyStock,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
	if item.ImageUrl.Valid {
		resp.ImageURL = &item.ImageUrl.String
	}
	return resp
}
