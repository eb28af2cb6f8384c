package handler

import (
	"errors"   // errors.Is comparisons against repository sentinels
	"net/http" // HTTP status codes

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Morphin20th/online-cinema/internal/repository"
)

// CartHandler groups the repositories needed to inspect and mutate a
// user's cart. All methods assume JWT authentication has already been
// performed by middleware. Every guard against double purchase runs
// before any write, so a rejected add leaves the cart untouched.
type CartHandler struct {
	CartRepo     *repository.CartRepo     // access to carts and cart_items
	MovieRepo    *repository.MovieRepo    // resolves public movie UUIDs
	OrderRepo    *repository.OrderRepo    // checks PAID order membership
	PurchaseRepo *repository.PurchaseRepo // checks existing entitlements
}

// NewCartHandler constructs a CartHandler with the provided
// repositories. All dependencies must be non-nil.
func NewCartHandler(cartRepo *repository.CartRepo, movieRepo *repository.MovieRepo, orderRepo *repository.OrderRepo, purchaseRepo *repository.PurchaseRepo) *CartHandler {
	if cartRepo == nil || movieRepo == nil || orderRepo == nil || purchaseRepo == nil {
		panic("nil repository passed to NewCartHandler")
	}
	return &CartHandler{
		CartRepo:     cartRepo,
		MovieRepo:    movieRepo,
		OrderRepo:    orderRepo,
		PurchaseRepo: purchaseRepo,
	}
}

// GetCart handles GET /v1/cart. It returns the caller's cart items
// joined with movie name and current price. A user without a cart row
// gets an empty list rather than an error.
func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"cart_items": []repository.CartLine{}})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
	lines, err := h.CartRepo.ListLines(ctx, cart.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cart_items": lines})
}

// AddMovie handles POST /v1/cart/add. The request body carries the
// movie's public UUID. A movie the user already owns, already ordered
// in a PAID order, or already placed in the cart is rejected before
// any cart mutation occurs.
func (h *CartHandler) AddMovie(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		MovieUUID string `json:"movie_uuid"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	movieUUID, err := uuid.Parse(body.MovieUUID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie uuid"})
	}
	ctx := c.Request().Context()
	movie, err := h.MovieRepo.GetByUUID(ctx, movieUUID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Movie with given ID was not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	cart, err := h.CartRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Cart not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	purchased, err := h.PurchaseRepo.ExistsForUser(ctx, userID, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if purchased {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Movie already purchased."})
	}
	ordered, err := h.OrderRepo.HasPaidMovie(ctx, userID, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if ordered {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Movie already ordered."})
	}
	inCart, err := h.CartRepo.HasItem(ctx, cart.ID, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if inCart {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Movie already in cart."})
	}
	if err := h.CartRepo.AddItem(ctx, cart.ID, movie.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to add movie to cart."})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Movie has been added to cart successfully."})
}

// RemoveMovie handles DELETE /v1/cart/remove/:movie_uuid. Removing a
// movie that is not in the cart answers 404.
func (h *CartHandler) RemoveMovie(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	movieUUID, err := uuid.Parse(c.Param("movie_uuid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie uuid"})
	}
	ctx := c.Request().Context()
	movie, err := h.MovieRepo.GetByUUID(ctx, movieUUID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Movie with given ID was not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	cart, err := h.CartRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Cart not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	removed, err := h.CartRepo.RemoveItem(ctx, cart.ID, movie.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to remove movie from cart."})
	}
	if !removed {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Movie not found in cart."})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Movie has been removed from cart."})
}
