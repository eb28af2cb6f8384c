package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Morphin20th/online-cinema/internal/repository"
)

const movieUUID = "5f0c2f39-89a7-4c2e-9c1e-2f6d3b1a8c11"

func TestGetCartEmptyWhenNoCartRow(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewCartHandler(
		repository.NewCartRepo(db),
		repository.NewMovieRepo(db),
		repository.NewOrderRepo(db),
		repository.NewPurchaseRepo(db),
	)

	mock.ExpectQuery(`FROM carts WHERE user_id = \?$`).
		WithArgs(uint64(7)).
		WillReturnError(errNoRows())

	c, rec := newTestContext(http.MethodGet, "/v1/cart", "", 7)
	require.NoError(t, h.GetCart(c))
	requireJSONStatus(t, rec, http.StatusOK, `"cart_items":[]`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMovieHappyPath(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewCartHandler(
		repository.NewCartRepo(db),
		repository.NewMovieRepo(db),
		repository.NewOrderRepo(db),
		repository.NewPurchaseRepo(db),
	)

	mock.ExpectQuery(`FROM movies WHERE uuid = \?`).
		WithArgs(movieUUID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "price"}).
			AddRow(42, movieUUID, "Heat", "9.99"))
	mock.ExpectQuery(`FROM carts WHERE user_id = \?$`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(3, 7))
	mock.ExpectQuery(`FROM purchases WHERE user_id = \? AND movie_id = \?`).
		WithArgs(uint64(7), uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`JOIN orders o ON o\.id = oi\.order_id`).
		WithArgs(uint64(7), "PAID", uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`FROM cart_items WHERE cart_id = \? AND movie_id = \?`).
		WithArgs(uint64(3), uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO cart_items`).
		WithArgs(uint64(3), uint64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := newTestContext(http.MethodPost, "/v1/cart/add", `{"movie_uuid":"`+movieUUID+`"}`, 7)
	require.NoError(t, h.AddMovie(c))
	requireJSONStatus(t, rec, http.StatusOK, "Movie has been added to cart successfully.")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMovieAlreadyPurchased(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewCartHandler(
		repository.NewCartRepo(db),
		repository.NewMovieRepo(db),
		repository.NewOrderRepo(db),
		repository.NewPurchaseRepo(db),
	)

	mock.ExpectQuery(`FROM movies WHERE uuid = \?`).
		WithArgs(movieUUID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "price"}).
			AddRow(42, movieUUID, "Heat", "9.99"))
	mock.ExpectQuery(`FROM carts WHERE user_id = \?$`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(3, 7))
	mock.ExpectQuery(`FROM purchases WHERE user_id = \? AND movie_id = \?`).
		WithArgs(uint64(7), uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	c, rec := newTestContext(http.MethodPost, "/v1/cart/add", `{"movie_uuid":"`+movieUUID+`"}`, 7)
	require.NoError(t, h.AddMovie(c))
	requireJSONStatus(t, rec, http.StatusBadRequest, "Movie already purchased.")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMovieDuplicateInCart(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewCartHandler(
		repository.NewCartRepo(db),
		repository.NewMovieRepo(db),
		repository.NewOrderRepo(db),
		repository.NewPurchaseRepo(db),
	)

	mock.ExpectQuery(`FROM movies WHERE uuid = \?`).
		WithArgs(movieUUID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "price"}).
			AddRow(42, movieUUID, "Heat", "9.99"))
	mock.ExpectQuery(`FROM carts WHERE user_id = \?$`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(3, 7))
	mock.ExpectQuery(`FROM purchases WHERE user_id = \? AND movie_id = \?`).
		WithArgs(uint64(7), uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`JOIN orders o ON o\.id = oi\.order_id`).
		WithArgs(uint64(7), "PAID", uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`FROM cart_items WHERE cart_id = \? AND movie_id = \?`).
		WithArgs(uint64(3), uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	c, rec := newTestContext(http.MethodPost, "/v1/cart/add", `{"movie_uuid":"`+movieUUID+`"}`, 7)
	require.NoError(t, h.AddMovie(c))
	requireJSONStatus(t, rec, http.StatusConflict, "Movie already in cart.")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMovieUnknownUUID(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewCartHandler(
		repository.NewCartRepo(db),
		repository.NewMovieRepo(db),
		repository.NewOrderRepo(db),
		repository.NewPurchaseRepo(db),
	)

	mock.ExpectQuery(`FROM movies WHERE uuid = \?`).
		WithArgs(movieUUID).
		WillReturnError(errNoRows())

	c, rec := newTestContext(http.MethodPost, "/v1/cart/add", `{"movie_uuid":"`+movieUUID+`"}`, 7)
	require.NoError(t, h.AddMovie(c))
	requireJSONStatus(t, rec, http.StatusNotFound, "Movie with given ID was not found.")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveMovieNotInCart(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewCartHandler(
		repository.NewCartRepo(db),
		repository.NewMovieRepo(db),
		repository.NewOrderRepo(db),
		repository.NewPurchaseRepo(db),
	)

	mock.ExpectQuery(`FROM movies WHERE uuid = \?`).
		WithArgs(movieUUID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "price"}).
			AddRow(42, movieUUID, "Heat", "9.99"))
	mock.ExpectQuery(`FROM carts WHERE user_id = \?$`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(3, 7))
	mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \? AND movie_id = \?`).
		WithArgs(uint64(3), uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	c, rec := newTestContext(http.MethodDelete, "/v1/cart/remove/"+movieUUID, "", 7)
	c.SetParamNames("movie_uuid")
	c.SetParamValues(movieUUID)
	require.NoError(t, h.RemoveMovie(c))
	requireJSONStatus(t, rec, http.StatusNotFound, "Movie not found in cart.")
	require.NoError(t, mock.ExpectationsWereMet())
}
