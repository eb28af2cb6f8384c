package model

import "time"

// Cart is a user's pre-purchase selection of movies. Every user owns
// at most one cart (carts.user_id is unique); the cart itself is a
// long-lived row while its items are ephemeral – they are deleted in
// the same transaction that converts them into an order.
//
// Fields:
//  ID     – primary key identifier.
//  UserID – owning user (unique).
type Cart struct {
	ID     uint64 // carts.id
	UserID uint64 // carts.user_id
}

// CartItem places one movie in a cart. The (cart_id, movie_id) pair
// is unique, so a movie can never appear twice in the same cart.
//
// Fields:
//  ID      – primary key identifier.
//  CartID  – owning cart.
//  MovieID – referenced movie.
//  AddedAt – when the movie was put in the cart.
type CartItem struct {
	ID      uint64    // cart_items.id
	CartID  uint64    // cart_items.cart_id
	MovieID uint64    // cart_items.movie_id
	AddedAt time.Time // cart_items.added_at
}
