package model

import "time"

// Purchase is the durable entitlement a user holds to a movie. The
// (user_id, movie_id) pair is unique. Rows are created only as a side
// effect of a successful payment and removed only as a side effect of
// a refund; nothing else may touch them.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – entitled user.
//  MovieID     – purchased movie.
//  PurchasedAt – when the entitlement was granted.
type Purchase struct {
	ID          uint64    // purchases.id
	UserID      uint64    // purchases.user_id
	MovieID     uint64    // purchases.movie_id
	PurchasedAt time.Time // purchases.purchased_at
}
