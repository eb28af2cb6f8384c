package model

import "time"

// User represents an application user record as stored in the
// `users` table. Account registration, activation and password
// handling live in a separate service; this core only needs the
// identity row that carts, orders, payments and purchases hang off.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Email     – unique email address, forwarded to the payment gateway
//              so the hosted checkout page can prefill it.
//  IsActive  – whether the account is active.
//  CreatedAt – timestamp of creation.
type User struct {
	ID        uint64    // users.id
	Email     string    // users.email
	IsActive  bool      // users.is_active
	CreatedAt time.Time // users.created_at
}
