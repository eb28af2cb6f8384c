package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Movie is the slice of the catalog this service needs: a priced,
// purchasable item. Catalog maintenance (genres, stars, directors,
// descriptions) belongs to another part of the system; commerce code
// only ever reads the current price and the display name.
//
// Fields:
//  ID    – primary key identifier.
//  UUID  – public identifier exposed to clients (cart operations
//          reference movies by UUID, never by row id).
//  Name  – unique movie title, used as the checkout line-item label.
//  Price – current catalog price (DECIMAL(10,2)).
type Movie struct {
	ID    uint64          // movies.id
	UUID  uuid.UUID       // movies.uuid
	Name  string          // movies.name
	Price decimal.Decimal // movies.price
}
