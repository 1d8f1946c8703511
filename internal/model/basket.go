package model

import "time"

type BasketItem struct {
	ID         int64      `json:"id" db:"id"`
	OwnerID    int64      `json:"owner_id" db:"owner_id"`
	Name       string     `json:"name" db:"name"`
	Quantity   int        `json:"quantity" db:"quantity"`
	Categories Categories `json:"categories" db:"categories"`
	Icon       string     `json:"icon" db:"icon"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

type BasketView struct {
	BasketItem
	IsOwner bool `json:"is_owner"`
}

// BasketUpdate holds the optional fields of a basket update.
type BasketUpdate struct {
	Name       *string     `json:"name"`
	Quantity   *int        `json:"quantity"`
	Categories *Categories `json:"categories"`
	Icon       *string     `json:"icon"`
}
