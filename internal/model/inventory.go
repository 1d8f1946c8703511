package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Categories is a list of category names stored as one comma-joined column.
type Categories []string

func (c Categories) Value() (driver.Value, error) {
	return strings.Join(c, ","), nil
}

func (c *Categories) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*c = Categories{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan categories: unsupported type %T", src)
	}
	out := Categories{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*c = out
	return nil
}

type InventoryItem struct {
	ID              int64      `json:"id" db:"id"`
	OwnerID         int64      `json:"owner_id" db:"owner_id"`
	Name            string     `json:"name" db:"name"`
	Quantity        float64    `json:"quantity" db:"quantity"`
	Categories      Categories `json:"categories" db:"categories"`
	LowQuantity     float64    `json:"low_quantity" db:"low_quantity"`
	MidQuantity     float64    `json:"mid_quantity" db:"mid_quantity"`
	Unit            string     `json:"unit" db:"unit"`
	PackageQuantity *float64   `json:"package_quantity" db:"package_quantity"`
	PackageUnit     *string    `json:"package_unit" db:"package_unit"`
	StorageLocation string     `json:"storage_location" db:"storage_location"`
	Icon            string     `json:"icon" db:"icon"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// ItemView is an item as returned to a requester.
type ItemView struct {
	InventoryItem
	IsOwner   bool      `json:"is_owner"`
	Nutrients *Nutrient `json:"nutrients"`
}

type Nutrient struct {
	ID          int64           `json:"id" db:"id"`
	ItemID      int64           `json:"item_id" db:"item_id"`
	OwnerID     int64           `json:"owner_id" db:"owner_id"`
	Description string          `json:"description" db:"description"`
	Unit        string          `json:"unit" db:"unit"`
	Amount      float64         `json:"amount" db:"amount"`
	Values      []NutrientValue `json:"values" db:"-"`
}

type NutrientValue struct {
	ID         int64          `json:"id" db:"id"`
	NutrientID int64          `json:"nutrient_id" db:"nutrient_id"`
	Name       string         `json:"name" db:"name"`
	Color      *string        `json:"color" db:"color"`
	Types      []NutrientType `json:"types" db:"-"`
}

type NutrientType struct {
	ID              int64   `json:"id" db:"id"`
	NutrientValueID int64   `json:"nutrient_value_id" db:"nutrient_value_id"`
	Kind            string  `json:"kind" db:"kind"`
	Value           float64 `json:"value" db:"value"`
}

// NutrientInput is the full replacement payload for an item's nutrient tree.
type NutrientInput struct {
	Description string               `json:"description"`
	Unit        string               `json:"unit"`
	Amount      float64              `json:"amount"`
	Values      []NutrientValueInput `json:"values"`
}

type NutrientValueInput struct {
	Name  string              `json:"name"`
	Color *string             `json:"color"`
	Types []NutrientTypeInput `json:"types"`
}

type NutrientTypeInput struct {
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

// ItemInput carries the writable fields of an inventory item.
type ItemInput struct {
	Name            string         `json:"name"`
	Quantity        float64        `json:"quantity"`
	Categories      Categories     `json:"categories"`
	LowQuantity     float64        `json:"low_quantity"`
	MidQuantity     float64        `json:"mid_quantity"`
	Unit            string         `json:"unit"`
	PackageQuantity *float64       `json:"package_quantity"`
	PackageUnit     *string        `json:"package_unit"`
	StorageLocation string         `json:"storage_location"`
	Icon            string         `json:"icon"`
	Nutrients       *NutrientInput `json:"nutrients"`
}
