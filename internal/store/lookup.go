package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/prepper/internal/model"
)

// Lookup names one of the seeded reference tables.
type Lookup string

const (
	LookupCategories       Lookup = "categories"
	LookupStorageLocations Lookup = "storage_locations"
	LookupItemUnits        Lookup = "item_units"
	LookupPackageUnits     Lookup = "package_units"
	LookupNutrientUnits    Lookup = "nutrient_units"
)

func (l Lookup) valid() bool {
	switch l {
	case LookupCategories, LookupStorageLocations, LookupItemUnits, LookupPackageUnits, LookupNutrientUnits:
		return true
	}
	return false
}

type LookupStore struct {
	db DBTX
}

func NewLookupStore(db DBTX) *LookupStore {
	return &LookupStore{db: db}
}

func (s *LookupStore) List(ctx context.Context, table Lookup) ([]model.LookupEntry, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown lookup table %q", table)
	}
	var entries []model.LookupEntry
	if err := s.db.SelectContext(ctx, &entries, `SELECT id, name FROM `+string(table)+` ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return entries, nil
}

// Names returns just the entry names of a lookup table.
func (s *LookupStore) Names(ctx context.Context, table Lookup) ([]string, error) {
	entries, err := s.List(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}
