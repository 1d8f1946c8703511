package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/prepper/internal/model"
)

type ItemStore struct {
	db DBTX
}

func NewItemStore(db DBTX) *ItemStore {
	return &ItemStore{db: db}
}

var itemColumns = []string{
	"id", "owner_id", "name", "quantity", "categories", "low_quantity", "mid_quantity",
	"unit", "package_quantity", "package_unit", "storage_location", "icon", "created_at", "updated_at",
}

var itemCols = strings.Join(itemColumns, ", ")

// Create inserts the flat item row. Nutrients are written separately.
// A second item with the same (owner, name, unit) fails with ErrConflict.
func (s *ItemStore) Create(ctx context.Context, ownerID int64, in model.ItemInput) (*model.InventoryItem, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO inventory_items
		 (owner_id, name, quantity, categories, low_quantity, mid_quantity, unit, package_quantity, package_unit, storage_location, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, in.Name, in.Quantity, in.Categories, in.LowQuantity, in.MidQuantity,
		in.Unit, in.PackageQuantity, in.PackageUnit, in.StorageLocation, in.Icon,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert item: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID looks an item up by id alone, regardless of owner.
func (s *ItemStore) GetByID(ctx context.Context, id int64) (*model.InventoryItem, error) {
	var it model.InventoryItem
	err := s.db.GetContext(ctx, &it, `SELECT `+itemCols+` FROM inventory_items WHERE id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// GetByNaturalKey resolves an item by (owner, name, unit).
func (s *ItemStore) GetByNaturalKey(ctx context.Context, ownerID int64, name, unit string) (*model.InventoryItem, error) {
	var it model.InventoryItem
	err := s.db.GetContext(ctx, &it,
		`SELECT `+itemCols+` FROM inventory_items WHERE owner_id = ? AND name = ? AND unit = ?`,
		ownerID, name, unit,
	)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by natural key: %w", err)
	}
	return &it, nil
}

// List returns the items owned by any of ownerIDs, optionally filtered by
// a case-insensitive name substring.
func (s *ItemStore) List(ctx context.Context, ownerIDs []int64, search string) ([]model.InventoryItem, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	qb := psql.Select(itemColumns...).
		From("inventory_items").
		Where(sq.Eq{"owner_id": ownerIDs}).
		OrderBy("name ASC", "id ASC")
	if search = strings.TrimSpace(search); search != "" {
		qb = qb.Where(sq.Like{"LOWER(name)": "%" + strings.ToLower(search) + "%"})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	var items []model.InventoryItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *ItemStore) Update(ctx context.Context, id int64, in model.ItemInput) (*model.InventoryItem, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE inventory_items SET
		   name = ?, quantity = ?, categories = ?, low_quantity = ?, mid_quantity = ?, unit = ?,
		   package_quantity = ?, package_unit = ?, storage_location = ?, icon = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, in.Quantity, in.Categories, in.LowQuantity, in.MidQuantity, in.Unit,
		in.PackageQuantity, in.PackageUnit, in.StorageLocation, in.Icon, id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update item: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the item row. The nutrient tree must already be gone.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
