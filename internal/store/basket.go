package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/prepper/internal/model"
)

type BasketStore struct {
	db DBTX
}

func NewBasketStore(db DBTX) *BasketStore {
	return &BasketStore{db: db}
}

var basketColumns = []string{"id", "owner_id", "name", "quantity", "categories", "icon", "created_at", "updated_at"}

const basketCols = `id, owner_id, name, quantity, categories, icon, created_at, updated_at`

// Add inserts name for the owner with quantity 1, or increments the
// quantity of the owner's existing entry with that name. The upsert is a
// single statement, so concurrent adds cannot lose an increment.
func (s *BasketStore) Add(ctx context.Context, ownerID int64, name string, categories model.Categories, icon string) (*model.BasketItem, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		`INSERT INTO basket_items (owner_id, name, quantity, categories, icon) VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT (owner_id, name) DO UPDATE SET
		   quantity = basket_items.quantity + 1,
		   updated_at = CURRENT_TIMESTAMP
		 RETURNING id`,
		ownerID, name, categories, icon,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert basket item: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID looks a basket item up by id alone, regardless of owner.
func (s *BasketStore) GetByID(ctx context.Context, id int64) (*model.BasketItem, error) {
	var b model.BasketItem
	err := s.db.GetContext(ctx, &b, `SELECT `+basketCols+` FROM basket_items WHERE id = ?`, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get basket item: %w", err)
	}
	return &b, nil
}

func (s *BasketStore) List(ctx context.Context, ownerIDs []int64) ([]model.BasketItem, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(basketColumns...).
		From("basket_items").
		Where(sq.Eq{"owner_id": ownerIDs}).
		OrderBy("name ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build basket query: %w", err)
	}

	var items []model.BasketItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list basket items: %w", err)
	}
	return items, nil
}

// Update applies the non-nil fields of u. Renaming onto a name the owner
// already uses fails with ErrConflict.
func (s *BasketStore) Update(ctx context.Context, id int64, u model.BasketUpdate) (*model.BasketItem, error) {
	set := map[string]any{"updated_at": sq.Expr("CURRENT_TIMESTAMP")}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Quantity != nil {
		set["quantity"] = *u.Quantity
	}
	if u.Categories != nil {
		set["categories"] = *u.Categories
	}
	if u.Icon != nil {
		set["icon"] = *u.Icon
	}

	query, args, err := psql.Update("basket_items").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build basket update: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update basket item: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update basket item: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BasketStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM basket_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete basket item: %w", err)
	}
	return nil
}
