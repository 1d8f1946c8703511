package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/prepper/internal/model"
)

// NutrientStore persists the nutrient → value → type tree owned by an
// inventory item. It never opens its own transaction: callers bind it to
// one so that a replace or delete is all-or-nothing.
type NutrientStore struct {
	db DBTX
}

func NewNutrientStore(db DBTX) *NutrientStore {
	return &NutrientStore{db: db}
}

const nutrientCols = `id, item_id, owner_id, description, unit, amount`
const nutrientValueCols = `id, nutrient_id, name, color`
const nutrientTypeCols = `id, nutrient_value_id, kind, value`

// GetByItem loads the full tree for an item, or nil if it has none.
func (s *NutrientStore) GetByItem(ctx context.Context, itemID int64) (*model.Nutrient, error) {
	trees, err := s.GetByItems(ctx, []int64{itemID})
	if err != nil {
		return nil, err
	}
	return trees[itemID], nil
}

// GetByItems loads the trees of several items in three queries, keyed by
// item id. Items without nutrients are absent from the map.
func (s *NutrientStore) GetByItems(ctx context.Context, itemIDs []int64) (map[int64]*model.Nutrient, error) {
	out := make(map[int64]*model.Nutrient, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	var nutrients []model.Nutrient
	if err := s.selectIn(ctx, &nutrients, nutrientCols, "nutrients", "item_id", itemIDs); err != nil {
		return nil, fmt.Errorf("list nutrients: %w", err)
	}
	if len(nutrients) == 0 {
		return out, nil
	}

	nutrientIDs := make([]int64, len(nutrients))
	for i, n := range nutrients {
		nutrientIDs[i] = n.ID
	}
	var values []model.NutrientValue
	if err := s.selectIn(ctx, &values, nutrientValueCols, "nutrient_values", "nutrient_id", nutrientIDs); err != nil {
		return nil, fmt.Errorf("list nutrient values: %w", err)
	}

	valueIDs := make([]int64, len(values))
	for i, v := range values {
		valueIDs[i] = v.ID
	}
	var types []model.NutrientType
	if len(valueIDs) > 0 {
		if err := s.selectIn(ctx, &types, nutrientTypeCols, "nutrient_types", "nutrient_value_id", valueIDs); err != nil {
			return nil, fmt.Errorf("list nutrient types: %w", err)
		}
	}

	typesByValue := make(map[int64][]model.NutrientType)
	for _, t := range types {
		typesByValue[t.NutrientValueID] = append(typesByValue[t.NutrientValueID], t)
	}
	valuesByNutrient := make(map[int64][]model.NutrientValue)
	for _, v := range values {
		v.Types = typesByValue[v.ID]
		if v.Types == nil {
			v.Types = []model.NutrientType{}
		}
		valuesByNutrient[v.NutrientID] = append(valuesByNutrient[v.NutrientID], v)
	}
	for i := range nutrients {
		n := nutrients[i]
		n.Values = valuesByNutrient[n.ID]
		if n.Values == nil {
			n.Values = []model.NutrientValue{}
		}
		out[n.ItemID] = &n
	}
	return out, nil
}

func (s *NutrientStore) selectIn(ctx context.Context, dest any, cols, table, key string, ids []int64) error {
	query, args, err := psql.Select(cols).From(table).Where(sq.Eq{key: ids}).OrderBy("id ASC").ToSql()
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, query, args...)
}

// Replace sets the item's nutrient tree to in. An existing nutrient
// keeps its id and gets new scalar fields; all of its values and types are
// deleted and recreated from in, so no child id survives a replace.
func (s *NutrientStore) Replace(ctx context.Context, itemID, ownerID int64, in model.NutrientInput) (*model.Nutrient, error) {
	var nutrientID int64
	err := s.db.GetContext(ctx, &nutrientID, `SELECT id FROM nutrients WHERE item_id = ?`, itemID)
	switch {
	case notFound(err):
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO nutrients (item_id, owner_id, description, unit, amount) VALUES (?, ?, ?, ?, ?)`,
			itemID, ownerID, in.Description, in.Unit, in.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("insert nutrient: %w", err)
		}
		if nutrientID, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("find nutrient: %w", err)
	default:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE nutrients SET description = ?, unit = ?, amount = ? WHERE id = ?`,
			in.Description, in.Unit, in.Amount, nutrientID,
		); err != nil {
			return nil, fmt.Errorf("update nutrient: %w", err)
		}
		if err := s.deleteChildren(ctx, nutrientID); err != nil {
			return nil, err
		}
	}

	for _, v := range in.Values {
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO nutrient_values (nutrient_id, name, color) VALUES (?, ?, ?)`,
			nutrientID, v.Name, v.Color,
		)
		if err != nil {
			return nil, fmt.Errorf("insert nutrient value: %w", err)
		}
		valueID, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		for _, t := range v.Types {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO nutrient_types (nutrient_value_id, kind, value) VALUES (?, ?, ?)`,
				valueID, t.Kind, t.Value,
			); err != nil {
				return nil, fmt.Errorf("insert nutrient type: %w", err)
			}
		}
	}

	return s.GetByItem(ctx, itemID)
}

// deleteChildren removes every type, then every value, under a nutrient.
func (s *NutrientStore) deleteChildren(ctx context.Context, nutrientID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM nutrient_types
		 WHERE nutrient_value_id IN (SELECT id FROM nutrient_values WHERE nutrient_id = ?)`,
		nutrientID,
	); err != nil {
		return fmt.Errorf("delete nutrient types: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nutrient_values WHERE nutrient_id = ?`, nutrientID); err != nil {
		return fmt.Errorf("delete nutrient values: %w", err)
	}
	return nil
}

// DeleteByItem removes the item's tree top-down: types, values, nutrient.
// It is a no-op for an item without nutrients.
func (s *NutrientStore) DeleteByItem(ctx context.Context, itemID int64) error {
	var nutrientID int64
	err := s.db.GetContext(ctx, &nutrientID, `SELECT id FROM nutrients WHERE item_id = ?`, itemID)
	if notFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find nutrient: %w", err)
	}
	if err := s.deleteChildren(ctx, nutrientID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nutrients WHERE id = ?`, nutrientID); err != nil {
		return fmt.Errorf("delete nutrient: %w", err)
	}
	return nil
}
