package pantry

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/prepper/internal/access"
	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

func normalizeItem(in *model.ItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	in.StorageLocation = strings.TrimSpace(in.StorageLocation)
	switch {
	case in.Name == "":
		return apperr.Validation("name is required")
	case in.Unit == "":
		return apperr.Validation("unit is required")
	case in.StorageLocation == "":
		return apperr.Validation("storage_location is required")
	case in.Quantity < 0:
		return apperr.Validation("quantity must not be negative")
	}
	cats, err := normalizeCategories(in.Categories)
	if err != nil {
		return err
	}
	in.Categories = cats
	if in.Nutrients != nil {
		return validateNutrients(in.Nutrients)
	}
	return nil
}

// normalizeCategories trims names and drops empty ones. Categories are
// stored comma-joined, so a name holding a comma is rejected.
func normalizeCategories(in model.Categories) (model.Categories, error) {
	out := model.Categories{}
	for _, name := range in {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.Contains(name, ",") {
			return nil, apperr.Validation("category %q must not contain a comma", name)
		}
		out = append(out, name)
	}
	return out, nil
}

func validateNutrients(in *model.NutrientInput) error {
	for i, v := range in.Values {
		if strings.TrimSpace(v.Name) == "" {
			return apperr.Validation("values[%d]: name is required", i)
		}
		for j, t := range v.Types {
			if strings.TrimSpace(t.Kind) == "" {
				return apperr.Validation("values[%d].types[%d]: kind is required", i, j)
			}
		}
	}
	return nil
}

func duplicateItem(in model.ItemInput) error {
	return apperr.Conflict("you already have an item named %q with unit %q", in.Name, in.Unit)
}

// ListItems returns every item owned by someone the user can see, with
// nutrient trees attached.
func (svc *Service) ListItems(ctx context.Context, s *store.Stores, userID int64, search string) ([]model.ItemView, error) {
	owners, err := access.AccessibleOwners(ctx, s.Memberships, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.Items.List(ctx, owners.IDs(), search)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	trees, err := s.Nutrients.GetByItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.ItemView, len(items))
	for i, it := range items {
		views[i] = model.ItemView{
			InventoryItem: it,
			IsOwner:       it.OwnerID == userID,
			Nutrients:     trees[it.ID],
		}
	}
	return views, nil
}

// loadItem fetches an item by id and authorizes it: NotFound when absent,
// Forbidden when its owner is outside the accessible set.
func loadItem(ctx context.Context, s *store.Stores, userID, id int64) (*model.InventoryItem, error) {
	it, err := s.Items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, apperr.NotFound("item not found")
	}
	if err := authorize(ctx, s, userID, it.OwnerID); err != nil {
		return nil, err
	}
	return it, nil
}

func view(ctx context.Context, s *store.Stores, userID int64, it *model.InventoryItem) (*model.ItemView, error) {
	tree, err := s.Nutrients.GetByItem(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	return &model.ItemView{InventoryItem: *it, IsOwner: it.OwnerID == userID, Nutrients: tree}, nil
}

func (svc *Service) GetItem(ctx context.Context, s *store.Stores, userID, id int64) (*model.ItemView, error) {
	it, err := loadItem(ctx, s, userID, id)
	if err != nil {
		return nil, err
	}
	return view(ctx, s, userID, it)
}

// CreateItem creates an item owned by userID together with its nutrient
// tree when the input carries one.
func (svc *Service) CreateItem(ctx context.Context, s *store.Stores, userID int64, in model.ItemInput) (*model.ItemView, error) {
	if err := normalizeItem(&in); err != nil {
		return nil, err
	}
	it, err := s.Items.Create(ctx, userID, in)
	if errors.Is(err, store.ErrConflict) {
		return nil, duplicateItem(in)
	}
	if err != nil {
		return nil, err
	}
	if in.Nutrients != nil {
		if _, err := s.Nutrients.Replace(ctx, it.ID, userID, *in.Nutrients); err != nil {
			return nil, err
		}
	}
	svc.logger.Info("item created", "item_id", it.ID, "owner_id", userID)
	return view(ctx, s, userID, it)
}

// CreateItems inserts every flat row first, then looks each one up again
// by (owner, name, unit) to attach its nutrient tree. A duplicate natural
// key anywhere in the batch fails the whole batch with Conflict.
func (svc *Service) CreateItems(ctx context.Context, s *store.Stores, userID int64, ins []model.ItemInput) ([]model.ItemView, error) {
	if len(ins) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	for i := range ins {
		if err := normalizeItem(&ins[i]); err != nil {
			return nil, apperr.Validation("items[%d]: %s", i, apperr.Message(err))
		}
	}

	for _, in := range ins {
		if _, err := s.Items.Create(ctx, userID, in); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, duplicateItem(in)
			}
			return nil, err
		}
	}

	views := make([]model.ItemView, 0, len(ins))
	for _, in := range ins {
		it, err := s.Items.GetByNaturalKey(ctx, userID, in.Name, in.Unit)
		if err != nil {
			return nil, err
		}
		if it == nil {
			return nil, apperr.NotFound("created item %q could not be found again", in.Name)
		}
		if in.Nutrients != nil {
			if _, err := s.Nutrients.Replace(ctx, it.ID, userID, *in.Nutrients); err != nil {
				return nil, err
			}
		}
		v, err := view(ctx, s, userID, it)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	svc.logger.Info("items created", "count", len(views), "owner_id", userID)
	return views, nil
}

// UpdateItem overwrites an item's fields. The owner never changes. A
// nutrient payload replaces the whole tree; without one the tree is kept.
func (svc *Service) UpdateItem(ctx context.Context, s *store.Stores, userID, id int64, in model.ItemInput) (*model.ItemView, error) {
	it, err := loadItem(ctx, s, userID, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeItem(&in); err != nil {
		return nil, err
	}
	updated, err := s.Items.Update(ctx, it.ID, in)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Conflict("the owner already has an item named %q with unit %q", in.Name, in.Unit)
	}
	if err != nil {
		return nil, err
	}
	if in.Nutrients != nil {
		if _, err := s.Nutrients.Replace(ctx, it.ID, it.OwnerID, *in.Nutrients); err != nil {
			return nil, err
		}
	}
	svc.logger.Info("item updated", "item_id", it.ID, "by", userID)
	return view(ctx, s, userID, updated)
}

// DeleteItem removes the nutrient tree, then the item. It returns the
// deleted item so callers can notify its owner's group.
func (svc *Service) DeleteItem(ctx context.Context, s *store.Stores, userID, id int64) (*model.InventoryItem, error) {
	it, err := loadItem(ctx, s, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Nutrients.DeleteByItem(ctx, it.ID); err != nil {
		return nil, err
	}
	if err := s.Items.Delete(ctx, it.ID); err != nil {
		return nil, err
	}
	svc.logger.Info("item deleted", "item_id", it.ID, "by", userID)
	return it, nil
}

// GetNutrients returns the item's tree, or NotFound when it has none.
func (svc *Service) GetNutrients(ctx context.Context, s *store.Stores, userID, itemID int64) (*model.Nutrient, error) {
	it, err := loadItem(ctx, s, userID, itemID)
	if err != nil {
		return nil, err
	}
	tree, err := s.Nutrients.GetByItem(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, apperr.NotFound("item has no nutrients")
	}
	return tree, nil
}

// ReplaceNutrients swaps the item's whole nutrient tree for in. The tree
// stays owned by the item's owner whoever makes the change.
func (svc *Service) ReplaceNutrients(ctx context.Context, s *store.Stores, userID, itemID int64, in model.NutrientInput) (*model.InventoryItem, *model.Nutrient, error) {
	it, err := loadItem(ctx, s, userID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if err := validateNutrients(&in); err != nil {
		return nil, nil, err
	}
	tree, err := s.Nutrients.Replace(ctx, it.ID, it.OwnerID, in)
	if err != nil {
		return nil, nil, err
	}
	svc.logger.Info("nutrients replaced", "item_id", it.ID, "values", len(in.Values), "by", userID)
	return it, tree, nil
}
