package pantry

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/prepper/internal/access"
	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/category"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

// BasketInput is the body of a basket add.
type BasketInput struct {
	Name       string           `json:"name"`
	Categories model.Categories `json:"categories"`
	Icon       string           `json:"icon"`
}

func (svc *Service) ListBasket(ctx context.Context, s *store.Stores, userID int64) ([]model.BasketView, error) {
	owners, err := access.AccessibleOwners(ctx, s.Memberships, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.Basket.List(ctx, owners.IDs())
	if err != nil {
		return nil, err
	}
	views := make([]model.BasketView, len(items))
	for i, b := range items {
		views[i] = model.BasketView{BasketItem: b, IsOwner: b.OwnerID == userID}
	}
	return views, nil
}

// AddToBasket adds one of name to the user's own basket. An entry the user
// already has under that name gets its quantity incremented. A new entry
// without categories is categorized from its name.
func (svc *Service) AddToBasket(ctx context.Context, s *store.Stores, userID int64, in BasketInput) (*model.BasketView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	given, err := normalizeCategories(in.Categories)
	if err != nil {
		return nil, err
	}
	cats := model.Categories(category.For(name, given))
	b, err := s.Basket.Add(ctx, userID, name, cats, in.Icon)
	if err != nil {
		return nil, err
	}
	svc.logger.Info("basket item added", "basket_item_id", b.ID, "owner_id", userID, "quantity", b.Quantity)
	return &model.BasketView{BasketItem: *b, IsOwner: true}, nil
}

func loadBasketItem(ctx context.Context, s *store.Stores, userID, id int64) (*model.BasketItem, error) {
	b, err := s.Basket.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.NotFound("basket item not found")
	}
	if err := authorize(ctx, s, userID, b.OwnerID); err != nil {
		return nil, err
	}
	return b, nil
}

func (svc *Service) GetBasketItem(ctx context.Context, s *store.Stores, userID, id int64) (*model.BasketView, error) {
	b, err := loadBasketItem(ctx, s, userID, id)
	if err != nil {
		return nil, err
	}
	return &model.BasketView{BasketItem: *b, IsOwner: b.OwnerID == userID}, nil
}

// UpdateBasketItem applies u. A quantity of zero or less deletes the
// entry, in which case the returned view is nil. The second return value
// is the entry as it was before the update.
func (svc *Service) UpdateBasketItem(ctx context.Context, s *store.Stores, userID, id int64, u model.BasketUpdate) (*model.BasketView, *model.BasketItem, error) {
	b, err := loadBasketItem(ctx, s, userID, id)
	if err != nil {
		return nil, nil, err
	}

	if u.Quantity != nil && *u.Quantity <= 0 {
		if err := s.Basket.Delete(ctx, b.ID); err != nil {
			return nil, nil, err
		}
		svc.logger.Info("basket item emptied", "basket_item_id", b.ID, "by", userID)
		return nil, b, nil
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, nil, apperr.Validation("name must not be empty")
		}
		u.Name = &name
	}
	if u.Categories != nil {
		cats, err := normalizeCategories(*u.Categories)
		if err != nil {
			return nil, nil, err
		}
		u.Categories = &cats
	}

	updated, err := s.Basket.Update(ctx, b.ID, u)
	if errors.Is(err, store.ErrConflict) {
		return nil, nil, apperr.Conflict("the basket already has an entry named %q", *u.Name)
	}
	if err != nil {
		return nil, nil, err
	}
	return &model.BasketView{BasketItem: *updated, IsOwner: updated.OwnerID == userID}, b, nil
}

func (svc *Service) DeleteBasketItem(ctx context.Context, s *store.Stores, userID, id int64) (*model.BasketItem, error) {
	b, err := loadBasketItem(ctx, s, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Basket.Delete(ctx, b.ID); err != nil {
		return nil, err
	}
	svc.logger.Info("basket item deleted", "basket_item_id", b.ID, "by", userID)
	return b, nil
}
