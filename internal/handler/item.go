package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/pantry"
	"github.com/dukerupert/prepper/internal/store"
)

const (
	entityItem      = "item"
	entityNutrients = "nutrients"
	entityBasket    = "basket"
)

// itemChange is the broadcast form of an item. It drops is_owner, which
// only holds for the writer and not for the rest of the audience.
type itemChange struct {
	model.InventoryItem
	Nutrients *model.Nutrient `json:"nutrients"`
}

func changeOf(v *model.ItemView) itemChange {
	return itemChange{InventoryItem: v.InventoryItem, Nutrients: v.Nutrients}
}

type ItemHandler struct {
	runner   *store.Runner
	pantry   *pantry.Service
	notifier *Notifier
	logger   *slog.Logger
}

func NewItemHandler(runner *store.Runner, svc *pantry.Service, notifier *Notifier, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{runner: runner, pantry: svc, notifier: notifier, logger: logger}
}

// List returns every item in the caller's accessible set, optionally
// filtered by ?q= on the name.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var items []model.ItemView
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		items, err = h.pantry.ListItems(r.Context(), s, auth.UserID(r.Context()), r.URL.Query().Get("q"))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var item *model.ItemView
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		item, err = h.pantry.GetItem(r.Context(), s, auth.UserID(r.Context()), id)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var item *model.ItemView
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		item, err = h.pantry.CreateItem(r.Context(), s, auth.UserID(r.Context()), in)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Publish(r.Context(), entityItem, "created", item.ID, item.OwnerID, changeOf(item))
	writeJSON(w, http.StatusCreated, item)
}

// CreateBulk takes a JSON array of items. Either all of them are created
// or none.
func (h *ItemHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var ins []model.ItemInput
	if err := decodeJSON(r, &ins); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var items []model.ItemView
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		items, err = h.pantry.CreateItems(r.Context(), s, auth.UserID(r.Context()), ins)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	for i := range items {
		h.notifier.Publish(r.Context(), entityItem, "created", items[i].ID, items[i].OwnerID, changeOf(&items[i]))
	}
	writeJSON(w, http.StatusCreated, items)
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in model.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var item *model.ItemView
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		item, err = h.pantry.UpdateItem(r.Context(), s, auth.UserID(r.Context()), id, in)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Publish(r.Context(), entityItem, "updated", item.ID, item.OwnerID, changeOf(item))
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var deleted *model.InventoryItem
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		deleted, err = h.pantry.DeleteItem(r.Context(), s, auth.UserID(r.Context()), id)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Publish(r.Context(), entityItem, "deleted", deleted.ID, deleted.OwnerID, nil)
	writeJSON(w, http.StatusOK, statusOK("deleted"))
}

func (h *ItemHandler) GetNutrients(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var n *model.Nutrient
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		n, err = h.pantry.GetNutrients(r.Context(), s, auth.UserID(r.Context()), id)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ReplaceNutrients swaps the item's whole nutrient tree for the body.
func (h *ItemHandler) ReplaceNutrients(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in model.NutrientInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var (
		item *model.InventoryItem
		n    *model.Nutrient
	)
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		item, n, err = h.pantry.ReplaceNutrients(r.Context(), s, auth.UserID(r.Context()), id, in)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Publish(r.Context(), entityNutrients, "updated", item.ID, item.OwnerID, n)
	writeJSON(w, http.StatusOK, n)
}
