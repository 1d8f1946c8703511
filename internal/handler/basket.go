package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/pantry"
	"github.com/dukerupert/prepper/internal/store"
)

type BasketHandler struct {
	runner   *store.Runner
	pantry   *pantry.Service
	notifier *Notifier
	logger   *slog.Logger
}

func NewBasketHandler(runner *store.Runner, svc *pantry.Service, notifier *Notifier, logger *slog.Logger) *BasketHandler {
	return &BasketHandler{runner: runner, pantry: svc, notifier: notifier, logger: logger}
}

func (h *BasketHandler) List(w http.ResponseWriter, r *http.Request) {
	var entries []model.BasketView
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		entries, err = h.pantry.ListBasket(r.Context(), s, auth.UserID(r.Context()))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *BasketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var entry *model.BasketView
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		entry, err = h.pantry.GetBasketItem(r.Context(), s, auth.UserID(r.Context()), id)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Add puts a name in the caller's basket, or bumps its quantity when the
// caller already has it.
func (h *BasketHandler) Add(w http.ResponseWriter, r *http.Request) {
	var in pantry.BasketInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var entry *model.BasketView
	err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		entry, err = h.pantry.AddToBasket(r.Context(), s, auth.UserID(r.Context()), in)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Publish(r.Context(), entityBasket, "updated", entry.ID, entry.OwnerID, entry.BasketItem)
	writeJSON(w, http.StatusCreated, entry)
}

// Update applies a partial update. A quantity of zero or less removes the
// entry and answers 204.
func (h *BasketHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var u model.BasketUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var (
		entry  *model.BasketView
		before *model.BasketItem
	)
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		entry, before, err = h.pantry.UpdateBasketItem(r.Context(), s, auth.UserID(r.Context()), id, u)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entry == nil {
		h.notifier.Publish(r.Context(), entityBasket, "deleted", before.ID, before.OwnerID, nil)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.notifier.Publish(r.Context(), entityBasket, "updated", entry.ID, entry.OwnerID, entry.BasketItem)
	writeJSON(w, http.StatusOK, entry)
}

func (h *BasketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var deleted *model.BasketItem
	err = h.runner.InTx(r.Context(), func(s *store.Stores) error {
		var err error
		deleted, err = h.pantry.DeleteBasketItem(r.Context(), s, auth.UserID(r.Context()), id)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Publish(r.Context(), entityBasket, "deleted", deleted.ID, deleted.OwnerID, nil)
	writeJSON(w, http.StatusOK, statusOK("deleted"))
}
