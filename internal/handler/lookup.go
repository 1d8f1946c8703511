package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

// LookupHandler serves the seeded reference lists as [{id, name}].
type LookupHandler struct {
	runner *store.Runner
	logger *slog.Logger
}

func NewLookupHandler(runner *store.Runner, logger *slog.Logger) *LookupHandler {
	return &LookupHandler{runner: runner, logger: logger}
}

// List returns a handler for one lookup table.
func (h *LookupHandler) List(table store.Lookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entries []model.LookupEntry
		err := h.runner.InTx(r.Context(), func(s *store.Stores) error {
			var err error
			entries, err = s.Lookups.List(r.Context(), table)
			return err
		})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if entries == nil {
			entries = []model.LookupEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusOK("ok"))
}

// NotFound answers routes that match a pattern but name no action.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}
