// Package pantry guards inventory items and basket entries. Every read
// and write resolves the requester's accessible owners first and checks
// the target row's owner against them.
package pantry

import (
	"context"
	"log/slog"

	"github.com/dukerupert/prepper/internal/access"
	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/store"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// authorize fails with Forbidden when ownerID is outside the set of
// owners visible to userID.
func authorize(ctx context.Context, s *store.Stores, userID, ownerID int64) error {
	owners, err := access.AccessibleOwners(ctx, s.Memberships, userID)
	if err != nil {
		return err
	}
	if !owners.Contains(ownerID) {
		return apperr.Forbidden("you do not have access to this resource")
	}
	return nil
}
