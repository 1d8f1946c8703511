package handler

import (
	"context"
	"log/slog"

	"github.com/dukerupert/prepper/internal/access"
	"github.com/dukerupert/prepper/internal/websocket"
)

// Broadcaster delivers a message to the connections of the given users.
type Broadcaster interface {
	BroadcastTo(userIDs []int64, msg websocket.Message)
}

// Notifier tells every user who can see an owner's rows that one of
// them changed. It runs after the request transaction commits, so it
// reads memberships outside of it.
type Notifier struct {
	members access.MembershipReader
	hub     Broadcaster
	logger  *slog.Logger
}

func NewNotifier(members access.MembershipReader, hub Broadcaster, logger *slog.Logger) *Notifier {
	return &Notifier{members: members, hub: hub, logger: logger}
}

// Publish broadcasts a change to ownerID's accessible set. Failures are
// logged; the write they describe has already committed.
func (n *Notifier) Publish(ctx context.Context, entity, action string, id, ownerID int64, data any) {
	if n == nil || n.hub == nil {
		return
	}
	audience, err := access.AccessibleOwners(ctx, n.members, ownerID)
	if err != nil {
		n.logger.Warn("resolve broadcast audience", "owner_id", ownerID, "error", err)
		return
	}
	n.hub.BroadcastTo(audience.IDs(), websocket.NewMessage(entity, action, id, ownerID, data))
}
