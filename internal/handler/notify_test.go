package handler

import (
	"context"
	"slices"
	"testing"

	"github.com/dukerupert/prepper/internal/database"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
	"github.com/dukerupert/prepper/internal/websocket"
)

type recordingHub struct {
	audiences [][]int64
	messages  []websocket.Message
}

func (h *recordingHub) BroadcastTo(userIDs []int64, msg websocket.Message) {
	h.audiences = append(h.audiences, userIDs)
	h.messages = append(h.messages, msg)
}

func TestNotifierTargetsAccessibleSet(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := store.New(db)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := s.Users.Create(ctx, name, name+"@example.com", "hash", false)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, u.ID)
	}
	alice, bob, carol := ids[0], ids[1], ids[2]

	g, err := s.Groups.Create(ctx, model.Group{Name: "Home", CreatorID: alice, InviteCode: "HOME0000"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := s.Memberships.Add(ctx, g.ID, alice, model.RoleCreator); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if _, err := s.Memberships.Add(ctx, g.ID, bob, model.RoleMember); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	hub := &recordingHub{}
	n := NewNotifier(s.Memberships, hub, discardLogger())
	n.Publish(ctx, entityItem, "created", 7, alice, nil)
	n.Publish(ctx, entityBasket, "deleted", 9, carol, nil)

	if len(hub.audiences) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(hub.audiences))
	}
	if want := []int64{alice, bob}; !slices.Equal(hub.audiences[0], want) {
		t.Errorf("audience = %v, want %v", hub.audiences[0], want)
	}
	if want := []int64{carol}; !slices.Equal(hub.audiences[1], want) {
		t.Errorf("audience = %v, want %v", hub.audiences[1], want)
	}
	if msg := hub.messages[0]; msg.Type != "item_created" || msg.ID != 7 || msg.OwnerID != alice {
		t.Errorf("message = %+v", msg)
	}
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	n.Publish(context.Background(), entityItem, "created", 1, 1, nil)
}
