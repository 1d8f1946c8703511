package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/prepper/internal/model"
)

func newInvitation(groupID, inviterID int64, email, token string, now time.Time) model.Invitation {
	return model.Invitation{
		GroupID:      groupID,
		InvitedBy:    inviterID,
		InvitedEmail: email,
		Token:        token,
		CreatedAt:    now,
		ExpiresAt:    now.Add(model.InvitationTTL),
	}
}

func TestInvitationCreateAndGet(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, alice, "Kitchen", "AAAA1111")
	now := time.Now().UTC()

	inv, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "tok-1", now))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Status != model.InvitationPending {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if inv.AcceptedAt != nil {
		t.Error("expected nil accepted_at")
	}
	if d := inv.ExpiresAt.Sub(inv.CreatedAt); d != model.InvitationTTL {
		t.Errorf("ttl = %v, want %v", d, model.InvitationTTL)
	}

	got, err := s.Invitations.GetByToken(ctx, "tok-1")
	if err != nil || got == nil || got.ID != inv.ID {
		t.Fatalf("get by token: %v, %v", got, err)
	}
	missing, err := s.Invitations.GetByToken(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing = %v, %v", missing, err)
	}
}

func TestInvitationPendingEmailUnique(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, alice, "Kitchen", "AAAA1111")
	now := time.Now().UTC()

	if _, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "tok-1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "tok-2", now))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second pending err = %v, want ErrConflict", err)
	}

	// Link-only invitations have no email and never collide.
	for _, tok := range []string{"link-1", "link-2"} {
		if _, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "", tok, now)); err != nil {
			t.Errorf("link invite %s: %v", tok, err)
		}
	}

	_, err = s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "carol@example.com", "tok-1", now))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate token err = %v, want ErrConflict", err)
	}
}

func TestInvitationTransitionsAreOneShot(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, alice, "Kitchen", "AAAA1111")
	now := time.Now().UTC()

	inv, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "tok-1", now))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Invitations.MarkAccepted(ctx, inv.ID, now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Invitations.MarkAccepted(ctx, inv.ID, now); !errors.Is(err, ErrConflict) {
		t.Errorf("second accept err = %v, want ErrConflict", err)
	}
	if err := s.Invitations.MarkDeclined(ctx, inv.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("decline after accept err = %v, want ErrConflict", err)
	}

	got, _ := s.Invitations.GetByToken(ctx, "tok-1")
	if got.Status != model.InvitationAccepted || got.AcceptedAt == nil {
		t.Errorf("invitation = %+v", got)
	}

	// Once accepted, the address can be invited again.
	if _, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "tok-2", now)); err != nil {
		t.Errorf("re-invite after accept: %v", err)
	}
}

func TestInvitationDeleteExpiredPending(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, alice, "Kitchen", "AAAA1111")
	then := time.Now().UTC().Add(-72 * time.Hour)

	if _, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "old", then)); err != nil {
		t.Fatalf("create: %v", err)
	}
	now := time.Now().UTC()
	pending, err := s.Invitations.GetPending(ctx, g.ID, "bob@example.com")
	if err != nil || pending == nil {
		t.Fatalf("get pending: %v, %v", pending, err)
	}
	if !pending.Expired(now) {
		t.Error("expected invitation to read as expired")
	}
	if pending.Status != model.InvitationPending {
		t.Errorf("status = %q, want pending", pending.Status)
	}

	if err := s.Invitations.DeleteExpiredPending(ctx, g.ID, "bob@example.com", now); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if _, err := s.Invitations.Create(ctx, newInvitation(g.ID, alice.ID, "bob@example.com", "new", now)); err != nil {
		t.Errorf("create after cleanup: %v", err)
	}

	invs, err := s.Invitations.ListByGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(invs) != 1 || invs[0].Token != "new" {
		t.Errorf("invitations = %+v", invs)
	}
}
