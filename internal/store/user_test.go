package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserCreate(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "alice", "alice@example.com", "hash", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want %q", u.Username, "alice")
	}
	if !u.Active {
		t.Error("expected new user to be active")
	}
	if u.Admin {
		t.Error("expected new user not to be admin")
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicate(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := s.Users.Create(ctx, "alice", "alice@example.com", "hash", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := s.Users.Create(ctx, "alice", "other@example.com", "hash", false)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate username err = %v, want ErrConflict", err)
	}
	_, err = s.Users.Create(ctx, "bob", "ALICE@example.com", "hash", false)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}
}

func TestUserLookups(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	created := mustUser(t, s, "alice")

	byID, err := s.Users.GetByID(ctx, created.ID)
	if err != nil || byID == nil {
		t.Fatalf("get by id: %v, %v", byID, err)
	}
	byName, err := s.Users.GetByUsername(ctx, "alice")
	if err != nil || byName == nil || byName.ID != created.ID {
		t.Fatalf("get by username: %v, %v", byName, err)
	}
	byEmail, err := s.Users.GetByEmail(ctx, "alice@example.com")
	if err != nil || byEmail == nil || byEmail.ID != created.ID {
		t.Fatalf("get by email: %v, %v", byEmail, err)
	}

	missing, err := s.Users.GetByID(ctx, 999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserSetPasswordAndActive(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice")

	if err := s.Users.SetPassword(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := s.Users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	got, err := s.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("password hash = %q, want %q", got.PasswordHash, "new-hash")
	}
	if got.Active {
		t.Error("expected user to be inactive")
	}
}

func TestUserList(t *testing.T) {
	s, _ := setupTestDB(t)
	mustUser(t, s, "alice")
	mustUser(t, s, "bob")

	users, err := s.Users.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "bob" {
		t.Errorf("order = %q, %q", users[0].Username, users[1].Username)
	}
}

func TestPasswordResetLifecycle(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice")
	now := time.Now().UTC()

	first, err := s.Resets.Create(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(first.Code) != 6 {
		t.Errorf("code length = %d, want 6", len(first.Code))
	}

	second, err := s.Resets.Create(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	active, err := s.Resets.GetActive(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("active = %+v, want id %d", active, second.ID)
	}

	n, err := s.Resets.IncrementAttempts(ctx, second.ID)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}

	if err := s.Resets.MarkUsed(ctx, second.ID, now); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	active, err = s.Resets.GetActive(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("get active after use: %v", err)
	}
	if active != nil {
		t.Error("expected no active code after use")
	}

	later := now.Add(ResetTTL + time.Minute)
	if active, _ := s.Resets.GetActive(ctx, u.ID, later); active != nil {
		t.Error("expected expired code to be inactive")
	}
	deleted, err := s.Resets.DeleteExpired(ctx, later)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}
