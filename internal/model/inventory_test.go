package model

import (
	"testing"
	"time"
)

func TestCategoriesScan(t *testing.T) {
	tests := []struct {
		src  any
		want []string
	}{
		{"Obst,Gemüse", []string{"Obst", "Gemüse"}},
		{[]byte("Fisch"), []string{"Fisch"}},
		{"", []string{}},
		{" Obst , ,Fleisch", []string{"Obst", "Fleisch"}},
		{nil, []string{}},
	}
	for _, tt := range tests {
		var c Categories
		if err := c.Scan(tt.src); err != nil {
			t.Fatalf("scan %v: %v", tt.src, err)
		}
		if len(c) != len(tt.want) {
			t.Fatalf("scan %v = %v, want %v", tt.src, c, tt.want)
		}
		for i := range c {
			if c[i] != tt.want[i] {
				t.Errorf("scan %v [%d] = %q, want %q", tt.src, i, c[i], tt.want[i])
			}
		}
	}
}

func TestCategoriesScanRejectsNumbers(t *testing.T) {
	var c Categories
	if err := c.Scan(int64(3)); err == nil {
		t.Error("expected error scanning int64")
	}
}

func TestInvitationExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := Invitation{Status: InvitationPending, ExpiresAt: now.Add(-time.Minute)}
	if !inv.Expired(now) {
		t.Error("expected pending invitation past expiry to be expired")
	}

	inv.ExpiresAt = now.Add(time.Hour)
	if inv.Expired(now) {
		t.Error("expected invitation before expiry to be live")
	}

	inv.Status = InvitationAccepted
	inv.ExpiresAt = now.Add(-time.Hour)
	if inv.Expired(now) {
		t.Error("accepted invitations are never reported as expired")
	}
}
