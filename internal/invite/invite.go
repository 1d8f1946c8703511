// Package invite manages groups and the ways users join them: one-shot
// invitation tokens and each group's standing invite code.
//
// Every operation takes the *store.Stores of the caller's transaction and
// never commits on its own.
package invite

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/prepper/internal/access"
	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

// codeAttempts bounds retries when a freshly generated invite code collides.
const codeAttempts = 5

type Manager struct {
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// CreateParams describes a new invitation. Email is empty for link-only
// invitations. Token is used as-is when set.
type CreateParams struct {
	Email string
	Token string
}

// CreateInvitation issues a pending invitation to groupID on behalf of
// inviterID, who must be a member.
func (m *Manager) CreateInvitation(ctx context.Context, s *store.Stores, groupID, inviterID int64, p CreateParams) (*model.Invitation, error) {
	g, err := s.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if _, err := access.RequireMember(ctx, s.Memberships, groupID, inviterID); err != nil {
		return nil, err
	}

	email := normalizeEmail(p.Email)
	now := m.now()

	if email != "" {
		existing, err := s.Invitations.GetPending(ctx, groupID, email)
		if err != nil {
			return nil, err
		}
		if existing != nil && !existing.Expired(now) {
			return nil, apperr.Conflict("%s already has a pending invitation", email)
		}
		// Expired pending rows would otherwise hold the unique index.
		if err := s.Invitations.DeleteExpiredPending(ctx, groupID, email, now); err != nil {
			return nil, err
		}
	}

	token := p.Token
	if token == "" {
		if token, err = GenerateToken(); err != nil {
			return nil, err
		}
	}

	inv, err := s.Invitations.Create(ctx, model.Invitation{
		GroupID:      groupID,
		InvitedBy:    inviterID,
		InvitedEmail: email,
		Token:        token,
		CreatedAt:    now,
		ExpiresAt:    now.Add(model.InvitationTTL),
	})
	if errors.Is(err, store.ErrConflict) {
		if email != "" {
			return nil, apperr.Conflict("%s already has a pending invitation", email)
		}
		return nil, apperr.Conflict("invitation token already in use")
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info("invitation created", "group_id", groupID, "invited_by", inviterID, "email", email != "")
	return inv, nil
}

// InviteByEmail is CreateInvitation for an email address, restricted to
// group admins and the creator. An address that already belongs to a
// member is rejected.
func (m *Manager) InviteByEmail(ctx context.Context, s *store.Stores, groupID, inviterID int64, email string) (*model.Invitation, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("email is invalid")
	}

	g, err := s.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if _, err := access.RequireManager(ctx, s.Memberships, groupID, inviterID); err != nil {
		return nil, err
	}

	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		mem, err := s.Memberships.Get(ctx, groupID, u.ID)
		if err != nil {
			return nil, err
		}
		if mem != nil {
			return nil, apperr.Conflict("%s is already a member", email)
		}
	}

	return m.CreateInvitation(ctx, s, groupID, inviterID, CreateParams{Email: email})
}

// check loads the invitation for token and verifies it can still be used.
func (m *Manager) check(ctx context.Context, s *store.Stores, token string) (*model.Invitation, error) {
	inv, err := s.Invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFound("invitation not found")
	}
	if inv.Status != model.InvitationPending {
		return nil, apperr.Invalid("invitation has already been %s", inv.Status)
	}
	if inv.Expired(m.now()) {
		return nil, apperr.Expired("invitation has expired")
	}
	return inv, nil
}

// usable is check for calls that change the invitation. A token that has
// already left pending is a Conflict there.
func (m *Manager) usable(ctx context.Context, s *store.Stores, token string) (*model.Invitation, error) {
	inv, err := m.check(ctx, s, token)
	if apperr.KindOf(err) == apperr.KindInvalid {
		return nil, apperr.Conflict("%s", apperr.Message(err))
	}
	return inv, err
}

// ValidateInvitation previews a token without changing anything.
func (m *Manager) ValidateInvitation(ctx context.Context, s *store.Stores, token string) (*model.InvitationPreview, error) {
	inv, err := m.check(ctx, s, token)
	if err != nil {
		return nil, err
	}
	g, err := s.Groups.GetByID(ctx, inv.GroupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	preview := &model.InvitationPreview{
		GroupID:          g.ID,
		GroupName:        g.Name,
		GroupDescription: g.Description,
		InviterID:        inv.InvitedBy,
		ExpiresAt:        inv.ExpiresAt,
	}
	inviter, err := s.Users.GetByID(ctx, inv.InvitedBy)
	if err != nil {
		return nil, err
	}
	if inviter != nil {
		preview.InviterName = inviter.Username
	}
	return preview, nil
}

// ConsumeInvitation turns a pending token into a member-role membership
// for userID and marks the invitation accepted.
func (m *Manager) ConsumeInvitation(ctx context.Context, s *store.Stores, token string, userID int64) (*model.Membership, error) {
	inv, err := m.usable(ctx, s, token)
	if err != nil {
		return nil, err
	}

	mem, err := m.join(ctx, s, inv.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Invitations.MarkAccepted(ctx, inv.ID, m.now()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("invitation has already been used")
		}
		return nil, err
	}

	m.logger.Info("invitation accepted", "group_id", inv.GroupID, "user_id", userID)
	return mem, nil
}

// DeclineInvitation marks a pending token declined. Declining is final.
func (m *Manager) DeclineInvitation(ctx context.Context, s *store.Stores, token string, userID int64) error {
	inv, err := m.usable(ctx, s, token)
	if err != nil {
		return err
	}
	if err := s.Invitations.MarkDeclined(ctx, inv.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apperr.Conflict("invitation has already been used")
		}
		return err
	}
	m.logger.Info("invitation declined", "group_id", inv.GroupID, "user_id", userID)
	return nil
}

// JoinByCode adds userID to the group whose standing invite code is code.
func (m *Manager) JoinByCode(ctx context.Context, s *store.Stores, code string, userID int64) (*model.Membership, error) {
	g, err := s.Groups.GetByInviteCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("no group with that invite code")
	}
	mem, err := m.join(ctx, s, g.ID, userID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("joined by code", "group_id", g.ID, "user_id", userID)
	return mem, nil
}

func (m *Manager) join(ctx context.Context, s *store.Stores, groupID, userID int64) (*model.Membership, error) {
	existing, err := s.Memberships.Get(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("you are already a member of this group")
	}
	mem, err := s.Memberships.Add(ctx, groupID, userID, model.RoleMember)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Conflict("you are already a member of this group")
	}
	if err != nil {
		return nil, err
	}
	return mem, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
