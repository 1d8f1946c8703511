package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/prepper/internal/model"
)

type InvitationStore struct {
	db DBTX
}

func NewInvitationStore(db DBTX) *InvitationStore {
	return &InvitationStore{db: db}
}

const invitationCols = `id, group_id, invited_by, invited_email, token, status, created_at, expires_at, accepted_at`

// Create inserts a pending invitation. A duplicate token, or a second
// pending invitation for the same (group, email), fails with ErrConflict.
func (s *InvitationStore) Create(ctx context.Context, inv model.Invitation) (*model.Invitation, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO group_invitations (group_id, invited_by, invited_email, token, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.GroupID, inv.InvitedBy, inv.InvitedEmail, inv.Token, model.InvitationPending, inv.CreatedAt, inv.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert invitation: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getBy(ctx, "get invitation", `id = ?`, id)
}

func (s *InvitationStore) getBy(ctx context.Context, op, where string, args ...any) (*model.Invitation, error) {
	var inv model.Invitation
	err := s.db.GetContext(ctx, &inv, `SELECT `+invitationCols+` FROM group_invitations WHERE `+where, args...)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &inv, nil
}

func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	return s.getBy(ctx, "get invitation by token", `token = ?`, token)
}

// GetPending returns the pending invitation for (group, email), expired or
// not, or nil.
func (s *InvitationStore) GetPending(ctx context.Context, groupID int64, email string) (*model.Invitation, error) {
	return s.getBy(ctx, "get pending invitation",
		`group_id = ? AND invited_email = ? AND status = ?`,
		groupID, email, model.InvitationPending,
	)
}

// DeleteExpiredPending removes pending invitations for (group, email) that
// expired at or before now.
func (s *InvitationStore) DeleteExpiredPending(ctx context.Context, groupID int64, email string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_invitations
		 WHERE group_id = ? AND invited_email = ? AND status = ? AND expires_at <= ?`,
		groupID, email, model.InvitationPending, now,
	)
	if err != nil {
		return fmt.Errorf("delete expired invitations: %w", err)
	}
	return nil
}

// transition moves a pending invitation to status. It fails with
// ErrConflict when the invitation has already left pending.
func (s *InvitationStore) transition(ctx context.Context, id int64, status string, acceptedAt *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE group_invitations SET status = ?, accepted_at = ? WHERE id = ? AND status = ?`,
		status, acceptedAt, id, model.InvitationPending,
	)
	if err != nil {
		return fmt.Errorf("update invitation status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update invitation status: %w", ErrConflict)
	}
	return nil
}

func (s *InvitationStore) MarkAccepted(ctx context.Context, id int64, at time.Time) error {
	return s.transition(ctx, id, model.InvitationAccepted, &at)
}

func (s *InvitationStore) MarkDeclined(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.InvitationDeclined, nil)
}

func (s *InvitationStore) ListByGroup(ctx context.Context, groupID int64) ([]model.Invitation, error) {
	var invs []model.Invitation
	err := s.db.SelectContext(ctx, &invs,
		`SELECT `+invitationCols+` FROM group_invitations WHERE group_id = ? ORDER BY created_at DESC, id DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return invs, nil
}

func (s *InvitationStore) DeleteByGroup(ctx context.Context, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM group_invitations WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("delete invitations: %w", err)
	}
	return nil
}
