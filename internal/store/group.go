package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/prepper/internal/model"
)

type GroupStore struct {
	db DBTX
}

func NewGroupStore(db DBTX) *GroupStore {
	return &GroupStore{db: db}
}

const groupCols = `id, name, description, image, creator_id, invite_code, created_at`

// Create inserts a group. ErrConflict means the invite code or the
// (creator, name) pair is taken.
func (s *GroupStore) Create(ctx context.Context, g model.Group) (*model.Group, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO user_groups (name, description, image, creator_id, invite_code) VALUES (?, ?, ?, ?, ?)`,
		g.Name, g.Description, g.Image, g.CreatorID, g.InviteCode,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert group: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GroupStore) get(ctx context.Context, where string, args ...any) (*model.Group, error) {
	var g model.Group
	err := s.db.GetContext(ctx, &g, `SELECT `+groupCols+` FROM user_groups WHERE `+where, args...)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	g, err := s.get(ctx, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) GetByInviteCode(ctx context.Context, code string) (*model.Group, error) {
	g, err := s.get(ctx, `invite_code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("get group by invite code: %w", err)
	}
	return g, nil
}

func (s *GroupStore) GetByCreatorAndName(ctx context.Context, creatorID int64, name string) (*model.Group, error) {
	g, err := s.get(ctx, `creator_id = ? AND name = ?`, creatorID, name)
	if err != nil {
		return nil, fmt.Errorf("get group by name: %w", err)
	}
	return g, nil
}

// ListForUser returns every group the user belongs to with the user's role
// and the group's member count.
func (s *GroupStore) ListForUser(ctx context.Context, userID int64) ([]model.GroupSummary, error) {
	var groups []model.GroupSummary
	err := s.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.name, g.description, g.image, g.creator_id, g.invite_code, g.created_at,
		        m.role,
		        (SELECT COUNT(*) FROM group_memberships c WHERE c.group_id = g.id) AS member_count
		 FROM user_groups g
		 JOIN group_memberships m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.name ASC, g.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) Update(ctx context.Context, id int64, name, description, image string) (*model.Group, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_groups SET name = ?, description = ?, image = ? WHERE id = ?`,
		name, description, image, id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update group: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GroupStore) SetInviteCode(ctx context.Context, id int64, code string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE user_groups SET invite_code = ? WHERE id = ?`, code, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("set invite code: %w", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("set invite code: %w", err)
	}
	return nil
}

// Delete removes the group row only. Memberships and invitations must be
// deleted first; the foreign keys reject anything else.
func (s *GroupStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
