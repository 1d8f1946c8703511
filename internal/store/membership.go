package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/prepper/internal/model"
)

type MembershipStore struct {
	db DBTX
}

func NewMembershipStore(db DBTX) *MembershipStore {
	return &MembershipStore{db: db}
}

const membershipCols = `id, user_id, group_id, role, joined_at`

// Add inserts a membership. A second membership for the same
// (user, group) pair fails with ErrConflict.
func (s *MembershipStore) Add(ctx context.Context, groupID, userID int64, role string) (*model.Membership, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO group_memberships (group_id, user_id, role) VALUES (?, ?, ?)`,
		groupID, userID, role,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("add membership: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("add membership: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var m model.Membership
	if err := s.db.GetContext(ctx, &m, `SELECT `+membershipCols+` FROM group_memberships WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) Get(ctx context.Context, groupID, userID int64) (*model.Membership, error) {
	var m model.Membership
	err := s.db.GetContext(ctx, &m,
		`SELECT `+membershipCols+` FROM group_memberships WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) Remove(ctx context.Context, groupID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

func (s *MembershipStore) SetRole(ctx context.Context, groupID, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE group_memberships SET role = ? WHERE group_id = ? AND user_id = ?`,
		role, groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// ListMembers returns the group's members with their usernames and emails.
func (s *MembershipStore) ListMembers(ctx context.Context, groupID int64) ([]model.Member, error) {
	var members []model.Member
	err := s.db.SelectContext(ctx, &members,
		`SELECT m.id, m.user_id, m.group_id, m.role, m.joined_at, u.username, u.email
		 FROM group_memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = ?
		 ORDER BY m.joined_at ASC, m.id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// GroupIDsForUser returns the ids of every group the user belongs to.
func (s *MembershipStore) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT group_id FROM group_memberships WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group ids: %w", err)
	}
	return ids, nil
}

// UserIDsInGroups returns the distinct user ids with a membership in any
// of the given groups.
func (s *MembershipStore) UserIDsInGroups(ctx context.Context, groupIDs []int64) ([]int64, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select("DISTINCT user_id").
		From("group_memberships").
		Where(sq.Eq{"group_id": groupIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build member query: %w", err)
	}

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list user ids in groups: %w", err)
	}
	return ids, nil
}

func (s *MembershipStore) DeleteByGroup(ctx context.Context, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM group_memberships WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	return nil
}
