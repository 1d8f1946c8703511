package invite

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/prepper/internal/access"
	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

// GroupInput carries the editable fields of a group.
type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (in *GroupInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	return nil
}

// CreateGroup creates a group with a fresh invite code and makes
// creatorID its creator member.
func (m *Manager) CreateGroup(ctx context.Context, s *store.Stores, creatorID int64, in GroupInput) (*model.Group, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	dup, err := s.Groups.GetByCreatorAndName(ctx, creatorID, in.Name)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, apperr.Conflict("you already have a group named %q", in.Name)
	}

	var g *model.Group
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := GenerateInviteCode()
		if err != nil {
			return nil, err
		}
		g, err = s.Groups.Create(ctx, model.Group{
			Name:        in.Name,
			Description: in.Description,
			Image:       in.Image,
			CreatorID:   creatorID,
			InviteCode:  code,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		// The name was checked above, so the code collided.
		g = nil
	}
	if g == nil {
		return nil, apperr.Internal(nil, "could not allocate an invite code")
	}

	if _, err := s.Memberships.Add(ctx, g.ID, creatorID, model.RoleCreator); err != nil {
		return nil, err
	}
	m.logger.Info("group created", "group_id", g.ID, "creator_id", creatorID)
	return g, nil
}

// ListGroups returns the user's groups with role and member count.
func (m *Manager) ListGroups(ctx context.Context, s *store.Stores, userID int64) ([]model.GroupSummary, error) {
	groups, err := s.Groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []model.GroupSummary{}
	}
	return groups, nil
}

func (m *Manager) loadGroup(ctx context.Context, s *store.Stores, groupID int64) (*model.Group, error) {
	g, err := s.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	return g, nil
}

// GetGroup returns the group and its members to one of its members.
func (m *Manager) GetGroup(ctx context.Context, s *store.Stores, groupID, userID int64) (*model.GroupDetail, error) {
	g, err := m.loadGroup(ctx, s, groupID)
	if err != nil {
		return nil, err
	}
	mem, err := access.RequireMember(ctx, s.Memberships, groupID, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.Memberships.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.Member{}
	}
	return &model.GroupDetail{Group: *g, Role: mem.Role, Members: members}, nil
}

func (m *Manager) UpdateGroup(ctx context.Context, s *store.Stores, groupID, userID int64, in GroupInput) (*model.Group, error) {
	g, err := m.loadGroup(ctx, s, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := access.RequireManager(ctx, s.Memberships, groupID, userID); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	updated, err := s.Groups.Update(ctx, g.ID, in.Name, in.Description, in.Image)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Conflict("the group creator already has a group named %q", in.Name)
	}
	return updated, err
}

// RegenerateInviteCode replaces the group's standing invite code, which
// invalidates the old one.
func (m *Manager) RegenerateInviteCode(ctx context.Context, s *store.Stores, groupID, userID int64) (*model.Group, error) {
	if _, err := m.loadGroup(ctx, s, groupID); err != nil {
		return nil, err
	}
	if _, err := access.RequireManager(ctx, s.Memberships, groupID, userID); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := GenerateInviteCode()
		if err != nil {
			return nil, err
		}
		err = s.Groups.SetInviteCode(ctx, groupID, code)
		if err == nil {
			return s.Groups.GetByID(ctx, groupID)
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
	return nil, apperr.Internal(nil, "could not allocate an invite code")
}

// DeleteGroup removes the group's memberships, then its invitations, then
// the group itself. Only the creator may delete a group.
func (m *Manager) DeleteGroup(ctx context.Context, s *store.Stores, groupID, userID int64) error {
	if _, err := m.loadGroup(ctx, s, groupID); err != nil {
		return err
	}
	if _, err := access.RequireCreator(ctx, s.Memberships, groupID, userID); err != nil {
		return err
	}
	if err := s.Memberships.DeleteByGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.Invitations.DeleteByGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.Groups.Delete(ctx, groupID); err != nil {
		return err
	}
	m.logger.Info("group deleted", "group_id", groupID, "user_id", userID)
	return nil
}

// RemoveMember removes targetID from the group. Admins and the creator may
// remove members; nobody may remove the creator.
func (m *Manager) RemoveMember(ctx context.Context, s *store.Stores, groupID, actorID, targetID int64) error {
	if _, err := m.loadGroup(ctx, s, groupID); err != nil {
		return err
	}
	actor, err := access.RequireManager(ctx, s.Memberships, groupID, actorID)
	if err != nil {
		return err
	}
	target, err := s.Memberships.Get(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.NotFound("user is not a member of this group")
	}
	if target.Role == model.RoleCreator {
		return apperr.Forbidden("the group creator cannot be removed")
	}
	if target.Role == model.RoleAdmin && actor.Role != model.RoleCreator && actorID != targetID {
		return apperr.Forbidden("only the group creator can remove an admin")
	}
	if err := s.Memberships.Remove(ctx, groupID, targetID); err != nil {
		return err
	}
	m.logger.Info("member removed", "group_id", groupID, "user_id", targetID, "by", actorID)
	return nil
}

// LeaveGroup removes userID's own membership. The creator must delete the
// group instead.
func (m *Manager) LeaveGroup(ctx context.Context, s *store.Stores, groupID, userID int64) error {
	if _, err := m.loadGroup(ctx, s, groupID); err != nil {
		return err
	}
	mem, err := access.RequireMember(ctx, s.Memberships, groupID, userID)
	if err != nil {
		return err
	}
	if mem.Role == model.RoleCreator {
		return apperr.Validation("the group creator must delete the group instead of leaving")
	}
	if err := s.Memberships.Remove(ctx, groupID, userID); err != nil {
		return err
	}
	m.logger.Info("member left", "group_id", groupID, "user_id", userID)
	return nil
}

// SetMemberRole promotes or demotes a member. Only the creator may do it
// and the creator role cannot be granted.
func (m *Manager) SetMemberRole(ctx context.Context, s *store.Stores, groupID, actorID, targetID int64, role string) error {
	if role != model.RoleAdmin && role != model.RoleMember {
		return apperr.Validation("role must be %q or %q", model.RoleAdmin, model.RoleMember)
	}
	if _, err := m.loadGroup(ctx, s, groupID); err != nil {
		return err
	}
	if _, err := access.RequireCreator(ctx, s.Memberships, groupID, actorID); err != nil {
		return err
	}
	target, err := s.Memberships.Get(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.NotFound("user is not a member of this group")
	}
	if target.Role == model.RoleCreator {
		return apperr.Validation("the creator's role cannot be changed")
	}
	return s.Memberships.SetRole(ctx, groupID, targetID, role)
}
