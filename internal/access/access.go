// Package access decides which users' inventory and basket entries a
// requester may see or change, and what a member may do inside a group.
package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukerupert/prepper/internal/apperr"
	"github.com/dukerupert/prepper/internal/model"
)

// MembershipReader is the slice of the membership store the resolver needs.
type MembershipReader interface {
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	UserIDsInGroups(ctx context.Context, groupIDs []int64) ([]int64, error)
	Get(ctx context.Context, groupID, userID int64) (*model.Membership, error)
}

// OwnerSet is a set of user ids. It is never empty when returned by
// AccessibleOwners.
type OwnerSet map[int64]struct{}

func (s OwnerSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members of the set in ascending order.
func (s OwnerSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AccessibleOwners returns userID plus every user sharing at least one
// group with userID, across all of userID's groups. It reads the current
// memberships on every call.
func AccessibleOwners(ctx context.Context, m MembershipReader, userID int64) (OwnerSet, error) {
	set := OwnerSet{userID: {}}

	groupIDs, err := m.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve groups: %w", err)
	}
	if len(groupIDs) == 0 {
		return set, nil
	}

	userIDs, err := m.UserIDsInGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve co-members: %w", err)
	}
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	return set, nil
}

// RequireMember returns userID's membership in groupID, or an
// authorization error if there is none.
func RequireMember(ctx context.Context, m MembershipReader, groupID, userID int64) (*model.Membership, error) {
	mem, err := m.Get(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, apperr.Forbidden("you are not a member of this group")
	}
	return mem, nil
}

// RequireManager is RequireMember restricted to admins and the creator.
func RequireManager(ctx context.Context, m MembershipReader, groupID, userID int64) (*model.Membership, error) {
	mem, err := RequireMember(ctx, m, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !mem.CanManage() {
		return nil, apperr.Forbidden("only group admins can do this")
	}
	return mem, nil
}

// RequireCreator is RequireMember restricted to the group's creator.
func RequireCreator(ctx context.Context, m MembershipReader, groupID, userID int64) (*model.Membership, error) {
	mem, err := RequireMember(ctx, m, groupID, userID)
	if err != nil {
		return nil, err
	}
	if mem.Role != model.RoleCreator {
		return nil, apperr.Forbidden("only the group creator can do this")
	}
	return mem, nil
}
