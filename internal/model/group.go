package model

import "time"

const (
	RoleCreator = "creator"
	RoleAdmin   = "admin"
	RoleMember  = "member"
)

type Group struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Image       string    `json:"image,omitempty" db:"image"`
	CreatorID   int64     `json:"creator_id" db:"creator_id"`
	InviteCode  string    `json:"invite_code" db:"invite_code"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// GroupSummary is a group as seen by one of its members.
type GroupSummary struct {
	Group
	Role        string `json:"role" db:"role"`
	MemberCount int    `json:"member_count" db:"member_count"`
}

type Membership struct {
	ID       int64     `json:"id" db:"id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	GroupID  int64     `json:"group_id" db:"group_id"`
	Role     string    `json:"role" db:"role"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// CanManage reports whether the role may invite and remove members.
func (m *Membership) CanManage() bool {
	return m.Role == RoleAdmin || m.Role == RoleCreator
}

// Member is a membership joined with the member's public profile.
type Member struct {
	Membership
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
}

type GroupDetail struct {
	Group
	Role    string   `json:"role"`
	Members []Member `json:"members"`
}

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

// InvitationTTL is how long an invitation can be consumed after creation.
const InvitationTTL = 48 * time.Hour

type Invitation struct {
	ID           int64      `json:"id" db:"id"`
	GroupID      int64      `json:"group_id" db:"group_id"`
	InvitedBy    int64      `json:"invited_by" db:"invited_by"`
	InvitedEmail string     `json:"invited_email,omitempty" db:"invited_email"`
	Token        string     `json:"token" db:"token"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
}

// Expired reports whether a pending invitation has passed its expiry.
// The status column never holds "expired".
func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ExpiresAt)
}

// InvitationPreview is what an unauthenticated caller may learn about a token.
type InvitationPreview struct {
	GroupID          int64     `json:"group_id"`
	GroupName        string    `json:"group_name"`
	GroupDescription string    `json:"group_description"`
	InviterID        int64     `json:"inviter_id"`
	InviterName      string    `json:"inviter_name"`
	ExpiresAt        time.Time `json:"expires_at"`
}
