// Package workspace holds the multi-tenant aggregate every authorization
// decision is computed against: a workspace with its role-tagged members,
// pending invitations and supported languages.
package workspace

import "time"

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Role is the per-workspace membership tier.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleRank = map[Role]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// Valid reports whether r is one of the known tiers.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether r meets a required tier. The hierarchy is
// strict: owner > admin > member, and a higher tier always satisfies a
// check for a lower one.
func (r Role) Satisfies(required Role) bool {
	return roleRank[r] >= roleRank[required] && roleRank[required] > 0
}

// Workspace is the tenant aggregate. Load it once per request and reuse it
// for every check; the members and languages slices are part of the load.
type Workspace struct {
	ID              string
	Name            string
	Status          string
	Theme           string
	DefaultLanguage string
	Languages       []string
	Members         []Member
	Invitations     []Invitation
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Active reports whether the workspace lifecycle state allows actions.
func (w *Workspace) Active() bool {
	return w.Status == StatusActive
}

// SupportsLanguage reports whether code is one of the workspace languages.
func (w *Workspace) SupportsLanguage(code string) bool {
	for _, l := range w.Languages {
		if l == code {
			return true
		}
	}
	return false
}

// Member links a user to a workspace with a role. The (workspace, user)
// pair is unique.
type Member struct {
	WorkspaceID string
	UserID      string
	Role        Role
	CreatedAt   time.Time
}

// Invitation statuses. Transitions are one-way: only pending may leave.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRefused  = "refused"
	InvitationDeleted  = "deleted"
)

// Invitation is a pending grant of membership, secured by the same
// secret/hash scheme as access tokens but with its own table and wire
// prefix.
type Invitation struct {
	ID          string
	WorkspaceID string
	InviterID   string
	Email       string
	Role        Role
	Status      string
	Hash        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
