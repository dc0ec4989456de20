// Package actor models the humans acting on evidence and milestones. Roles
// map to fixed capability sets; permission checks happen once at the manager
// boundary, never inside the core logic.
package actor

import "errors"

// ErrNotPermitted is returned when an actor lacks the capability an
// operation requires.
var ErrNotPermitted = errors.New("actor not permitted")

// Role is an actor's assigned role
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Capability names an action a role may perform.
type Capability string

const (
	CapReview  Capability = "review"
	CapApprove Capability = "approve"
	CapReject  Capability = "reject"
)

// Actor is an identified human principal
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

var roleCapabilities = map[Role]map[Capability]bool{
	RoleViewer: {},
	RoleOperator: {
		CapReview: true,
	},
	RoleSupervisor: {
		CapReview:  true,
		CapApprove: true,
		CapReject:  true,
	},
	RoleAdmin: {
		CapReview:  true,
		CapApprove: true,
		CapReject:  true,
	},
}

// Can reports whether the actor's role grants the capability. Unknown roles
// grant nothing.
func (a Actor) Can(c Capability) bool {
	return roleCapabilities[a.Role][c]
}

// Require returns ErrNotPermitted unless the actor holds the capability.
func (a Actor) Require(c Capability) error {
	if !a.Can(c) {
		return ErrNotPermitted
	}
	return nil
}
