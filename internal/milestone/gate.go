package milestone

import (
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/actor"
)

// Gate wraps the manager with capability checks for the approval
// transitions. The manager itself assumes pre-authorized calls.
type Gate struct {
	manager *Manager
}

// NewGate creates a capability-checking front for the manager.
func NewGate(manager *Manager) *Gate {
	return &Gate{manager: manager}
}

// Approve requires the approve capability.
func (g *Gate) Approve(a actor.Actor, id, notes string) (*Milestone, error) {
	if err := a.Require(actor.CapApprove); err != nil {
		return nil, err
	}
	return g.manager.Approve(id, a.ID, notes), nil
}

// Reject requires the reject capability.
func (g *Gate) Reject(a actor.Actor, id, reason string) (*Milestone, error) {
	if err := a.Require(actor.CapReject); err != nil {
		return nil, err
	}
	return g.manager.Reject(id, a.ID, reason), nil
}
