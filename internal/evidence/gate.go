package evidence

import (
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/actor"
)

// Gate wraps the manager with capability checks. Role enforcement happens
// here, once, at the boundary; the manager itself assumes pre-authorized
// calls.
type Gate struct {
	manager *Manager
}

// NewGate creates a capability-checking front for the manager.
func NewGate(manager *Manager) *Gate {
	return &Gate{manager: manager}
}

// Review checks the review capability before delegating.
func (g *Gate) Review(a actor.Actor, packageID string, decision Decision, notes string) (bool, error) {
	if err := a.Require(actor.CapReview); err != nil {
		return false, err
	}
	return g.manager.Review(packageID, a.ID, decision, notes), nil
}

// SubmitAppeal requires no capability; any identified actor may appeal.
func (g *Gate) SubmitAppeal(a actor.Actor, packageID, reason string) (bool, error) {
	return g.manager.SubmitAppeal(packageID, reason), nil
}
