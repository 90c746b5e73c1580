package engine

import (
	"gigbridge/internal/models"
)

// Negotiation chains are append-only; which proposal is live is a read-time
// projection over the chain order, never persisted. The helpers here expect
// the chain sorted by creation, oldest first, as the store returns it.

// Latest returns the most recently created negotiation in the chain, or nil
// for an empty chain.
func Latest(chain []models.Negotiation) *models.Negotiation {
	if len(chain) == 0 {
		return nil
	}
	return &chain[len(chain)-1]
}

// EffectiveStatus resolves a negotiation's display status. A pending
// negotiation that is not the newest in its chain has been superseded and
// reads as rejected, even though its stored status still says pending.
func EffectiveStatus(n models.Negotiation, chain []models.Negotiation) models.NegotiationStatus {
	if n.Status != models.NegotiationPending {
		return n.Status
	}
	latest := Latest(chain)
	if latest != nil && latest.ID != n.ID {
		return models.NegotiationRejected
	}
	return models.NegotiationPending
}

// ResolveChain returns a copy of the chain with effective statuses applied.
func ResolveChain(chain []models.Negotiation) []models.Negotiation {
	resolved := make([]models.Negotiation, len(chain))
	copy(resolved, chain)
	for i := range resolved {
		resolved[i].Status = EffectiveStatus(resolved[i], chain)
	}
	return resolved
}

// Actionable reports whether the negotiation is the one a responder may
// accept, reject, or counter: the chain's newest entry, still pending.
func Actionable(n models.Negotiation, chain []models.Negotiation) bool {
	latest := Latest(chain)
	return latest != nil && latest.ID == n.ID && n.Status == models.NegotiationPending
}

// EffectiveEngagementStatus projects an engagement's display status from the
// negotiation chain. While negotiating, a rejected newest proposal reads as
// cancelled and an accepted one as accepted; everything else passes through.
func EffectiveEngagementStatus(status models.EngagementStatus, chain []models.Negotiation) models.EngagementStatus {
	if status != models.EngagementNegotiating {
		return status
	}
	latest := Latest(chain)
	if latest == nil {
		return status
	}
	switch latest.Status {
	case models.NegotiationRejected:
		return models.EngagementCancelled
	case models.NegotiationAccepted:
		return models.EngagementAccepted
	}
	return status
}
