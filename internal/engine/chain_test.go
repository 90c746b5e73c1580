package engine

import (
	"testing"

	"gigbridge/internal/models"
)

func chainOf(statuses ...models.NegotiationStatus) []models.Negotiation {
	chain := make([]models.Negotiation, 0, len(statuses))
	for i, s := range statuses {
		chain = append(chain, models.Negotiation{ID: uint(i + 1), Status: s})
	}
	return chain
}

func TestEffectiveStatusSupersededReadsAsRejected(t *testing.T) {
	chain := chainOf(models.NegotiationPending, models.NegotiationPending)

	if got := EffectiveStatus(chain[0], chain); got != models.NegotiationRejected {
		t.Fatalf("superseded pending negotiation: got %s, want %s", got, models.NegotiationRejected)
	}
	if got := EffectiveStatus(chain[1], chain); got != models.NegotiationPending {
		t.Fatalf("newest pending negotiation: got %s, want %s", got, models.NegotiationPending)
	}
}

func TestEffectiveStatusKeepsResolvedStatuses(t *testing.T) {
	chain := chainOf(models.NegotiationCounterProposed, models.NegotiationAccepted)

	if got := EffectiveStatus(chain[0], chain); got != models.NegotiationCounterProposed {
		t.Fatalf("counter_proposed should pass through, got %s", got)
	}
	if got := EffectiveStatus(chain[1], chain); got != models.NegotiationAccepted {
		t.Fatalf("accepted should pass through, got %s", got)
	}
}

func TestResolveChainDoesNotMutateInput(t *testing.T) {
	chain := chainOf(models.NegotiationPending, models.NegotiationPending)

	resolved := ResolveChain(chain)

	if resolved[0].Status != models.NegotiationRejected {
		t.Fatalf("resolved[0]: got %s, want %s", resolved[0].Status, models.NegotiationRejected)
	}
	if chain[0].Status != models.NegotiationPending {
		t.Fatalf("input chain was mutated: got %s", chain[0].Status)
	}
}

func TestActionable(t *testing.T) {
	chain := chainOf(models.NegotiationCounterProposed, models.NegotiationPending)

	if Actionable(chain[0], chain) {
		t.Fatal("resolved older negotiation should not be actionable")
	}
	if !Actionable(chain[1], chain) {
		t.Fatal("newest pending negotiation should be actionable")
	}

	chain[1].Status = models.NegotiationRejected
	if Actionable(chain[1], chain) {
		t.Fatal("rejected negotiation should not be actionable")
	}
}

func TestEffectiveEngagementStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.EngagementStatus
		chain  []models.Negotiation
		want   models.EngagementStatus
	}{
		{
			name:   "negotiating with live proposal stays negotiating",
			status: models.EngagementNegotiating,
			chain:  chainOf(models.NegotiationPending),
			want:   models.EngagementNegotiating,
		},
		{
			name:   "negotiating with newest rejected reads cancelled",
			status: models.EngagementNegotiating,
			chain:  chainOf(models.NegotiationCounterProposed, models.NegotiationRejected),
			want:   models.EngagementCancelled,
		},
		{
			name:   "negotiating with newest accepted reads accepted",
			status: models.EngagementNegotiating,
			chain:  chainOf(models.NegotiationAccepted),
			want:   models.EngagementAccepted,
		},
		{
			name:   "negotiating with empty chain passes through",
			status: models.EngagementNegotiating,
			chain:  nil,
			want:   models.EngagementNegotiating,
		},
		{
			name:   "non-negotiating status passes through untouched",
			status: models.EngagementPaymentPending,
			chain:  chainOf(models.NegotiationRejected),
			want:   models.EngagementPaymentPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveEngagementStatus(tt.status, tt.chain); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}
