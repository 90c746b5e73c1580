package engine

import (
	"context"
	"time"

	"gigbridge/internal/models"
	"gigbridge/internal/pricing"
)

// Store is the persistence contract the engine runs against. The GORM
// implementation lives in internal/database; tests use an in-memory fake.
//
// Conditional methods must apply their predicate and the write atomically:
// UpdateEngagement only commits while the stored status is one of
// expectStatus, UpdateNegotiationStatus only flips from the given status, and
// SettleEngagement only credits while balance_added_at is still unset.
type Store interface {
	GetEngagement(ctx context.Context, id uint) (*models.Engagement, error)
	CreateEngagement(ctx context.Context, e *models.Engagement) error
	// UpdateEngagement persists e (including any daily sessions attached to
	// it) if the stored record's status is in expectStatus. Returns
	// ErrConflict when the guard fails.
	UpdateEngagement(ctx context.Context, e *models.Engagement, expectStatus ...models.EngagementStatus) error

	GetNegotiation(ctx context.Context, id uint) (*models.Negotiation, error)
	ListNegotiations(ctx context.Context, engagementID uint) ([]models.Negotiation, error)
	CreateNegotiation(ctx context.Context, n *models.Negotiation) error
	// UpdateNegotiationStatus flips a negotiation from one status to another.
	// Returns ErrAlreadyResolved if the stored status no longer matches from.
	UpdateNegotiationStatus(ctx context.Context, id uint, from, to models.NegotiationStatus) error

	GetProviderRates(ctx context.Context, providerID uint) (pricing.RateCard, error)

	UpdateDailySession(ctx context.Context, s *models.DailySession) error

	// SettleEngagement atomically credits amount to the provider's balance,
	// stamps balance_added_at, and records a settlement transaction, but
	// only if balance_added_at is still unset. Returns false (and no error)
	// when another writer settled first.
	SettleEngagement(ctx context.Context, engagementID, providerID uint, amount float64, at time.Time) (bool, error)
}
