package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gigbridge/internal/engine"
	"gigbridge/internal/models"
	"gigbridge/internal/pricing"
)

// Store is the GORM-backed implementation of engine.Store. The conditional
// writes lean on predicate WHERE clauses plus RowsAffected checks so that a
// guard failing under a concurrent writer surfaces as a conflict instead of a
// lost update.
type Store struct {
	db *gorm.DB
}

func NewStore() *Store {
	return &Store{db: DB}
}

func (s *Store) GetEngagement(ctx context.Context, id uint) (*models.Engagement, error) {
	var e models.Engagement
	err := s.db.WithContext(ctx).
		Preload("DailySessions", func(db *gorm.DB) *gorm.DB {
			return db.Order("day_index ASC")
		}).
		First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: engagement %d", engine.ErrNotFound, id)
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEngagement(ctx context.Context, e *models.Engagement) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) UpdateEngagement(ctx context.Context, e *models.Engagement, expectStatus ...models.EngagementStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Engagement{}).
			Where("id = ? AND status IN ?", e.ID, statusStrings(expectStatus)).
			Select("pricing_mode", "proposed_price", "proposed_hours", "proposed_days",
				"scheduled_date", "status", "payment_method", "payment_ref",
				"payment_completed_at", "client_completed_at", "provider_completed_at").
			Updates(e)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: engagement %d was modified concurrently", engine.ErrConflict, e.ID)
		}

		// A rebuilt session schedule arrives as unsaved rows; swap the whole
		// set so count stays aligned with proposed_days.
		if rebuilt(e.DailySessions) {
			if err := tx.Where("engagement_id = ?", e.ID).Delete(&models.DailySession{}).Error; err != nil {
				return err
			}
			for i := range e.DailySessions {
				e.DailySessions[i].EngagementID = e.ID
				if err := tx.Create(&e.DailySessions[i]).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func rebuilt(sessions []models.DailySession) bool {
	for i := range sessions {
		if sessions[i].ID == 0 {
			return true
		}
	}
	return false
}

func statusStrings(statuses []models.EngagementStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func (s *Store) GetNegotiation(ctx context.Context, id uint) (*models.Negotiation, error) {
	var n models.Negotiation
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: negotiation %d", engine.ErrNotFound, id)
		}
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNegotiations(ctx context.Context, engagementID uint) ([]models.Negotiation, error) {
	var chain []models.Negotiation
	err := s.db.WithContext(ctx).
		Where("engagement_id = ?", engagementID).
		Order("created_at ASC, id ASC").
		Find(&chain).Error
	return chain, err
}

func (s *Store) CreateNegotiation(ctx context.Context, n *models.Negotiation) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) UpdateNegotiationStatus(ctx context.Context, id uint, from, to models.NegotiationStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Negotiation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return engine.ErrAlreadyResolved
	}
	return nil
}

func (s *Store) GetProviderRates(ctx context.Context, providerID uint) (pricing.RateCard, error) {
	var profile models.ProviderProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", providerID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.RateCard{}, fmt.Errorf("%w: provider %d has no rate card", engine.ErrNotFound, providerID)
		}
		return pricing.RateCard{}, err
	}
	return pricing.RateCard{
		MinHourlyRate: profile.MinHourlyRate,
		MinDailyRate:  profile.MinDailyRate,
		MinFixedRate:  profile.MinFixedRate,
	}, nil
}

func (s *Store) UpdateDailySession(ctx context.Context, session *models.DailySession) error {
	return s.db.WithContext(ctx).Model(session).
		Select("scheduled_date", "scheduled_time", "client_completed", "provider_completed").
		Updates(session).Error
}

// SettleEngagement stamps balance_added_at, credits the provider, and writes
// the settlement ledger row in one transaction. The stamp is the idempotency
// lock: the WHERE predicate only matches while it is NULL, so a second
// qualifying writer updates zero rows and the credit fires exactly once.
func (s *Store) SettleEngagement(ctx context.Context, engagementID, providerID uint, amount float64, at time.Time) (bool, error) {
	settled := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Engagement{}).
			Where("id = ? AND status = ? AND balance_added_at IS NULL", engagementID, models.EngagementCompleted).
			Where("payment_completed_at IS NOT NULL AND client_completed_at IS NOT NULL AND provider_completed_at IS NOT NULL").
			Update("balance_added_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", providerID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}

		record := models.Transaction{
			UserID:       providerID,
			EngagementID: &engagementID,
			Type:         models.TransactionSettlement,
			Amount:       amount,
			Status:       models.TransactionCompleted,
			Reference:    fmt.Sprintf("STL-%s", uuid.NewString()),
			Description:  fmt.Sprintf("Settlement for engagement #%d", engagementID),
			CompletedAt:  &at,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		settled = true
		return nil
	})
	return settled, err
}

// AddToBalance credits a user atomically (read-add-write in one statement).
func AddToBalance(userID uint, amount float64) error {
	res := DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", engine.ErrNotFound, userID)
	}
	return nil
}

// SubtractFromBalance debits a user, rejecting any debit that would push the
// balance negative, even when a settlement credit races the withdrawal.
func SubtractFromBalance(userID uint, amount float64) error {
	res := DB.Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return engine.ErrInsufficientBalance
	}
	return nil
}
