package models

import (
	"time"

	"gorm.io/gorm"
)

type EngagementStatus string

const (
	EngagementPending           EngagementStatus = "pending"
	EngagementNegotiating       EngagementStatus = "negotiating"
	EngagementPaymentPending    EngagementStatus = "payment_pending"
	EngagementAccepted          EngagementStatus = "accepted"
	EngagementPendingCompletion EngagementStatus = "pending_completion"
	EngagementCompleted         EngagementStatus = "completed"
	EngagementCancelled         EngagementStatus = "cancelled"
)

type PricingMode string

const (
	PricingHourly PricingMode = "hourly"
	PricingDaily  PricingMode = "daily"
	PricingFixed  PricingMode = "fixed"
)

// Engagement is one client↔provider service transaction. Price and schedule
// may be renegotiated (see Negotiation) until one side accepts; completion
// requires independent confirmation from both parties before settlement.
type Engagement struct {
	ID          uint        `gorm:"primarykey" json:"id"`
	ClientID    uint        `gorm:"not null;index" json:"client_id"`
	ProviderID  uint        `gorm:"not null;index" json:"provider_id"`
	Description string      `gorm:"type:text" json:"description,omitempty"`
	PricingMode PricingMode `gorm:"type:varchar(10);not null" json:"pricing_mode"`

	ProposedPrice *float64   `json:"proposed_price,omitempty"`
	ProposedHours *int       `json:"proposed_hours,omitempty"`
	ProposedDays  *int       `json:"proposed_days,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`

	// Attachment (brief, reference photo, ...) stored on Cloudinary.
	AttachedFileURL      string `gorm:"type:text" json:"attached_file_url,omitempty"`
	AttachedFilePublicID string `gorm:"type:text" json:"attached_file_public_id,omitempty"`

	Status        EngagementStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentMethod string           `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	PaymentRef    string           `gorm:"type:varchar(64);index" json:"payment_ref,omitempty"`

	PaymentCompletedAt  *time.Time `json:"payment_completed_at,omitempty"`
	ClientCompletedAt   *time.Time `json:"client_completed_at,omitempty"`
	ProviderCompletedAt *time.Time `json:"provider_completed_at,omitempty"`
	// BalanceAddedAt is the settlement lock: set exactly once, in the same
	// write that credits the provider.
	BalanceAddedAt *time.Time `json:"balance_added_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	DailySessions []DailySession `gorm:"foreignKey:EngagementID" json:"daily_sessions,omitempty"`
	Negotiations  []Negotiation  `gorm:"foreignKey:EngagementID" json:"negotiations,omitempty"`
	Client        User           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Provider      User           `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}

func (Engagement) TableName() string {
	return "engagements"
}

// IsParty reports whether userID is the client or the provider of the engagement.
func (e *Engagement) IsParty(userID uint) bool {
	return e.ClientID == userID || e.ProviderID == userID
}

// IsActive reports whether the engagement is still in a live pre-completion state.
func (e *Engagement) IsActive() bool {
	switch e.Status {
	case EngagementPending, EngagementNegotiating, EngagementPaymentPending, EngagementAccepted:
		return true
	}
	return false
}

// DailySession is one calendar day of a daily-mode engagement. Client and
// provider each confirm their own flag; the parent engagement completes only
// when every session carries both.
type DailySession struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	EngagementID  uint      `gorm:"not null;index" json:"engagement_id"`
	DayIndex      int       `gorm:"not null" json:"day_index"`
	ScheduledDate time.Time `json:"scheduled_date"`
	ScheduledTime string    `gorm:"type:varchar(10)" json:"scheduled_time,omitempty"`

	ClientCompleted   bool `gorm:"default:false" json:"client_completed"`
	ProviderCompleted bool `gorm:"default:false" json:"provider_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DailySession) TableName() string {
	return "daily_sessions"
}

func (s *DailySession) BothCompleted() bool {
	return s.ClientCompleted && s.ProviderCompleted
}
