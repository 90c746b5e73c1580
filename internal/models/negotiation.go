package models

import (
	"time"
)

type NegotiationStatus string

const (
	NegotiationPending         NegotiationStatus = "pending"
	NegotiationAccepted        NegotiationStatus = "accepted"
	NegotiationRejected        NegotiationStatus = "rejected"
	NegotiationCounterProposed NegotiationStatus = "counter_proposed"
)

// Negotiation is one proposal in an engagement's back-and-forth chain.
// Rows are append-only: a negotiation's status changes at most once
// (accepted, rejected, or counter_proposed) and never again. Which pending
// proposal is actually live is resolved at read time from the chain order,
// not stored.
type Negotiation struct {
	ID           uint `gorm:"primarykey" json:"id"`
	EngagementID uint `gorm:"not null;index" json:"engagement_id"`
	ProposerID   uint `gorm:"not null;index" json:"proposer_id"`

	PricingMode   PricingMode `gorm:"type:varchar(10)" json:"pricing_mode,omitempty"`
	ProposedPrice *float64    `json:"proposed_price,omitempty"`
	ProposedHours *int        `json:"proposed_hours,omitempty"`
	ProposedDays  *int        `json:"proposed_days,omitempty"`
	ProposedDate  *time.Time  `json:"proposed_date,omitempty"`
	Message       string      `gorm:"type:text;not null" json:"message"`

	Status    NegotiationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Negotiation) TableName() string {
	return "negotiations"
}
