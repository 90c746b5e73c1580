package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationEngagementCreated    NotificationType = "engagement_created"
	NotificationNegotiationOpened    NotificationType = "negotiation_opened"
	NotificationNegotiationAccepted  NotificationType = "negotiation_accepted"
	NotificationNegotiationRejected  NotificationType = "negotiation_rejected"
	NotificationNegotiationCountered NotificationType = "negotiation_countered"
	NotificationPaymentReceived      NotificationType = "payment_received"
	NotificationCompletionRequested  NotificationType = "completion_requested"
	NotificationEngagementCompleted  NotificationType = "engagement_completed"
	NotificationSettlementCredited   NotificationType = "settlement_credited"
	NotificationWithdrawalSuccess    NotificationType = "withdrawal_success"
	NotificationWithdrawalFailed     NotificationType = "withdrawal_failed"
)

type Notification struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	UserID    uint             `json:"user_id" gorm:"not null;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(50);not null"`
	Title     string           `json:"title" gorm:"type:varchar(255);not null"`
	Message   string           `json:"message" gorm:"type:text;not null"`
	IsRead    bool             `json:"is_read" gorm:"default:false;index"`
	Data      string           `json:"data" gorm:"type:json"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate hook
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	n.CreatedAt = time.Now()
	return nil
}
