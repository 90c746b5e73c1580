package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderProfile is a user's published rate card. The minimum rates act as
// price floors for engagements in the matching pricing mode; a nil rate means
// the provider does not offer that mode.
type ProviderProfile struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	UserID   uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	Headline string `gorm:"type:varchar(255)" json:"headline,omitempty"`
	Bio      string `gorm:"type:text" json:"bio,omitempty"`

	MinHourlyRate *float64 `json:"min_hourly_rate,omitempty"`
	MinDailyRate  *float64 `json:"min_daily_rate,omitempty"`
	MinFixedRate  *float64 `json:"min_fixed_rate,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ProviderProfile) TableName() string {
	return "provider_profiles"
}
