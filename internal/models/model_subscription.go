package models

import (
	"time"
)

// Subscription is a user's proxy subscription. SubscriptionKey is the public
// token embedded in the subscription URL.
type Subscription struct {
	ID              string `gorm:"column:id;type:varchar(36);primary_key" json:"id"`
	UserID          string `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	SubscriptionKey string `gorm:"column:subscription_key;type:varchar(64);not null;uniqueIndex" json:"subscription_key"`
	// DeviceLimit is the number of devices that may be allowed at once.
	DeviceLimit int `gorm:"column:device_limit;not null" json:"device_limit"`
	// CurrentDevices mirrors the number of allowed devices. Only the device count
	// synchronizer writes it.
	CurrentDevices int  `gorm:"column:current_devices;not null" json:"current_devices"`
	IsActive       bool `gorm:"column:is_active;not null" json:"is_active"`
	// ExpireAt is nil for subscriptions that never expire.
	ExpireAt  *time.Time `gorm:"column:expire_at;default:null" json:"expire_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

func (s *Subscription) Expired(now time.Time) bool {
	return s != nil && s.ExpireAt != nil && s.ExpireAt.Before(now)
}
