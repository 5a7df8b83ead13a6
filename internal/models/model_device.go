package models

import "time"

// Device is one client observed on a subscription, keyed by its fingerprint.
type Device struct {
	ID             string `gorm:"column:id;type:varchar(36);primary_key" json:"id"`
	SubscriptionID string `gorm:"column:subscription_id;type:varchar(36);not null;uniqueIndex:uk_device_hash_subscription,priority:2;index:idx_device_subscription_allowed,priority:1" json:"subscription_id"`
	UserID         string `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	DeviceHash     string `gorm:"column:device_hash;type:varchar(64);not null;uniqueIndex:uk_device_hash_subscription,priority:1" json:"device_hash"`
	UserAgent      string `gorm:"column:user_agent;type:text" json:"user_agent"`
	IPAddress      string `gorm:"column:ip_address;type:varchar(64)" json:"ip_address"`

	SoftwareName     string `gorm:"column:software_name;type:varchar(128)" json:"software_name"`
	SoftwareVersion  string `gorm:"column:software_version;type:varchar(64)" json:"software_version"`
	SoftwareCategory string `gorm:"column:software_category;type:varchar(64)" json:"software_category"`
	OSName           string `gorm:"column:os_name;type:varchar(64)" json:"os_name"`
	OSVersion        string `gorm:"column:os_version;type:varchar(64)" json:"os_version"`
	DeviceBrand      string `gorm:"column:device_brand;type:varchar(64)" json:"device_brand"`
	DeviceModel      string `gorm:"column:device_model;type:varchar(128)" json:"device_model"`
	DeviceType       string `gorm:"column:device_type;type:varchar(32)" json:"device_type"`
	DeviceName       string `gorm:"column:device_name;type:varchar(255)" json:"device_name"`

	IsAllowed   bool      `gorm:"column:is_allowed;not null;index:idx_device_subscription_allowed,priority:2" json:"is_allowed"`
	FirstSeen   time.Time `gorm:"column:first_seen;not null" json:"first_seen"`
	LastSeen    time.Time `gorm:"column:last_seen;not null" json:"last_seen"`
	AccessCount int64     `gorm:"column:access_count;not null" json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Device) TableName() string {
	return "device"
}
