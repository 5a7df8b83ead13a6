package models

import "time"

// SoftwareRule maps a User-Agent substring to a client software name.
// Only UserAgentPattern takes part in matching; the other patterns are kept
// for operators editing the table.
type SoftwareRule struct {
	ID               string    `gorm:"column:id;type:varchar(36);primary_key" json:"id"`
	SoftwareName     string    `gorm:"column:software_name;type:varchar(128);not null;index" json:"software_name"`
	SoftwareCategory string    `gorm:"column:software_category;type:varchar(64);not null" json:"software_category"`
	UserAgentPattern string    `gorm:"column:user_agent_pattern;type:varchar(255);not null" json:"user_agent_pattern"`
	OSPattern        string    `gorm:"column:os_pattern;type:varchar(255)" json:"os_pattern"`
	DevicePattern    string    `gorm:"column:device_pattern;type:varchar(255)" json:"device_pattern"`
	VersionPattern   string    `gorm:"column:version_pattern;type:varchar(255)" json:"version_pattern"`
	IsActive         bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (SoftwareRule) TableName() string { return "software_rule" }
