package models

import "time"

// AccessLog is an append-only record of one access decision.
type AccessLog struct {
	ID              string    `gorm:"column:id;type:varchar(36);primary_key" json:"id"`
	SubscriptionID  string    `gorm:"column:subscription_id;type:varchar(36);not null;index" json:"subscription_id"`
	DeviceID        *string   `gorm:"column:device_id;type:varchar(36)" json:"device_id"`
	IPAddress       string    `gorm:"column:ip_address;type:varchar(64)" json:"ip_address"`
	UserAgent       string    `gorm:"column:user_agent;type:text" json:"user_agent"`
	AccessType      string    `gorm:"column:access_type;type:varchar(64);not null;index" json:"access_type"`
	ResponseStatus  int       `gorm:"column:response_status;not null" json:"response_status"`
	ResponseMessage string    `gorm:"column:response_message;type:varchar(255)" json:"response_message"`
	AccessTime      time.Time `gorm:"column:access_time;not null;index" json:"access_time"`
}

func (AccessLog) TableName() string { return "subscription_access_log" }
