package models

import (
	"time"

	"github.com/fatflowers/subpanel/pkg/types"

	"gorm.io/datatypes"
)

// SubscriptionLog records administrative changes to a subscription, including
// resets.
type SubscriptionLog struct {
	ID             string                         `gorm:"column:id;type:varchar(36);primary_key" json:"id"`
	SubscriptionID string                         `gorm:"column:subscription_id;type:varchar(36);not null;index" json:"subscription_id"`
	UserID         string                         `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Reason         types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before is nil for newly created subscriptions.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after" json:"after"`
	// Extra carries reason specific details such as device counts around a reset.
	Extra      datatypes.JSONMap `gorm:"column:extra" json:"extra"`
	OperatorID string            `gorm:"column:operator_id;type:varchar(64)" json:"operator_id"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
