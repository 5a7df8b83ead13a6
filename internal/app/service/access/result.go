package access

import (
	"net/http"

	"github.com/fatflowers/subpanel/pkg/types"
	"github.com/fatflowers/subpanel/pkg/uaparser"
)

const (
	MsgNotFound        = "订阅地址不存在"
	MsgExpired         = "订阅已过期"
	MsgInactive        = "订阅已停用"
	MsgDeviceLimit     = "设备数量已达上限"
	MsgDeviceLimitN    = "设备数量已达上限（%d个）"
	MsgAllowed         = "访问成功"
	MsgBrowser         = "浏览器访问"
	MsgInternalFailure = "服务器内部错误"
)

type CheckAccessRequest struct {
	SubscriptionKey  string
	UserAgent        string
	ClientIP         string
	SubscriptionType types.SubscriptionType
	// DeviceID is the optional per-install id from the device_id query
	// parameter. When set it alone identifies the device.
	DeviceID string
}

type AccessResult struct {
	Allowed          bool                   `json:"allowed"`
	StatusCode       int                    `json:"status_code"`
	Message          string                 `json:"message"`
	AccessType       string                 `json:"access_type"`
	SubscriptionType types.SubscriptionType `json:"subscription_type"`
	DeviceInfo       *uaparser.Descriptor   `json:"device_info,omitempty"`

	SubscriptionID string `json:"-"`
	DeviceID       string `json:"-"`
}

// Outcome is the access type without the subscription type prefix.
func (r *AccessResult) Outcome() types.AccessType {
	_, at := types.SplitLogType(r.AccessType)
	return at
}

func newResult(req *CheckAccessRequest, at types.AccessType, status int, msg string) *AccessResult {
	return &AccessResult{
		Allowed:          status == http.StatusOK,
		StatusCode:       status,
		Message:          msg,
		AccessType:       at.LogType(req.SubscriptionType),
		SubscriptionType: req.SubscriptionType,
	}
}
