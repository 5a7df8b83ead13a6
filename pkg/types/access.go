package types

import "strings"

// AccessType is the outcome of a single access decision.
type AccessType string

const (
	AccessTypeAllowed            AccessType = "allowed"
	AccessTypeBrowser            AccessType = "browser_access"
	AccessTypeNotFound           AccessType = "not_found"
	AccessTypeBlockedExpired     AccessType = "blocked_expired"
	AccessTypeBlockedInactive    AccessType = "blocked_inactive"
	AccessTypeBlockedDeviceLimit AccessType = "blocked_device_limit"
	AccessTypeError              AccessType = "error"
)

// LogType returns the value stored in the access log: the subscription type
// prefix is added to everything except browser, not found and error entries.
func (a AccessType) LogType(t SubscriptionType) string {
	switch a {
	case AccessTypeBrowser, AccessTypeNotFound, AccessTypeError:
		return string(a)
	default:
		return string(t) + "_" + string(a)
	}
}

// SplitLogType is the inverse of LogType. Unprefixed entries return an empty
// subscription type.
func SplitLogType(s string) (SubscriptionType, AccessType) {
	for _, t := range []SubscriptionType{SubscriptionTypeSSR, SubscriptionTypeClash} {
		if rest, ok := strings.CutPrefix(s, string(t)+"_"); ok {
			return t, AccessType(rest)
		}
	}
	return "", AccessType(s)
}
