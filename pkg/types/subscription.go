package types

// SubscriptionType is the content flavour a client asked for. It prefixes
// access log types so statistics can be split per endpoint.
type SubscriptionType string

const (
	SubscriptionTypeSSR   SubscriptionType = "ssr"
	SubscriptionTypeClash SubscriptionType = "clash"
)

func (t SubscriptionType) Valid() bool {
	return t == SubscriptionTypeSSR || t == SubscriptionTypeClash
}

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCreate SubscriptionChangeReason = "create"
	SubscriptionChangeReasonUpdate SubscriptionChangeReason = "update"
	SubscriptionChangeReasonReset  SubscriptionChangeReason = "reset"
)
