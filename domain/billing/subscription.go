// Package billing provides billing value types and pure functions.
// Records here are minimal projections of the provider's API objects:
// created by the resolver adapters, never mutated, cached with a TTL and
// discarded after use.
package billing

// UsageType determines how a subscription is billed.
type UsageType string

const (
	UsageMetered  UsageType = "metered"  // billed per reported unit
	UsageLicensed UsageType = "licensed" // flat fee per period
)

// Customer is a minimal projection of the provider's customer record.
// It exists only to carry the provider-side id between resolvers and is
// itself never cached.
type Customer struct {
	ID string
}

// Subscription is the single currently-active subscription for a customer
// (immutable value type).
//
// The provider is always queried with status=active and limit=1, and only
// the first returned record is treated as authoritative. Exactly one active
// subscription per customer is an explicit assumption of this model; if the
// provider ever holds more, the extras are ignored.
type Subscription struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	UsageType  UsageType `json:"usage_type"`
	ItemIDs    []string  `json:"item_ids"`
}

// IsActive reports whether the subscription is well-formed and active.
// A record with a missing plan counts as inactive even when its status
// field reads "active".
func IsActive(s Subscription) bool {
	return s.Status == "active" && s.UsageType != ""
}

// FirstItemID returns the line item usage is reported against.
func FirstItemID(s Subscription) (string, bool) {
	if len(s.ItemIDs) == 0 {
		return "", false
	}
	return s.ItemIDs[0], true
}

// IsMetered reports whether usage reporting applies to the subscription.
func IsMetered(s Subscription) bool {
	return s.UsageType == UsageMetered
}

// UsageSummary is the aggregate usage reported for a subscription item.
type UsageSummary struct {
	SubscriptionItemID string `json:"subscription_item_id"`
	TotalUsage         int64  `json:"total_usage"`
}
