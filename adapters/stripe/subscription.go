package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

// subscriptionList mirrors the provider's subscription query response.
type subscriptionList struct {
	Data []subscriptionRecord `json:"data"`
}

type subscriptionRecord struct {
	ID       string      `json:"id"`
	Customer string      `json:"customer"`
	Status   string      `json:"status"`
	Plan     *planRecord `json:"plan"`
	Items    struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"items"`
}

type planRecord struct {
	UsageType string `json:"usage_type"`
}

// SubscriptionResolver implements ports.SubscriptionResolver against the
// provider.
type SubscriptionResolver struct {
	client *Client
	logger zerolog.Logger
}

// NewSubscriptionResolver creates a new subscription resolver.
func NewSubscriptionResolver(client *Client, logger zerolog.Logger) *SubscriptionResolver {
	return &SubscriptionResolver{client: client, logger: logger}
}

// Resolve finds the customer's single active subscription.
//
// The query is limited to one result; the first record of the active-status
// query is authoritative (at most one active subscription per customer).
// A present record whose plan is absent or whose status is not exactly
// "active" is treated the same as no subscription at all; the provider is
// not trusted to filter consistently.
func (r *SubscriptionResolver) Resolve(ctx context.Context, customerID string) (billing.Subscription, *billing.Outcome) {
	q := url.Values{}
	q.Set("customer", customerID)
	q.Set("status", "active")
	q.Set("limit", "1")

	raw, err := r.client.Do(ctx, http.MethodGet, "/v1/subscriptions?"+q.Encode(), nil)
	if err != nil {
		return billing.Subscription{}, classifyTransport(r.logger, "resolve_subscription", err)
	}

	var list subscriptionList
	if err := json.Unmarshal(raw, &list); err != nil {
		return billing.Subscription{}, classifyTransport(r.logger, "resolve_subscription", err)
	}

	if len(list.Data) == 0 {
		r.logger.Warn().Str("customer_id", customerID).Msg("customer has no subscription")
		return billing.Subscription{}, outcome(billing.OutcomeNoSubscription)
	}

	rec := list.Data[0]
	if rec.Plan == nil || rec.Status != "active" {
		r.logger.Warn().Str("customer_id", customerID).Msg("customer has no active subscription plan")
		return billing.Subscription{}, outcome(billing.OutcomeNoSubscription)
	}

	return project(rec), nil
}

// project maps the provider record to the domain subscription.
func project(rec subscriptionRecord) billing.Subscription {
	sub := billing.Subscription{
		ID:         rec.ID,
		CustomerID: rec.Customer,
		Status:     rec.Status,
		UsageType:  billing.UsageType(rec.Plan.UsageType),
	}
	for _, item := range rec.Items.Data {
		sub.ItemIDs = append(sub.ItemIDs, item.ID)
	}
	return sub
}

var _ ports.SubscriptionResolver = (*SubscriptionResolver)(nil)
