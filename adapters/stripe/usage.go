package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

// UsageReporter implements ports.UsageReporter against the provider.
type UsageReporter struct {
	client *Client
}

// NewUsageReporter creates a new usage reporter.
func NewUsageReporter(client *Client) *UsageReporter {
	return &UsageReporter{client: client}
}

// Report creates one usage record for the line item. No idempotency key is
// sent, so every call appends a new record; a failed report must not be
// retried by the caller.
func (r *UsageReporter) Report(ctx context.Context, subscriptionItemID string, quantity int64) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("quantity", strconv.FormatInt(quantity, 10))

	return r.client.Do(ctx, http.MethodPost, "/v1/subscription_items/"+subscriptionItemID+"/usage_records", form)
}

var _ ports.UsageReporter = (*UsageReporter)(nil)

// usageSummaryList mirrors the provider's usage summary response.
type usageSummaryList struct {
	Data []struct {
		TotalUsage int64 `json:"total_usage"`
	} `json:"data"`
}

// UsageResolver implements ports.UsageResolver against the provider.
type UsageResolver struct {
	client *Client
	logger zerolog.Logger
}

// NewUsageResolver creates a new usage resolver.
func NewUsageResolver(client *Client, logger zerolog.Logger) *UsageResolver {
	return &UsageResolver{client: client, logger: logger}
}

// Summary returns the aggregate usage reported for a line item. An empty
// result set classifies as the no-usage outcome.
func (r *UsageResolver) Summary(ctx context.Context, subscriptionItemID string) (billing.UsageSummary, *billing.Outcome) {
	raw, err := r.client.Do(ctx, http.MethodGet, "/v1/subscription_items/"+subscriptionItemID+"/usage_record_summaries?limit=1", nil)
	if err != nil {
		return billing.UsageSummary{}, classifyTransport(r.logger, "usage_summary", err)
	}

	var list usageSummaryList
	if err := json.Unmarshal(raw, &list); err != nil {
		return billing.UsageSummary{}, classifyTransport(r.logger, "usage_summary", err)
	}

	if len(list.Data) == 0 {
		r.logger.Warn().Str("subscription_item_id", subscriptionItemID).Msg("no usage recorded for subscription item")
		return billing.UsageSummary{}, outcome(billing.OutcomeNoUsage)
	}

	return billing.UsageSummary{
		SubscriptionItemID: subscriptionItemID,
		TotalUsage:         list.Data[0].TotalUsage,
	}, nil
}

var _ ports.UsageResolver = (*UsageResolver)(nil)
