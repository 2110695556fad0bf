package stripe

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

// customerList mirrors the provider's customer query response shape.
type customerList struct {
	Data []customerRecord `json:"data"`
}

type customerRecord struct {
	ID string `json:"id"`
}

// CustomerResolver implements ports.CustomerResolver against the provider.
type CustomerResolver struct {
	client *Client
	logger zerolog.Logger
}

// NewCustomerResolver creates a new customer resolver.
func NewCustomerResolver(client *Client, logger zerolog.Logger) *CustomerResolver {
	return &CustomerResolver{client: client, logger: logger}
}

// Resolve looks up the provider customer behind an opaque reference.
// An empty result set classifies as the soft not-paying outcome; transport
// and parsing failures classify as internal with the detail logged only.
func (r *CustomerResolver) Resolve(ctx context.Context, customerRef string) (billing.Customer, *billing.Outcome) {
	raw, err := r.client.Do(ctx, http.MethodGet, "/v1/customers/"+customerRef, nil)
	if err != nil {
		return billing.Customer{}, classifyTransport(r.logger, "resolve_customer", err)
	}

	var list customerList
	if err := json.Unmarshal(raw, &list); err != nil {
		return billing.Customer{}, classifyTransport(r.logger, "resolve_customer", err)
	}

	if len(list.Data) == 0 {
		r.logger.Warn().Str("customer_ref", customerRef).Msg("customer not found at provider")
		return billing.Customer{}, outcome(billing.OutcomeNotPayingCustomer)
	}

	return billing.Customer{ID: list.Data[0].ID}, nil
}

var _ ports.CustomerResolver = (*CustomerResolver)(nil)
