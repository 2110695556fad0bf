package stripe

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/meterly/subgate/ports"
)

// ProductResolver implements ports.ProductResolver against the provider.
// Product lookups carry no classification: the raw body (or raw error)
// goes back to the caller, which decides how to present it.
type ProductResolver struct {
	client *Client
}

// NewProductResolver creates a new product resolver.
func NewProductResolver(client *Client) *ProductResolver {
	return &ProductResolver{client: client}
}

// Resolve fetches a product record.
func (r *ProductResolver) Resolve(ctx context.Context, productID string) (json.RawMessage, error) {
	return r.client.Do(ctx, http.MethodGet, "/v1/products/"+productID, nil)
}

var _ ports.ProductResolver = (*ProductResolver)(nil)
