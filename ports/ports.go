// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/domain/generate"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Billing Provider Ports
// -----------------------------------------------------------------------------

// CustomerResolver maps an opaque customer reference to a provider-side
// customer record.
type CustomerResolver interface {
	// Resolve looks up the customer behind the reference. A nil outcome
	// means success; a non-nil outcome is terminal and already classified.
	Resolve(ctx context.Context, customerRef string) (billing.Customer, *billing.Outcome)
}

// SubscriptionResolver finds the single active subscription for a
// provider-side customer id.
type SubscriptionResolver interface {
	Resolve(ctx context.Context, customerID string) (billing.Subscription, *billing.Outcome)
}

// UsageReporter reports metered usage against a subscription line item.
// Each call creates a new usage record; callers own deduplication and must
// never retry a failed report without an idempotency key.
type UsageReporter interface {
	// Report returns the provider's response body unmodified.
	Report(ctx context.Context, subscriptionItemID string, quantity int64) (json.RawMessage, error)
}

// UsageResolver reads aggregate usage back from the provider.
type UsageResolver interface {
	Summary(ctx context.Context, subscriptionItemID string) (billing.UsageSummary, *billing.Outcome)
}

// ProductResolver looks up product records. Transport errors propagate
// unclassified; the caller owns classification.
type ProductResolver interface {
	Resolve(ctx context.Context, productID string) (json.RawMessage, error)
}

// -----------------------------------------------------------------------------
// Cache Ports
// -----------------------------------------------------------------------------

// SubscriptionCache is a key/value store with per-entry expiry, keyed by the
// caller's opaque customer reference. It is a pure store: read-through
// semantics are implemented by the caller, and a miss is never an error.
// Get and Put must each be atomic per key; no transactional semantics are
// required across the two.
type SubscriptionCache interface {
	// Get returns the cached subscription if present and unexpired.
	// A storage error means "treat as miss"; callers log and continue.
	Get(ctx context.Context, customerRef string) (billing.Subscription, bool, error)

	// Put stores the subscription, overwriting any stale entry.
	Put(ctx context.Context, customerRef string, sub billing.Subscription, ttl time.Duration) error
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// UsageReport is a queued request to report metered usage.
type UsageReport struct {
	SubscriptionItemID string
	Quantity           int64
}

// UsageRecorder accepts usage reports for async delivery to the provider.
type UsageRecorder interface {
	// Record queues a report. This must be non-blocking.
	Record(r UsageReport)

	// Flush delivers all queued reports.
	Flush(ctx context.Context) error

	// Close stops the recorder after flushing remaining reports.
	Close() error
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// DocumentStore persists completed generated documents.
type DocumentStore interface {
	Create(ctx context.Context, doc generate.Document) error
	ListByCustomer(ctx context.Context, customerRef string, limit int) ([]generate.Document, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// TextGenerator streams generated content for a topic. The returned reader
// yields the raw stream; the caller closes it.
type TextGenerator interface {
	Generate(ctx context.Context, topic string) (io.ReadCloser, error)
}
