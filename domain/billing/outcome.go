package billing

// OutcomeKind classifies a resolution failure into one of the small set of
// user-facing outcomes. Transport-level detail never appears here.
type OutcomeKind string

const (
	KindNotPayingCustomer OutcomeKind = "not_paying_customer" // no billing identity or no provider record
	KindNoSubscription    OutcomeKind = "no_subscription"     // identity known, no active plan
	KindNoUsage           OutcomeKind = "no_usage"            // subscription known, no usage recorded
	KindInternal          OutcomeKind = "internal"            // transport or parsing failure
)

// Outcome is a classified resolution failure (immutable value type).
// It is returned as a value all the way to the request boundary, which maps
// it to an HTTP response.
type Outcome struct {
	Kind       OutcomeKind
	Message    string
	HTTPStatus int
}

// Canonical outcomes. The soft outcomes deliberately carry a 200 status so
// the gateway can present a friendly upsell rather than an error page.
var (
	OutcomeNotPayingCustomer = Outcome{
		Kind:       KindNotPayingCustomer,
		Message:    "You are not a paying customer... yet?",
		HTTPStatus: 200,
	}
	OutcomeNoSubscription = Outcome{
		Kind:       KindNoSubscription,
		Message:    "You don't have an active subscription.",
		HTTPStatus: 200,
	}
	OutcomeNoUsage = Outcome{
		Kind:       KindNoUsage,
		Message:    "You don't have any usage for your subscription in Stripe",
		HTTPStatus: 200,
	}
	OutcomeInternal = Outcome{
		Kind:       KindInternal,
		Message:    "An error happened while looking for your subscription",
		HTTPStatus: 500,
	}
)
