// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/meterly/subgate/adapters/auth"
	"github.com/meterly/subgate/adapters/metrics"
	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

// DefaultSubscriptionTTL bounds how long a resolved subscription is served
// from cache before the provider is consulted again.
const DefaultSubscriptionTTL = 3600 * time.Second

// GateService resolves whether the authenticated caller holds an active
// subscription. It fronts the resolver chain with a read-through cache:
// on a miss the service itself resolves and populates the cache.
type GateService struct {
	customers     ports.CustomerResolver
	subscriptions ports.SubscriptionResolver
	cache         ports.SubscriptionCache
	logger        zerolog.Logger
	metrics       *metrics.Collector // optional

	// TTL in seconds, hot-reloadable.
	ttlSecs atomic.Int64
}

// GateDeps contains dependencies for GateService.
type GateDeps struct {
	Customers     ports.CustomerResolver
	Subscriptions ports.SubscriptionResolver
	Cache         ports.SubscriptionCache
	Logger        zerolog.Logger
	Metrics       *metrics.Collector
}

// NewGateService creates a new subscription gate.
func NewGateService(deps GateDeps, ttl time.Duration) *GateService {
	if ttl <= 0 {
		ttl = DefaultSubscriptionTTL
	}

	s := &GateService{
		customers:     deps.Customers,
		subscriptions: deps.Subscriptions,
		cache:         deps.Cache,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
	s.ttlSecs.Store(int64(ttl / time.Second))
	return s
}

// UpdateTTL updates the cache TTL. Thread-safe; used by config hot reload.
func (s *GateService) UpdateTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.ttlSecs.Store(int64(ttl / time.Second))
}

func (s *GateService) ttl() time.Duration {
	return time.Duration(s.ttlSecs.Load()) * time.Second
}

// ResolveActiveSubscription resolves the subscription for the request's
// authenticated principal. A missing or billing-less principal resolves to
// the not-paying outcome without any external call.
func (s *GateService) ResolveActiveSubscription(ctx context.Context) (billing.Subscription, *billing.Outcome) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok || principal.BillingRef == "" {
		return billing.Subscription{}, s.observe(&billing.OutcomeNotPayingCustomer)
	}
	return s.Resolve(ctx, principal.BillingRef)
}

// Resolve runs the resolution pipeline for a customer reference: cache,
// then customer lookup, then subscription lookup, with an early return on
// any classified failure. Two concurrent misses for the same reference may
// both resolve and both write the cache; the value is idempotent per
// customer within the TTL window, so the race is accepted.
func (s *GateService) Resolve(ctx context.Context, customerRef string) (billing.Subscription, *billing.Outcome) {
	if sub, ok := s.cacheGet(ctx, customerRef); ok {
		return sub, nil
	}

	// Provider calls survive a client disconnect so an abort mid-chain
	// cannot leave half-written state; the result is simply discarded.
	callCtx := context.WithoutCancel(ctx)

	customer, outcome := s.customers.Resolve(callCtx, customerRef)
	if outcome != nil {
		s.logger.Warn().Str("customer_ref", customerRef).Str("kind", string(outcome.Kind)).Msg("customer resolution failed")
		return billing.Subscription{}, s.observe(outcome)
	}

	// Already logged at the resolver; nothing to add at this layer.
	sub, outcome := s.subscriptions.Resolve(callCtx, customer.ID)
	if outcome != nil {
		return billing.Subscription{}, s.observe(outcome)
	}

	if err := s.cache.Put(ctx, customerRef, sub, s.ttl()); err != nil {
		s.logger.Warn().Err(err).Str("customer_ref", customerRef).Msg("subscription cache put failed")
	}

	s.observeKind("active")
	return sub, nil
}

func (s *GateService) cacheGet(ctx context.Context, customerRef string) (billing.Subscription, bool) {
	sub, ok, err := s.cache.Get(ctx, customerRef)
	if err != nil {
		// Best-effort cache: an unreachable store is a miss, not a failure.
		s.logger.Warn().Err(err).Str("customer_ref", customerRef).Msg("subscription cache get failed")
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
		return billing.Subscription{}, false
	}
	if s.metrics != nil {
		if ok {
			s.metrics.CacheHits.Inc()
		} else {
			s.metrics.CacheMisses.Inc()
		}
	}
	return sub, ok
}

func (s *GateService) observe(o *billing.Outcome) *billing.Outcome {
	s.observeKind(string(o.Kind))
	return o
}

func (s *GateService) observeKind(kind string) {
	if s.metrics != nil {
		s.metrics.GateOutcomes.WithLabelValues(kind).Inc()
	}
}
