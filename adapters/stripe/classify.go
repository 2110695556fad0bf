package stripe

import (
	"github.com/meterly/subgate/domain/billing"
	"github.com/rs/zerolog"
)

// classifyTransport converts a transport or parsing failure into the
// generic internal outcome. The underlying error is logged with full detail
// here and never surfaced to the caller. Every resolver in this package
// uses this helper, so no external-call boundary leaks raw errors.
func classifyTransport(logger zerolog.Logger, op string, err error) *billing.Outcome {
	logger.Error().Err(err).Str("op", op).Msg("provider call failed")
	o := billing.OutcomeInternal
	return &o
}

// outcome returns a pointer copy so callers cannot mutate the canonical
// values.
func outcome(o billing.Outcome) *billing.Outcome {
	return &o
}
