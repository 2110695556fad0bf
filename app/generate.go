package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/meterly/subgate/adapters/metrics"
	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/domain/generate"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

// GenerateService streams generated content to the caller while teeing the
// same bytes into a buffer. Once the stream completes cleanly the buffered
// payload is parsed and persisted, and one unit of metered usage is
// reported. The deferred work runs off the request path: its failure is
// logged and never affects the stream already delivered to the caller.
type GenerateService struct {
	generator ports.TextGenerator
	docs      ports.DocumentStore
	meter     ports.UsageRecorder
	idGen     ports.IDGenerator
	clock     ports.Clock
	logger    zerolog.Logger
	metrics   *metrics.Collector // optional
}

// GenerateDeps contains dependencies for GenerateService.
type GenerateDeps struct {
	Generator ports.TextGenerator
	Docs      ports.DocumentStore
	Meter     ports.UsageRecorder
	IDGen     ports.IDGenerator
	Clock     ports.Clock
	Logger    zerolog.Logger
	Metrics   *metrics.Collector
}

// NewGenerateService creates a new generate service.
func NewGenerateService(deps GenerateDeps) *GenerateService {
	return &GenerateService{
		generator: deps.Generator,
		docs:      deps.Docs,
		meter:     deps.Meter,
		idGen:     deps.IDGen,
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

// Generate streams a document for the topic to w, then persists the result
// and meters one unit against the subscription's first line item.
// The write side is flushed per chunk when w supports it so the caller
// sees content as it is produced.
func (s *GenerateService) Generate(ctx context.Context, customerRef, topic string, sub billing.Subscription, w io.Writer) error {
	stream, err := s.generator.Generate(ctx, topic)
	if err != nil {
		return fmt.Errorf("start generation: %w", err)
	}
	defer stream.Close()

	flusher, _ := w.(http.Flusher)

	var accumulated []byte
	buf := make([]byte, 4096)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			accumulated = append(accumulated, chunk...)
			if _, writeErr := w.Write(chunk); writeErr != nil {
				// The caller went away. The stream did not complete, so
				// nothing is persisted or metered.
				return fmt.Errorf("write chunk: %w", writeErr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read stream: %w", readErr)
		}
	}

	s.complete(context.WithoutCancel(ctx), customerRef, topic, sub, accumulated)
	return nil
}

// complete runs the deferred side effects for a finished stream.
func (s *GenerateService) complete(ctx context.Context, customerRef, topic string, sub billing.Subscription, payload []byte) {
	if itemID, ok := billing.FirstItemID(sub); ok && billing.IsMetered(sub) {
		s.meter.Record(ports.UsageReport{SubscriptionItemID: itemID, Quantity: 1})
	}

	title, content, err := generate.ParseCompletion(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_ref", customerRef).Msg("completed stream did not parse")
		if s.metrics != nil {
			s.metrics.DocumentsFailed.Inc()
		}
		return
	}

	doc := generate.Document{
		ID:          s.idGen.New(),
		CustomerRef: customerRef,
		Topic:       topic,
		Title:       title,
		Content:     content,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.logger.Error().Err(err).Str("customer_ref", customerRef).Str("doc_id", doc.ID).Msg("document persist failed")
		if s.metrics != nil {
			s.metrics.DocumentsFailed.Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.DocumentsPersisted.Inc()
	}
}

// ListDocuments returns the customer's recent documents.
func (s *GenerateService) ListDocuments(ctx context.Context, customerRef string, limit int) ([]generate.Document, error) {
	return s.docs.ListByCustomer(ctx, customerRef, limit)
}
