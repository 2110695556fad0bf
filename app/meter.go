package app

import (
	"context"
	"sync"
	"time"

	"github.com/meterly/subgate/adapters/metrics"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

// MeterService delivers metered usage reports to the provider
// asynchronously. Handlers enqueue without blocking; a worker drains the
// queue. Reports are append-only at the provider and carry no idempotency
// key, so a failed delivery is logged and dropped, never retried, and no
// ordering is guaranteed between concurrent reports for the same item.
type MeterService struct {
	reporter ports.UsageReporter
	logger   zerolog.Logger
	metrics  *metrics.Collector // optional

	queue     chan ports.UsageReport
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMeterService creates a meter service and starts its worker.
func NewMeterService(reporter ports.UsageReporter, logger zerolog.Logger, m *metrics.Collector, queueSize int) *MeterService {
	if queueSize <= 0 {
		queueSize = 256
	}

	s := &MeterService{
		reporter: reporter,
		logger:   logger,
		metrics:  m,
		queue:    make(chan ports.UsageReport, queueSize),
		stopCh:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Record queues a usage report. Non-blocking: when the queue is full the
// report is dropped and counted.
func (s *MeterService) Record(r ports.UsageReport) {
	select {
	case s.queue <- r:
	default:
		s.logger.Warn().Str("subscription_item_id", r.SubscriptionItemID).Msg("usage report dropped, queue full")
		if s.metrics != nil {
			s.metrics.UsageReportsDropped.Inc()
		}
	}
}

// Flush delivers everything queued at the time of the call.
func (s *MeterService) Flush(ctx context.Context) error {
	for {
		select {
		case r := <-s.queue:
			s.deliver(ctx, r)
		default:
			return nil
		}
	}
}

// Close stops the worker and flushes remaining reports.
func (s *MeterService) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Flush(ctx)
	})
	return nil
}

func (s *MeterService) run() {
	defer s.wg.Done()
	for {
		select {
		case r := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			s.deliver(ctx, r)
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MeterService) deliver(ctx context.Context, r ports.UsageReport) {
	_, err := s.reporter.Report(ctx, r.SubscriptionItemID, r.Quantity)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_item_id", r.SubscriptionItemID).Int64("quantity", r.Quantity).Msg("usage report delivery failed")
		if s.metrics != nil {
			s.metrics.UsageReports.WithLabelValues("error").Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.UsageReports.WithLabelValues("ok").Inc()
	}
}

// Ensure interface compliance.
var _ ports.UsageRecorder = (*MeterService)(nil)
