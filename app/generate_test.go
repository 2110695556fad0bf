package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meterly/subgate/adapters/clock"
	"github.com/meterly/subgate/adapters/idgen"
	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/domain/generate"
	"github.com/meterly/subgate/ports"
	"github.com/rs/zerolog"
)

const completionPayload = `{"function_call":{"name":"blogpost","arguments":"{\"title\":\"T\",\"content\":\"C\"}"}}`

type fakeGenerator struct {
	payload string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, topic string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.payload)), nil
}

type fakeDocStore struct {
	mu   sync.Mutex
	docs []generate.Document
	err  error
}

func (f *fakeDocStore) Create(ctx context.Context, doc generate.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeDocStore) ListByCustomer(ctx context.Context, ref string, limit int) ([]generate.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, nil
}

type captureRecorder struct {
	mu      sync.Mutex
	reports []ports.UsageReport
}

func (c *captureRecorder) Record(r ports.UsageReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *captureRecorder) Flush(ctx context.Context) error { return nil }
func (c *captureRecorder) Close() error                    { return nil }

func newGenerateService(gen ports.TextGenerator, docs ports.DocumentStore, meter ports.UsageRecorder) *GenerateService {
	return NewGenerateService(GenerateDeps{
		Generator: gen,
		Docs:      docs,
		Meter:     meter,
		IDGen:     idgen.NewSequential("doc_"),
		Clock:     clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger:    zerolog.Nop(),
	})
}

var meteredSub = billing.Subscription{
	ID: "sub_9", Status: "active", UsageType: billing.UsageMetered, ItemIDs: []string{"si_1"},
}

func TestGenerate_StreamsPersistsAndMeters(t *testing.T) {
	docs := &fakeDocStore{}
	meter := &captureRecorder{}
	svc := newGenerateService(&fakeGenerator{payload: completionPayload}, docs, meter)

	var out bytes.Buffer
	if err := svc.Generate(context.Background(), "org_42", "caching", meteredSub, &out); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// The caller receives the raw stream, byte for byte.
	if out.String() != completionPayload {
		t.Errorf("streamed = %q", out.String())
	}

	if len(docs.docs) != 1 {
		t.Fatalf("persisted = %d documents, want 1", len(docs.docs))
	}
	doc := docs.docs[0]
	if doc.Title != "T" || doc.Content != "C" || doc.CustomerRef != "org_42" || doc.Topic != "caching" {
		t.Errorf("document = %+v", doc)
	}
	if doc.ID != "doc_1" {
		t.Errorf("doc.ID = %s, want doc_1", doc.ID)
	}

	if len(meter.reports) != 1 {
		t.Fatalf("metered = %d reports, want 1", len(meter.reports))
	}
	if meter.reports[0].SubscriptionItemID != "si_1" || meter.reports[0].Quantity != 1 {
		t.Errorf("report = %+v", meter.reports[0])
	}
}

func TestGenerate_PersistFailureDoesNotAffectStream(t *testing.T) {
	docs := &fakeDocStore{err: errors.New("db locked")}
	svc := newGenerateService(&fakeGenerator{payload: completionPayload}, docs, &captureRecorder{})

	var out bytes.Buffer
	if err := svc.Generate(context.Background(), "org_42", "caching", meteredSub, &out); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.String() != completionPayload {
		t.Errorf("streamed = %q despite persist failure", out.String())
	}
}

func TestGenerate_MalformedCompletionStillStreams(t *testing.T) {
	docs := &fakeDocStore{}
	svc := newGenerateService(&fakeGenerator{payload: "not json at all"}, docs, &captureRecorder{})

	var out bytes.Buffer
	if err := svc.Generate(context.Background(), "org_42", "caching", meteredSub, &out); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.String() != "not json at all" {
		t.Errorf("streamed = %q", out.String())
	}
	if len(docs.docs) != 0 {
		t.Errorf("persisted = %d documents, want 0 for malformed payload", len(docs.docs))
	}
}

func TestGenerate_LicensedSubscriptionNotMetered(t *testing.T) {
	meter := &captureRecorder{}
	svc := newGenerateService(&fakeGenerator{payload: completionPayload}, &fakeDocStore{}, meter)

	licensed := billing.Subscription{ID: "sub_9", Status: "active", UsageType: billing.UsageLicensed, ItemIDs: []string{"si_1"}}
	var out bytes.Buffer
	if err := svc.Generate(context.Background(), "org_42", "caching", licensed, &out); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(meter.reports) != 0 {
		t.Errorf("metered = %d reports, want 0 for licensed plan", len(meter.reports))
	}
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	svc := newGenerateService(&fakeGenerator{err: errors.New("upstream down")}, &fakeDocStore{}, &captureRecorder{})

	var out bytes.Buffer
	if err := svc.Generate(context.Background(), "org_42", "caching", meteredSub, &out); err == nil {
		t.Error("expected error when the generator fails to start")
	}
}
