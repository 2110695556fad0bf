package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meterly/subgate/adapters/auth"
	"github.com/meterly/subgate/adapters/clock"
	"github.com/meterly/subgate/adapters/idgen"
	"github.com/meterly/subgate/adapters/memory"
	"github.com/meterly/subgate/app"
	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/domain/generate"
	"github.com/meterly/subgate/ports"
	"github.com/meterly/subgate/web"
)

// Fakes

type fakeCustomers struct {
	customer billing.Customer
	outcome  *billing.Outcome
}

func (f *fakeCustomers) Resolve(ctx context.Context, ref string) (billing.Customer, *billing.Outcome) {
	return f.customer, f.outcome
}

type fakeSubscriptions struct {
	sub     billing.Subscription
	outcome *billing.Outcome
}

func (f *fakeSubscriptions) Resolve(ctx context.Context, id string) (billing.Subscription, *billing.Outcome) {
	return f.sub, f.outcome
}

type fakeUsage struct {
	summary billing.UsageSummary
	outcome *billing.Outcome
}

func (f *fakeUsage) Summary(ctx context.Context, itemID string) (billing.UsageSummary, *billing.Outcome) {
	return f.summary, f.outcome
}

type fakeProducts struct {
	raw json.RawMessage
	err error
}

func (f *fakeProducts) Resolve(ctx context.Context, id string) (json.RawMessage, error) {
	return f.raw, f.err
}

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
	docs []generate.Document
}

func (f *fakeDocStore) Create(ctx context.Context, doc generate.Document) error {
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeDocStore) ListByCustomer(ctx context.Context, ref string, limit int) ([]generate.Document, error) {
	return f.docs, nil
}

type nopRecorder struct{}

func (nopRecorder) Record(ports.UsageReport)    {}
func (nopRecorder) Flush(context.Context) error { return nil }
func (nopRecorder) Close() error                { return nil }

// Test harness

type harness struct {
	customers *fakeCustomers
	subs      *fakeSubscriptions
	usage     *fakeUsage
	products  *fakeProducts
	generator *fakeGenerator
	docs      *fakeDocStore
	tokens    *auth.TokenService
	server    *httptest.Server
}

func activeSub() billing.Subscription {
	return billing.Subscription{
		ID:         "sub_9",
		CustomerID: "cus_1",
		Status:     "active",
		UsageType:  billing.UsageMetered,
		ItemIDs:    []string{"si_1"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		customers: &fakeCustomers{customer: billing.Customer{ID: "cus_1"}},
		subs:      &fakeSubscriptions{sub: activeSub()},
		usage:     &fakeUsage{summary: billing.UsageSummary{SubscriptionItemID: "si_1", TotalUsage: 42}},
		products:  &fakeProducts{raw: json.RawMessage(`{"id":"prod_1"}`)},
		generator: &fakeGenerator{payload: `{"function_call":{"arguments":"{\"title\":\"T\",\"content\":\"C\"}"}}`},
		docs:      &fakeDocStore{},
		tokens:    auth.NewTokenService("test-secret", time.Hour),
	}

	gate := app.NewGateService(app.GateDeps{
		Customers:     h.customers,
		Subscriptions: h.subs,
		Cache:         memory.NewCacheStore(clock.Real{}),
		Logger:        zerolog.Nop(),
	}, time.Hour)

	gen := app.NewGenerateService(app.GenerateDeps{
		Generator: h.generator,
		Docs:      h.docs,
		Meter:     nopRecorder{},
		IDGen:     idgen.NewSequential("doc_"),
		Clock:     clock.Real{},
		Logger:    zerolog.Nop(),
	})

	handler := web.NewHandler(web.Deps{
		Gate:      gate,
		Generator: gen,
		Usage:     h.usage,
		Products:  h.products,
		Tokens:    h.tokens,
		Logger:    zerolog.Nop(),
	})

	h.server = httptest.NewServer(handler.Router())
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) request(t *testing.T, method, path, token string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) token(t *testing.T, billingRef string) string {
	t.Helper()
	token, _, err := h.tokens.GenerateToken("user_1", billingRef)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// Tests

func TestHealthz_NoAuthRequired(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestSubscription_MissingToken(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/subscription", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSubscription_InvalidToken(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/subscription", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSubscription_Active(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/subscription", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sub billing.Subscription
	decodeBody(t, resp, &sub)
	if sub.ID != "sub_9" {
		t.Errorf("sub.ID = %s, want sub_9", sub.ID)
	}
	if sub.UsageType != billing.UsageMetered {
		t.Errorf("sub.UsageType = %s, want metered", sub.UsageType)
	}
}

func TestSubscription_NoBillingRef(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/subscription", h.token(t, ""), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (soft outcome)", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["code"] != "not_paying_customer" {
		t.Errorf("code = %s, want not_paying_customer", body["code"])
	}
	if body["message"] != billing.OutcomeNotPayingCustomer.Message {
		t.Errorf("message = %q, want canonical", body["message"])
	}
}

func TestSubscription_OutcomeStatusPassthrough(t *testing.T) {
	h := newHarness(t)
	h.customers.outcome = &billing.OutcomeInternal

	resp := h.request(t, http.MethodGet, "/v1/subscription", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSubscriptionUsage_Summary(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/subscription/usage", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var summary billing.UsageSummary
	decodeBody(t, resp, &summary)
	if summary.TotalUsage != 42 {
		t.Errorf("TotalUsage = %d, want 42", summary.TotalUsage)
	}
}

func TestSubscriptionUsage_NoItems(t *testing.T) {
	h := newHarness(t)
	sub := activeSub()
	sub.ItemIDs = nil
	h.subs.sub = sub

	resp := h.request(t, http.MethodGet, "/v1/subscription/usage", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["code"] != "no_usage" {
		t.Errorf("code = %s, want no_usage", body["code"])
	}
}

func TestGenerate_StreamsAndPersists(t *testing.T) {
	h := newHarness(t)

	body := bytes.NewBufferString(`{"topic":"go concurrency"}`)
	resp := h.request(t, http.MethodPost, "/v1/generate", h.token(t, "org_42"), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	streamed, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.Contains(string(streamed), "function_call") {
		t.Errorf("stream missing upstream payload, got %q", streamed)
	}

	if len(h.docs.docs) != 1 {
		t.Fatalf("persisted %d documents, want 1", len(h.docs.docs))
	}
	if h.docs.docs[0].Title != "T" {
		t.Errorf("doc.Title = %s, want T", h.docs.docs[0].Title)
	}
}

func TestGenerate_MissingTopic(t *testing.T) {
	h := newHarness(t)

	body := bytes.NewBufferString(`{}`)
	resp := h.request(t, http.MethodPost, "/v1/generate", h.token(t, "org_42"), body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerate_GateRunsBeforeUpstream(t *testing.T) {
	h := newHarness(t)
	h.subs.sub = billing.Subscription{}
	h.subs.outcome = &billing.OutcomeNoSubscription
	h.generator.err = io.ErrUnexpectedEOF // must never be reached

	body := bytes.NewBufferString(`{"topic":"x"}`)
	resp := h.request(t, http.MethodPost, "/v1/generate", h.token(t, "org_42"), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (soft outcome)", resp.StatusCode)
	}

	var out map[string]string
	decodeBody(t, resp, &out)
	if out["code"] != "no_subscription" {
		t.Errorf("code = %s, want no_subscription", out["code"])
	}
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.generator.err = io.ErrUnexpectedEOF

	body := bytes.NewBufferString(`{"topic":"x"}`)
	resp := h.request(t, http.MethodPost, "/v1/generate", h.token(t, "org_42"), body)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestDocuments_List(t *testing.T) {
	h := newHarness(t)
	h.docs.docs = []generate.Document{{ID: "doc_1", Title: "T"}}

	resp := h.request(t, http.MethodGet, "/v1/documents", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Documents []generate.Document `json:"documents"`
	}
	decodeBody(t, resp, &body)
	if len(body.Documents) != 1 || body.Documents[0].ID != "doc_1" {
		t.Errorf("documents = %+v, want one doc_1", body.Documents)
	}
}

func TestDocuments_InvalidLimit(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/documents?limit=zero", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProduct_Lookup(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/v1/products/prod_1", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["id"] != "prod_1" {
		t.Errorf("id = %s, want prod_1", body["id"])
	}
}

func TestProduct_UpstreamError(t *testing.T) {
	h := newHarness(t)
	h.products.raw = nil
	h.products.err = io.ErrUnexpectedEOF

	resp := h.request(t, http.MethodGet, "/v1/products/prod_1", h.token(t, "org_42"), nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
