package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/internal/store"
)

type fakeGen struct {
	calls int
	reply string
	err   error
}

func (g *fakeGen) Chat(_ context.Context, system, user string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if g.reply != "" {
		return g.reply, nil
	}
	return "generated: " + user, nil
}

type fakeRetriever struct {
	docs []rag.Document
	err  error
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) ([]rag.Document, error) {
	return r.docs, r.err
}

type fakeSearcher struct {
	hits []rag.ProductHit
}

func (s *fakeSearcher) SearchProducts(_ context.Context, _ string, _ int) []rag.ProductHit {
	return s.hits
}

type memOrders struct {
	orders    map[string]*store.Order
	createErr error
	created   []*store.Order
}

func newMemOrders(orders ...*store.Order) *memOrders {
	m := &memOrders{orders: make(map[string]*store.Order)}
	for _, o := range orders {
		m.orders[strings.ToUpper(o.ID)] = o
	}
	return m
}

func (m *memOrders) GetByID(id string) (*store.Order, bool) {
	o, ok := m.orders[strings.ToUpper(id)]
	return o, ok
}

func (m *memOrders) Create(o *store.Order) (*store.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if o.ID == "" {
		o.ID = fmt.Sprintf("ORD%d", 90000+len(m.orders))
	}
	m.orders[strings.ToUpper(o.ID)] = o
	m.created = append(m.created, o)
	return o, nil
}

type memReturns struct {
	returns   map[string]*store.ReturnRequest
	createErr error
}

func newMemReturns() *memReturns {
	return &memReturns{returns: make(map[string]*store.ReturnRequest)}
}

func (m *memReturns) GetByOrderID(orderID string) (*store.ReturnRequest, bool) {
	rr, ok := m.returns[strings.ToUpper(orderID)]
	return rr, ok
}

func (m *memReturns) Create(rr *store.ReturnRequest) (*store.ReturnRequest, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	key := strings.ToUpper(rr.OrderID)
	if existing, ok := m.returns[key]; ok {
		return existing, nil
	}
	m.returns[key] = rr
	return rr, nil
}

var fixedNow = time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestAssistant(t *testing.T, opts Options) *Assistant {
	t.Helper()
	opts.SpeechEnabled = true
	a := New(opts)
	a.now = func() time.Time { return fixedNow }
	return a
}

func deliveredOrder() *store.Order {
	return &store.Order{
		ID:                "ORD10009",
		UserEmail:         "anita@example.com",
		UserName:          "Anita",
		Items:             []store.LineItem{{ProductID: "P1", Title: "Runner X", Qty: 1, UnitPrice: 49.99}},
		TotalAmount:       49.99,
		Currency:          "USD",
		Status:            "Delivered",
		PlacedDate:        "01-08-2025",
		EstimatedDelivery: "08-08-2025",
	}
}

func TestProcess_EmptyInput(t *testing.T) {
	a := newTestAssistant(t, Options{})
	res, err := a.Process(context.Background(), "   \n  ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "Please provide a query." {
		t.Errorf("Unexpected reply: %q", res.Reply)
	}
	if len(res.Retrieved) != 0 || res.Tool != nil {
		t.Error("Empty input must not touch tools or retrieval")
	}
}

func TestProcess_TrackOrderEndToEnd(t *testing.T) {
	a := newTestAssistant(t, Options{Orders: newMemOrders(deliveredOrder())})
	res, err := a.Process(context.Background(), "track order ORD10009")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ORD10009", "Delivered", "49.99 USD"} {
		if !strings.Contains(res.Reply, want) {
			t.Errorf("Reply %q missing %q", res.Reply, want)
		}
	}
	if res.Tool == nil || res.Tool.Kind != ToolOrderStatus {
		t.Errorf("Expected order_status tool record, got %+v", res.Tool)
	}
	if len(res.Retrieved) != 0 {
		t.Error("Track order must leave the retrieved set empty")
	}
	if strings.Contains(res.Reply, "\n") {
		t.Error("Reply must not contain line breaks")
	}
	if !strings.HasPrefix(res.ReplySSML, "<speak") {
		t.Errorf("Expected speech markup, got %q", res.ReplySSML)
	}
}

func TestProcess_TrackOrderWithoutID(t *testing.T) {
	orders := newMemOrders(deliveredOrder())
	a := newTestAssistant(t, Options{Orders: orders})
	res, err := a.Process(context.Background(), "can i track it")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "order ID") {
		t.Errorf("Expected prompt for an order ID, got %q", res.Reply)
	}
	if res.Tool != nil {
		t.Error("No tool should fire without an id")
	}
}

func TestProcess_TrackOrderNotFound(t *testing.T) {
	a := newTestAssistant(t, Options{Orders: newMemOrders()})
	res, err := a.Process(context.Background(), "track order ORD99999")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "ORD99999") || !strings.Contains(res.Reply, "couldn't find") {
		t.Errorf("Unexpected reply: %q", res.Reply)
	}
}

func TestProcess_PlaceOrderTotals(t *testing.T) {
	orders := newMemOrders()
	search := &fakeSearcher{hits: []rag.ProductHit{{
		ProductID: "P7", Title: "Trail Shoe", Price: "250.0", Currency: "USD", Availability: "In Stock",
	}}}
	a := newTestAssistant(t, Options{Orders: orders, Search: search})

	res, err := a.Process(context.Background(), "i want to order 3 trail shoes")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders.created) != 1 {
		t.Fatalf("Expected one created order, got %d", len(orders.created))
	}
	o := orders.created[0]
	if o.TotalAmount != 750.0 {
		t.Errorf("Expected total 750.0, got %v", o.TotalAmount)
	}
	if o.PlacedDate != "25-08-2025" || o.EstimatedDelivery != "01-09-2025" {
		t.Errorf("Expected delivery 7 days after placement, got placed=%s est=%s", o.PlacedDate, o.EstimatedDelivery)
	}
	if o.Status != "Placed" {
		t.Errorf("Expected status Placed, got %s", o.Status)
	}
	if res.Tool == nil || res.Tool.Kind != ToolCreateOrder {
		t.Errorf("Expected create_order tool record, got %+v", res.Tool)
	}
	if !strings.Contains(res.Reply, "750.00 USD") {
		t.Errorf("Reply %q missing total", res.Reply)
	}
}

func TestProcess_PlaceOrderNoProduct(t *testing.T) {
	a := newTestAssistant(t, Options{Orders: newMemOrders(), Search: &fakeSearcher{}})
	res, err := a.Process(context.Background(), "i want to order a unicorn")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "couldn't find a matching product") {
		t.Errorf("Unexpected reply: %q", res.Reply)
	}
	if res.Tool != nil {
		t.Error("No tool record without a matched product")
	}
}

func TestProcess_PlaceOrderStorageFailure(t *testing.T) {
	orders := newMemOrders()
	orders.createErr = fmt.Errorf("%w: disk full", store.ErrStorage)
	search := &fakeSearcher{hits: []rag.ProductHit{{ProductID: "P7", Title: "Trail Shoe", Price: "250"}}}
	a := newTestAssistant(t, Options{Orders: orders, Search: search})

	_, err := a.Process(context.Background(), "buy now trail shoe")
	if !errors.Is(err, store.ErrStorage) {
		t.Fatalf("Expected storage failure to propagate, got %v", err)
	}
}

func TestProcess_ReturnEligibilityBeforeReason(t *testing.T) {
	pending := deliveredOrder()
	pending.ID = "ORD20001"
	pending.Status = "Shipped"
	returns := newMemReturns()
	a := newTestAssistant(t, Options{Orders: newMemOrders(pending), Returns: returns})

	// reason present but order not delivered: refusal wins
	res, err := a.Process(context.Background(), "return order ORD20001 because it broke")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "not eligible") || !strings.Contains(res.Reply, "Shipped") {
		t.Errorf("Expected eligibility refusal, got %q", res.Reply)
	}
	if len(returns.returns) != 0 {
		t.Error("Refusal must not create a return")
	}
}

func TestProcess_ReturnCreateAndIdempotency(t *testing.T) {
	returns := newMemReturns()
	a := newTestAssistant(t, Options{Orders: newMemOrders(deliveredOrder()), Returns: returns})

	res, err := a.Process(context.Background(), "I want to return order ORD10009 because it doesn't fit")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "initiated") && !strings.Contains(res.Reply, "Initiated") {
		t.Errorf("Expected initiation confirmation, got %q", res.Reply)
	}
	if res.Tool == nil || res.Tool.Kind != ToolCreateReturn {
		t.Errorf("Expected create_return tool record, got %+v", res.Tool)
	}

	rr, ok := returns.GetByOrderID("ORD10009")
	if !ok {
		t.Fatal("Expected stored return")
	}
	if rr.ReturnReason != "it doesn't fit" {
		t.Errorf("Unexpected reason: %q", rr.ReturnReason)
	}
	if rr.DaysToReturn != 24 {
		t.Errorf("Expected 24 days between 01-08-2025 and 25-08-2025, got %d", rr.DaysToReturn)
	}
	if rr.ProductID != "P1" || rr.OrderQuantity != 1 {
		t.Errorf("Expected line-item fields carried over, got %+v", rr)
	}

	// second attempt reports the existing record, no duplicate
	res, err = a.Process(context.Background(), "return order ORD10009 because changed my mind")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "already exists") {
		t.Errorf("Expected duplicate notice, got %q", res.Reply)
	}
	if len(returns.returns) != 1 {
		t.Errorf("Expected exactly one stored return, got %d", len(returns.returns))
	}
}

func TestProcess_ReturnWithoutReasonPrompts(t *testing.T) {
	returns := newMemReturns()
	a := newTestAssistant(t, Options{Orders: newMemOrders(deliveredOrder()), Returns: returns})

	res, err := a.Process(context.Background(), "return order ORD10009")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "reason") {
		t.Errorf("Expected a reason prompt, got %q", res.Reply)
	}
	if len(returns.returns) != 0 {
		t.Error("Prompting must not create a return")
	}
}

func TestProcess_ReturnPolicyFAQBranch(t *testing.T) {
	gen := &fakeGen{reply: "You have 30 days to return eligible items."}
	ret := &fakeRetriever{docs: []rag.Document{{Content: "Returns accepted within 30 days."}}}
	a := newTestAssistant(t, Options{Generator: gen, Retriever: ret})

	res, err := a.Process(context.Background(), "what is your refund policy")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "You have 30 days to return eligible items." {
		t.Errorf("Unexpected reply: %q", res.Reply)
	}
	if len(res.Retrieved) != 1 {
		t.Errorf("Expected retrieved docs recorded, got %d", len(res.Retrieved))
	}
	if res.Tool != nil {
		t.Error("FAQ branch must not record a tool invocation")
	}
}

func TestProcess_SmallTalkFallback(t *testing.T) {
	gen := &fakeGen{err: errors.New("upstream down")}
	a := newTestAssistant(t, Options{Generator: gen})

	res, err := a.Process(context.Background(), "hello there")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "help with products") {
		t.Errorf("Expected fixed fallback, got %q", res.Reply)
	}
}

func TestProcess_ProductSearch(t *testing.T) {
	gen := &fakeGen{reply: "Try the **Runner X**, great value.\n\nAlso the Trail Shoe."}
	search := &fakeSearcher{hits: []rag.ProductHit{
		{ProductID: "P1", Title: "Runner X", Price: "49.99", Currency: "USD"},
	}}
	ret := &fakeRetriever{docs: []rag.Document{{Content: "Runner X review: light and durable."}}}
	a := newTestAssistant(t, Options{Generator: gen, Search: search, Retriever: ret})

	res, err := a.Process(context.Background(), "recommend running shoes under 60")
	if err != nil {
		t.Fatal(err)
	}
	if res.Tool == nil || res.Tool.Kind != ToolSearchProducts {
		t.Fatalf("Expected search_products tool record, got %+v", res.Tool)
	}
	payload, ok := res.Tool.Payload.(SearchPayload)
	if !ok {
		t.Fatalf("Unexpected payload type %T", res.Tool.Payload)
	}
	if payload.Query != "recommend running shoes under 60" || len(payload.Results) != 1 {
		t.Errorf("Unexpected payload: %+v", payload)
	}
	if len(res.Retrieved) != 1 {
		t.Errorf("Expected retrieved docs recorded, got %d", len(res.Retrieved))
	}
	// assembled reply is emphasis-stripped and single line
	if strings.Contains(res.Reply, "**") || strings.Contains(res.Reply, "\n") {
		t.Errorf("Reply not normalized: %q", res.Reply)
	}
}

func TestProcess_ProductSearchDegradedOnGeneratorFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("timeout")}
	search := &fakeSearcher{hits: []rag.ProductHit{{ProductID: "P1", Title: "Runner X"}}}
	a := newTestAssistant(t, Options{Generator: gen, Search: search, Retriever: &fakeRetriever{}})

	res, err := a.Process(context.Background(), "show me shoes")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "trouble summarizing") {
		t.Errorf("Expected degraded fixed text, got %q", res.Reply)
	}
	if res.Tool == nil || res.Tool.Kind != ToolSearchProducts {
		t.Error("Tool record should survive generator failure")
	}
}

func TestProcess_GenericFaqDeflectsWithoutDocs(t *testing.T) {
	gen := &fakeGen{}
	a := newTestAssistant(t, Options{Generator: gen, Retriever: &fakeRetriever{}})

	res, err := a.Process(context.Background(), "what is your warranty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "don't have information") {
		t.Errorf("Expected deflection, got %q", res.Reply)
	}
	if gen.calls != 0 {
		t.Error("Generator must not be called without reference docs")
	}
}

func TestProcess_OutOfScope(t *testing.T) {
	a := newTestAssistant(t, Options{})
	res, err := a.Process(context.Background(), "write me a poem about the moon")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "related to shopping") {
		t.Errorf("Expected refusal, got %q", res.Reply)
	}
}

func TestClassifier_Priority(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		text string
		want Intent
	}{
		{"hello there", IntentSmallTalk},
		{"i want a refund for my shoes", IntentReturnRequest},
		{"track order ORD10009", IntentTrackOrder},
		{"i want to order trail shoes", IntentPlaceOrder},
		{"recommend watches under 5000", IntentProductSearch},
		{"what is your warranty policy", IntentGenericFaq},
		{"tell me about the weather", IntentOutOfScope},
		// return outranks the commerce keywords it co-occurs with
		{"return my running shoes", IntentReturnRequest},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
