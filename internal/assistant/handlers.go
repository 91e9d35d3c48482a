package assistant

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/internal/store"
)

func (a *Assistant) handleSmallTalk(ctx context.Context, text string, res *TurnResult) {
	out, ok := a.generate(ctx, "You are a polite ecommerce assistant. Keep replies short and warm.", text)
	if !ok || strings.TrimSpace(out) == "" {
		res.Reply = "Hello! I can help with products, orders, and return policies."
		return
	}
	res.Reply = out
}

func (a *Assistant) handleTrackOrder(ctx context.Context, text string, res *TurnResult) {
	id, ok := ExtractOrderID(text)
	if !ok {
		res.Reply = "Sure, please share your order ID (for example ORD10023) and I will look it up."
		return
	}

	if a.orders == nil {
		res.Reply = fmt.Sprintf("I couldn't find an order with id %s.", id)
		return
	}
	o, found := a.orders.GetByID(id)
	if !found {
		res.Reply = fmt.Sprintf("I couldn't find an order with id %s.", id)
		return
	}

	res.Reply = fmt.Sprintf(
		"Order %s is currently %s. Placed on %s. Estimated delivery: %s. Total: %.2f %s.",
		o.ID, o.Status, o.PlacedDate, o.EstimatedDelivery, o.TotalAmount, o.Currency,
	)
	res.Tool = &ToolInvocation{Kind: ToolOrderStatus, Payload: o}
	res.Retrieved = []rag.Document{}
}

func (a *Assistant) handlePlaceOrder(ctx context.Context, text string, res *TurnResult) error {
	qty := ExtractQuantity(text)

	var hits []rag.ProductHit
	if a.search != nil {
		hits = a.search.SearchProducts(ctx, text, 1)
	}
	if len(hits) == 0 || hits[0].ProductID == "" {
		res.Reply = "Sorry, I couldn't find a matching product to order."
		return nil
	}
	hit := hits[0]

	unit, err := strconv.ParseFloat(strings.ReplaceAll(hit.Price, ",", ""), 64)
	if err != nil || unit <= 0 {
		res.Reply = fmt.Sprintf("Sorry, %s has no listed price right now, so I can't place that order.", hit.Title)
		return nil
	}
	total := math.Round(unit*float64(qty)*100) / 100

	currency := hit.Currency
	if currency == "" {
		currency = "USD"
	}
	now := a.now()
	order := &store.Order{
		UserEmail: "guest@example.com",
		UserName:  "Guest",
		Items: []store.LineItem{{
			ProductID: hit.ProductID,
			Title:     hit.Title,
			Qty:       qty,
			UnitPrice: unit,
		}},
		TotalAmount:       total,
		Currency:          currency,
		Status:            "Placed",
		PlacedDate:        now.Format(store.DateLayout),
		EstimatedDelivery: now.AddDate(0, 0, 7).Format(store.DateLayout),
	}

	if a.orders == nil {
		res.Reply = "Sorry, ordering is unavailable right now. Please try again later."
		return nil
	}
	created, err := a.orders.Create(order)
	if err != nil {
		return err
	}

	res.Reply = fmt.Sprintf(
		"Order confirmed! Your order %s for %d x %s totals %.2f %s. Estimated delivery: %s.",
		created.ID, qty, hit.Title, total, currency, created.EstimatedDelivery,
	)
	res.Tool = &ToolInvocation{Kind: ToolCreateOrder, Payload: created}
	res.Retrieved = []rag.Document{}
	return nil
}

func (a *Assistant) handleReturn(ctx context.Context, text string, res *TurnResult) error {
	id, hasID := ExtractOrderID(text)
	if !hasID {
		return a.returnPolicyFAQ(ctx, text, res)
	}
	return a.returnAction(ctx, text, id, res)
}

// returnPolicyFAQ answers policy questions without touching the stores.
func (a *Assistant) returnPolicyFAQ(ctx context.Context, text string, res *TurnResult) error {
	docs := a.retrieve(ctx, text, a.retrieverK)
	res.Retrieved = docs

	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Content)
	}
	prompt := fmt.Sprintf(
		"Question: %s\n\nReference documents:\n%s\nAnswer the question using ONLY the reference documents above. Do not ask for an order ID unless the user says they want to start a return.",
		text, b.String(),
	)
	out, ok := a.generate(ctx, a.systemPrompt, prompt)
	if !ok || strings.TrimSpace(out) == "" {
		res.Reply = "Eligible items can be returned within the stated return window. Share your order ID if you'd like to start a return."
		return nil
	}
	res.Reply = out
	return nil
}

// returnAction runs the gated mutation path. Check order matters:
// existence, then delivery eligibility, then duplicates, then reason.
func (a *Assistant) returnAction(ctx context.Context, text, id string, res *TurnResult) error {
	var o *store.Order
	found := false
	if a.orders != nil {
		o, found = a.orders.GetByID(id)
	}
	if !found {
		res.Reply = fmt.Sprintf("I couldn't find an order with id %s. Please verify the order ID.", id)
		return nil
	}

	if !strings.EqualFold(o.Status, "delivered") {
		res.Reply = fmt.Sprintf(
			"Order %s is not eligible for a return yet because its status is %s. Returns are available after delivery.",
			o.ID, o.Status,
		)
		return nil
	}

	if a.returns != nil {
		if existing, ok := a.returns.GetByOrderID(o.ID); ok {
			res.Reply = fmt.Sprintf("A return for order %s already exists. Current status: %s.", o.ID, existing.ReturnStatus)
			return nil
		}
	}

	reason, ok := reasonAfterBecause(text)
	if !ok {
		res.Reply = fmt.Sprintf(
			"To process your return for order %s, please tell me the reason (for example: because it doesn't fit).",
			o.ID,
		)
		return nil
	}

	if a.returns == nil {
		res.Reply = "Sorry, returns are unavailable right now. Please try again later."
		return nil
	}

	now := a.now()
	rr := &store.ReturnRequest{
		OrderID:         o.ID,
		UserID:          o.UserEmail,
		OrderDate:       o.PlacedDate,
		ReturnDate:      now.Format(store.DateLayout),
		ProductCategory: "General",
		ProductPrice:    strconv.FormatFloat(o.TotalAmount, 'f', 2, 64),
		OrderQuantity:   1,
		ReturnReason:    reason,
		ReturnStatus:    "Initiated",
		DaysToReturn:    daysBetween(o.PlacedDate, now),
		UserAge:         "Unknown",
		UserGender:      "Unknown",
		UserLocation:    "Unknown",
		PaymentMethod:   "Online",
		ShippingMethod:  "Standard",
		DiscountApplied: "No",
	}
	if len(o.Items) > 0 {
		rr.ProductID = o.Items[0].ProductID
		rr.OrderQuantity = o.Items[0].Qty
	}

	created, err := a.returns.Create(rr)
	if err != nil {
		return err
	}

	res.Reply = fmt.Sprintf("Your return for order %s has been initiated. Current status: %s.", o.ID, created.ReturnStatus)
	res.Tool = &ToolInvocation{Kind: ToolCreateReturn, Payload: created}
	res.Retrieved = []rag.Document{}
	return nil
}

func (a *Assistant) handleProductSearch(ctx context.Context, text string, res *TurnResult) {
	var (
		wg   sync.WaitGroup
		hits []rag.ProductHit
		docs []rag.Document
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if a.search != nil {
			hits = a.search.SearchProducts(ctx, text, a.searchK)
		}
	}()
	go func() {
		defer wg.Done()
		docs = a.retrieve(ctx, text, a.retrieverK)
	}()
	wg.Wait()

	res.Tool = &ToolInvocation{Kind: ToolSearchProducts, Payload: SearchPayload{Query: text, Results: hits}}
	res.Retrieved = docs

	structured := "No structured product results."
	if len(hits) > 0 {
		var b strings.Builder
		for i, h := range hits {
			fmt.Fprintf(&b, "[P%d] %s | %s %s | %s\n", i+1, h.Title, h.Price, h.Currency, h.Availability)
		}
		structured = b.String()
	}
	var refs strings.Builder
	for _, d := range docs {
		refs.WriteString(d.Content)
		refs.WriteString("\n\n")
	}

	user := fmt.Sprintf(
		"User query: %s\n\nProducts:\n%s\nReference documents:\n%s\nAnswer using ONLY the information above. Recommend at most 3 products.",
		text, structured, refs.String(),
	)
	if history := a.memory.Render(); history != "" {
		user = "Conversation so far:\n" + history + "\n\n" + user
	}

	out, ok := a.generate(ctx, a.systemPrompt, user)
	if !ok || strings.TrimSpace(out) == "" {
		res.Reply = "I found some matching products but I'm having trouble summarizing them right now. Please try again in a moment."
		return
	}
	res.Reply = out
}

func (a *Assistant) handleGenericFaq(ctx context.Context, text string, res *TurnResult) {
	docs := a.retrieve(ctx, text, a.retrieverK)
	res.Retrieved = docs
	if len(docs) == 0 {
		res.Reply = "I don't have information on that yet. I can help with products, orders, returns, and store policies."
		return
	}

	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Content)
	}
	user := fmt.Sprintf(
		"Question: %s\n\nReference documents:\n%s\nAnswer the question using ONLY the reference documents above.",
		text, b.String(),
	)
	out, ok := a.generate(ctx, a.systemPrompt, user)
	if !ok || strings.TrimSpace(out) == "" {
		res.Reply = "I'm having trouble answering that right now. Please try again in a moment."
		return
	}
	res.Reply = out
}

// reasonAfterBecause returns the text after the first case-insensitive
// "because", trimmed. The marker word itself is required; without it
// there is no reason.
func reasonAfterBecause(text string) (string, bool) {
	lower := strings.ToLower(text)
	i := strings.Index(lower, "because")
	if i < 0 {
		return "", false
	}
	reason := strings.TrimSpace(text[i+len("because"):])
	if reason == "" {
		return "", false
	}
	return reason, true
}

// daysBetween counts whole days from a stored dd-mm-yyyy date to now.
// Unparseable dates count as zero days.
func daysBetween(placed string, now time.Time) int {
	t, err := time.Parse(store.DateLayout, strings.TrimSpace(placed))
	if err != nil {
		return 0
	}
	d := int(now.Sub(t).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
