package assistant

import (
	"strings"

	"github.com/shoptalk-ai/shoptalk/config"
)

// Intent is the routing decision for one turn.
type Intent string

const (
	IntentSmallTalk     Intent = "small_talk"
	IntentReturnRequest Intent = "return_request"
	IntentTrackOrder    Intent = "track_order"
	IntentPlaceOrder    Intent = "place_order"
	IntentProductSearch Intent = "product_search"
	IntentGenericFaq    Intent = "generic_faq"
	IntentOutOfScope    Intent = "out_of_scope"
)

// Default keyword lists, matched as plain substrings against the
// lower-cased input. No word-boundary check is applied on purpose: the
// matcher is deliberately cheap, and the rule order below compensates
// for most overlaps.
var (
	defaultSmallTalk = []string{
		"hi", "hello", "hey", "thank you", "thanks", "ok thanks", "okay",
		"can you help", "help me", "good morning", "good evening", "goodbye",
		"are you there",
	}
	defaultReturnRequest = []string{
		"return", "refund",
	}
	defaultTrackOrder = []string{
		"track order", "order status", "track my order", "where is my order",
		"track", "order update", "order id", "order #",
	}
	defaultPlaceOrder = []string{
		"place order", "place an order", "i want to order",
		"i would like to order", "buy now", "order this", "purchase",
	}
	defaultProductSearch = []string{
		"buy", "price", "cost", "under", "recommend", "suggest", "show",
		"find", "search", "shoe", "shoes", "watch", "watches", "headphone",
		"headphones", "mobile", "phone", "laptop", "dress", "clothes",
		"jacket", "bag", "backpack", "discount", "deal", "offer", "sale",
		"delivery", "shipping",
	}
	defaultGenericFaq = []string{
		"how do i", "how to", "policy", "faq", "review", "support",
		"payment", "account", "warranty", "cancel",
	}
)

type intentRule struct {
	intent   Intent
	keywords []string
}

// Classifier routes a turn to the first rule whose keyword list matches.
// Rule order is the priority order and is fixed; config can only swap
// the keyword lists themselves.
type Classifier struct {
	rules []intentRule
}

// NewClassifier builds the rule table, taking any non-empty keyword list
// from cfg as a wholesale replacement for the built-in one. cfg may be
// nil.
func NewClassifier(cfg *config.AssistantConfig) *Classifier {
	if cfg == nil {
		cfg = config.DefaultAssistantConfig()
	}
	pick := func(override, def []string) []string {
		if len(override) > 0 {
			return override
		}
		return def
	}

	return &Classifier{rules: []intentRule{
		{IntentSmallTalk, pick(cfg.Keywords.SmallTalk, defaultSmallTalk)},
		{IntentReturnRequest, pick(cfg.Keywords.ReturnRequest, defaultReturnRequest)},
		{IntentTrackOrder, pick(cfg.Keywords.TrackOrder, defaultTrackOrder)},
		{IntentPlaceOrder, pick(cfg.Keywords.PlaceOrder, defaultPlaceOrder)},
		{IntentProductSearch, pick(cfg.Keywords.ProductSearch, defaultProductSearch)},
		{IntentGenericFaq, pick(cfg.Keywords.GenericFaq, defaultGenericFaq)},
	}}
}

// Classify returns the first matching intent, or IntentOutOfScope when
// nothing matches.
func (c *Classifier) Classify(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range c.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return IntentOutOfScope
}
