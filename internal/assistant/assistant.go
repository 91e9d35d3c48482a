package assistant

import (
	"context"
	"time"

	"github.com/shoptalk-ai/shoptalk/config"
	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/internal/store"
	"github.com/shoptalk-ai/shoptalk/llm"
	"github.com/shoptalk-ai/shoptalk/logger"
)

// Generator produces free text from a system framing and a user prompt.
// llm.Client satisfies it.
type Generator interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// DocRetriever returns reference documents for a query.
type DocRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Document, error)
}

// ProductSearcher returns structured catalog hits for a query. A failed
// search is reported as an empty result, never an error.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query string, k int) []rag.ProductHit
}

// OrderReadWriter is the order persistence surface the turn handlers use.
type OrderReadWriter interface {
	GetByID(id string) (*store.Order, bool)
	Create(o *store.Order) (*store.Order, error)
}

// ReturnReadWriter is the return-request persistence surface.
type ReturnReadWriter interface {
	GetByOrderID(orderID string) (*store.ReturnRequest, bool)
	Create(rr *store.ReturnRequest) (*store.ReturnRequest, error)
}

// ToolInvocation records which tool fired during a turn and what it
// produced or was asked to do.
type ToolInvocation struct {
	Kind    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Tool invocation kinds.
const (
	ToolOrderStatus    = "order_status"
	ToolCreateOrder    = "create_order"
	ToolCreateReturn   = "create_return"
	ToolSearchProducts = "search_products"
)

// SearchPayload is the create-time echo for a product search invocation.
type SearchPayload struct {
	Query   string           `json:"query"`
	Results []rag.ProductHit `json:"results"`
}

// TurnResult is everything one processed turn yields. Each call returns
// a fresh value; the assistant keeps no per-turn state between calls.
type TurnResult struct {
	Reply     string          `json:"reply"`
	ReplySSML string          `json:"reply_ssml,omitempty"`
	Intent    Intent          `json:"intent"`
	Tool      *ToolInvocation `json:"tool,omitempty"`
	Retrieved []rag.Document  `json:"retrieved"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

// Assistant is the intent-routing engine. Collaborators are interfaces
// so turn handling is testable without network or disk.
type Assistant struct {
	gen       Generator
	retriever DocRetriever
	search    ProductSearcher
	orders    OrderReadWriter
	returns   ReturnReadWriter
	memory    *llm.Memory

	classifier   *Classifier
	systemPrompt string
	retrieverK   int
	searchK      int
	ssmlLang     string
	ssmlBreakMS  int
	speech       bool

	now func() time.Time
	log *logger.Logger
}

// Options bundles the assistant's collaborators and tuning.
type Options struct {
	Generator     Generator
	Retriever     DocRetriever
	Search        ProductSearcher
	Orders        OrderReadWriter
	Returns       ReturnReadWriter
	Memory        *llm.Memory
	SystemPrompt  string
	Config        *config.AssistantConfig
	SpeechEnabled bool
	Logger        *logger.Logger
}

// New assembles an assistant. Config may be nil (defaults apply); every
// collaborator may be nil, in which case its branch degrades the way a
// runtime failure of that collaborator would.
func New(opts Options) *Assistant {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultAssistantConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("assistant")
	}
	mem := opts.Memory
	if mem == nil {
		mem = llm.NewMemory(0)
	}
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &Assistant{
		gen:          opts.Generator,
		retriever:    opts.Retriever,
		search:       opts.Search,
		orders:       opts.Orders,
		returns:      opts.Returns,
		memory:       mem,
		classifier:   NewClassifier(cfg),
		systemPrompt: prompt,
		retrieverK:   cfg.RetrieverK,
		searchK:      cfg.SearchK,
		ssmlLang:     cfg.SSMLLanguage,
		ssmlBreakMS:  cfg.SSMLBreakMS,
		speech:       opts.SpeechEnabled,
		now:          time.Now,
		log:          log,
	}
}

const defaultSystemPrompt = "You are a helpful ecommerce assistant. Answer using only the provided context. Be concise and friendly."

// Process handles one user turn: classify, dispatch, assemble. The only
// error it returns is a persistence failure; every other failure mode
// terminates in a valid reply.
func (a *Assistant) Process(ctx context.Context, text string) (*TurnResult, error) {
	start := a.now()

	res := &TurnResult{Retrieved: []rag.Document{}}
	trimmed := NormalizeWhitespace(text)
	if trimmed == "" {
		res.Reply = "Please provide a query."
		a.finish(res, start)
		return res, nil
	}

	intent := a.classifier.Classify(trimmed)
	res.Intent = intent
	a.log.Debugf("routing turn: intent=%s", intent)

	var err error
	switch intent {
	case IntentSmallTalk:
		a.handleSmallTalk(ctx, trimmed, res)
	case IntentReturnRequest:
		err = a.handleReturn(ctx, trimmed, res)
	case IntentTrackOrder:
		a.handleTrackOrder(ctx, trimmed, res)
	case IntentPlaceOrder:
		err = a.handlePlaceOrder(ctx, trimmed, res)
	case IntentProductSearch:
		a.handleProductSearch(ctx, trimmed, res)
	case IntentGenericFaq:
		a.handleGenericFaq(ctx, trimmed, res)
	default:
		res.Reply = "I can help with ecommerce questions like products, orders, returns, and delivery. Please ask something related to shopping."
	}
	if err != nil {
		return nil, err
	}

	res.Reply = NormalizeWhitespace(StripEmphasis(res.Reply))
	a.memory.Append(trimmed, res.Reply)
	a.finish(res, start)
	return res, nil
}

func (a *Assistant) finish(res *TurnResult, start time.Time) {
	if a.speech {
		res.ReplySSML = SpeechMarkup(res.Reply, a.ssmlLang, a.ssmlBreakMS)
	}
	if res.Retrieved == nil {
		res.Retrieved = []rag.Document{}
	}
	res.ElapsedMS = a.now().Sub(start).Milliseconds()
}

// generate calls the generation collaborator, reporting failure with ok
// so handlers can substitute fixed degraded text.
func (a *Assistant) generate(ctx context.Context, system, user string) (string, bool) {
	if a.gen == nil {
		return "", false
	}
	out, err := a.gen.Chat(ctx, system, user)
	if err != nil {
		a.log.Warnf("generation failed: %v", err)
		return "", false
	}
	return out, true
}

// retrieve wraps the retrieval collaborator; a failure is an empty set.
func (a *Assistant) retrieve(ctx context.Context, query string, k int) []rag.Document {
	if a.retriever == nil {
		return nil
	}
	docs, err := a.retriever.Retrieve(ctx, query, k)
	if err != nil {
		a.log.Warnf("retrieval failed: %v", err)
		return nil
	}
	return docs
}
