package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shoptalk-ai/shoptalk/internal/assistant"
	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/internal/store"
)

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

type retrievedDoc struct {
	Source     string `json:"source"`
	ProductID  string `json:"prod_id,omitempty"`
	Title      string `json:"title,omitempty"`
	FinalPrice string `json:"final_price,omitempty"`
	URL        string `json:"url,omitempty"`
}

type chatResponse struct {
	Reply         string                    `json:"reply"`
	ReplySSML     string                    `json:"reply_ssml,omitempty"`
	RetrievedDocs []retrievedDoc            `json:"retrieved_docs"`
	LastTool      *assistant.ToolInvocation `json:"last_tool,omitempty"`
	ElapsedMS     int64                     `json:"elapsed_ms"`
}

// turnEvent is the telemetry frame broadcast to websocket clients after
// each chat turn.
type turnEvent struct {
	Type      string `json:"type"`
	Tool      string `json:"tool,omitempty"`
	Retrieved int    `json:"retrieved"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ShopTalk assistant API. Check /health"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "empty text is not allowed")
		return
	}

	res, err := s.assistant.Process(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, store.ErrStorage) {
			s.log.Error("turn failed on storage", err)
			writeError(w, http.StatusBadGateway, "storage unavailable, please retry")
			return
		}
		s.log.Error("turn failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.hub != nil {
		ev := turnEvent{Type: "turn", Retrieved: len(res.Retrieved), ElapsedMS: res.ElapsedMS}
		if res.Tool != nil {
			ev.Tool = res.Tool.Kind
		}
		s.hub.BroadcastJSON(ev)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:         res.Reply,
		ReplySSML:     res.ReplySSML,
		RetrievedDocs: projectRetrieved(res.Retrieved),
		LastTool:      res.Tool,
		ElapsedMS:     res.ElapsedMS,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	k := 5
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 20 {
			writeError(w, http.StatusBadRequest, "k must be an integer between 1 and 20")
			return
		}
		k = n
	}

	var results []rag.ProductHit
	if s.search != nil {
		results = s.search.SearchProducts(r.Context(), q, k)
	}
	if results == nil {
		results = []rag.ProductHit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"k":       k,
		"results": results,
	})
}

// handleOrder is the scoped order-detail surface. Without an email only
// non-sensitive fields are returned; with an email, full details after
// ownership verification. A mismatch reports existence but never the
// order body.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	email := strings.TrimSpace(r.URL.Query().Get("email"))

	o, err := s.orders.GetScoped(id, email)
	if err != nil {
		if errors.Is(err, store.ErrEmailMismatch) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"found":    true,
				"order_id": id,
				"message":  "Order found but provided email doesn't match. Provide the registered email to view details.",
			})
			return
		}
		s.log.Error("order lookup failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if o == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"found":    false,
			"order_id": id,
			"message":  "Order not found.",
		})
		return
	}

	if email != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"found": true, "order": o})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"found":              true,
		"order_id":           o.ID,
		"status":             o.Status,
		"estimated_delivery": o.EstimatedDelivery,
		"placed_date":        o.PlacedDate,
	})
}

func projectRetrieved(docs []rag.Document) []retrievedDoc {
	out := make([]retrievedDoc, 0, len(docs))
	for _, d := range docs {
		out = append(out, retrievedDoc{
			Source:     d.Metadata["source"],
			ProductID:  d.Metadata["prod_id"],
			Title:      d.Metadata["title"],
			FinalPrice: d.Metadata["final_price"],
			URL:        d.Metadata["url"],
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
