package rag

import (
	"context"
	"fmt"
)

// Retriever answers similarity queries against a loaded index. Each call
// returns a fresh slice ordered best-first.
type Retriever struct {
	index    *Index
	embedder Embedder
}

// NewRetriever wires an index to the embedder used for queries. The
// embedder should match the model the index was built with.
func NewRetriever(index *Index, embedder Embedder) *Retriever {
	return &Retriever{index: index, embedder: embedder}
}

// Retrieve returns the top-k documents for the query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	scored, err := r.RetrieveScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(scored))
	for _, s := range scored {
		docs = append(docs, s.Document)
	}
	return docs, nil
}

// RetrieveScored is Retrieve with similarity scores attached.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}
	return r.index.search(vector, k), nil
}

// SearchProducts runs retrieval and projects hits into the structured
// product shape. Non-product documents degrade to source+snippet entries.
// Failures yield an empty result, never an error: callers treat the
// structured search as best-effort.
func (r *Retriever) SearchProducts(ctx context.Context, query string, k int) []ProductHit {
	docs, err := r.Retrieve(ctx, query, k)
	if err != nil {
		return nil
	}
	hits := make([]ProductHit, 0, len(docs))
	for _, d := range docs {
		md := d.Metadata
		if md["source"] == "products" {
			hits = append(hits, ProductHit{
				ProductID:    md["prod_id"],
				Title:        md["title"],
				Brand:        md["brand"],
				Price:        md["final_price"],
				Currency:     md["currency"],
				Availability: md["availability"],
				URL:          md["url"],
			})
			continue
		}
		hits = append(hits, ProductHit{
			Source:  md["source"],
			Snippet: truncate(d.Content, 300),
		})
	}
	return hits
}
