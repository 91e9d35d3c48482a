// Package rag implements the retrieval subsystem: flat-file document
// loading, embedding index build/open, cosine top-k retrieval and the
// structured product search built on top of it.
package rag

// Document is one retrievable unit with its source metadata.
// Product documents carry source=products plus prod_id/title/brand/
// final_price/currency/availability/url; FAQ documents carry source=faqs.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// ScoredDocument pairs a document with its similarity to a query.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// ProductHit is the structured product-search result shape. Non-product
// documents that surface in a search degrade to Source+Snippet.
type ProductHit struct {
	ProductID    string `json:"prod_id,omitempty"`
	Title        string `json:"title,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Price        string `json:"price,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Availability string `json:"availability,omitempty"`
	URL          string `json:"url,omitempty"`
	Source       string `json:"source,omitempty"`
	Snippet      string `json:"snippet,omitempty"`
}
