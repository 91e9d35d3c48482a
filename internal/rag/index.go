package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

type indexedDocument struct {
	Document
	Embedding []float32 `json:"embedding"`
}

type indexFile struct {
	Model     string            `json:"model,omitempty"`
	Documents []indexedDocument `json:"documents"`
}

// Index is the persisted embedding index: every document paired with its
// vector, scanned with cosine similarity at query time.
type Index struct {
	model string
	docs  []indexedDocument
}

// BuildIndex embeds the documents in batches and returns the in-memory
// index, ready to persist.
func BuildIndex(ctx context.Context, emb Embedder, docs []Document, model string) (*Index, error) {
	const batchSize = 64

	idx := &Index{model: model}
	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Content)
		}
		vectors, err := emb.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("index: embed batch %d: %w", start/batchSize, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("index: embedder returned %d vectors for %d texts", len(vectors), end-start)
		}
		for i, d := range docs[start:end] {
			idx.docs = append(idx.docs, indexedDocument{Document: d, Embedding: vectors[i]})
		}
	}
	return idx, nil
}

// Save writes the index as JSON via a temp file + rename so readers never
// observe a partial index.
func (idx *Index) Save(path string) error {
	data, err := json.Marshal(indexFile{Model: idx.model, Documents: idx.docs})
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("index: write: %w", err)
	}
	return os.Rename(tmp, path)
}

// OpenIndex loads a previously saved index.
func OpenIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", path, err)
	}
	return &Index{model: file.Model, docs: file.Documents}, nil
}

// Len reports the number of indexed documents.
func (idx *Index) Len() int { return len(idx.docs) }

// Model reports the embedding model the index was built with.
func (idx *Index) Model() string { return idx.model }

// search returns the top-k documents by cosine similarity to the query
// vector, best first. Zero-norm rows score 0.
func (idx *Index) search(query []float32, k int) []ScoredDocument {
	if k <= 0 || len(idx.docs) == 0 {
		return nil
	}
	scored := make([]ScoredDocument, 0, len(idx.docs))
	for _, d := range idx.docs {
		scored = append(scored, ScoredDocument{Document: d.Document, Score: cosine(query, d.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
