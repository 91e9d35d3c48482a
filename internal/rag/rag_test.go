package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeEmbedder maps known substrings to fixed unit vectors so similarity
// ordering is deterministic.
type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) vector(text string) []float32 {
	switch {
	case strings.Contains(text, "shoe"):
		return []float32{1, 0, 0}
	case strings.Contains(text, "watch"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedder down")
	}
	return f.vector(text), nil
}

func testDocs() []Document {
	return []Document{
		{Content: "running shoe for men", Metadata: map[string]string{
			"source": "products", "prod_id": "P1", "title": "Runner X",
			"brand": "Acme", "final_price": "49.99", "currency": "USD",
			"availability": "In Stock", "url": "http://x/p1",
		}},
		{Content: "classic watch leather strap", Metadata: map[string]string{
			"source": "products", "prod_id": "P2", "title": "Chrono",
			"brand": "Tick", "final_price": "150", "currency": "USD",
		}},
		{Content: "Q: What is the return policy?\nA: 30 days.", Metadata: map[string]string{
			"source": "faqs", "index": "0", "question": "What is the return policy?",
		}},
	}
}

func TestBuildIndexAndRetrieve(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, testDocs(), "fake-model")
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("Expected 3 indexed docs, got %d", idx.Len())
	}

	r := NewRetriever(idx, emb)
	docs, err := r.Retrieve(context.Background(), "cheap shoe", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 docs, got %d", len(docs))
	}
	if docs[0].Metadata["prod_id"] != "P1" {
		t.Errorf("Expected shoe doc first, got %v", docs[0].Metadata)
	}
}

func TestRetrieve_FreshSlicePerCall(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, testDocs(), "fake-model")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(idx, emb)

	a, _ := r.Retrieve(context.Background(), "shoe", 1)
	b, _ := r.Retrieve(context.Background(), "shoe", 1)
	if &a[0] == &b[0] {
		t.Error("Expected fresh result slices per call")
	}
}

func TestSearchProducts(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, testDocs(), "fake-model")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(idx, emb)

	hits := r.SearchProducts(context.Background(), "shoe", 3)
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	if hits[0].ProductID != "P1" || hits[0].Price != "49.99" {
		t.Errorf("Unexpected top hit: %+v", hits[0])
	}
	// FAQ document degrades to source+snippet
	var sawFaq bool
	for _, h := range hits {
		if h.Source == "faqs" && h.Snippet != "" {
			sawFaq = true
		}
	}
	if !sawFaq {
		t.Error("Expected FAQ hit projected to source+snippet")
	}
}

func TestSearchProducts_EmbedderFailureIsEmpty(t *testing.T) {
	idx := &Index{}
	r := NewRetriever(idx, &fakeEmbedder{fail: true})
	if hits := r.SearchProducts(context.Background(), "shoe", 3); len(hits) != 0 {
		t.Errorf("Expected empty hits on failure, got %d", len(hits))
	}
}

func TestIndexSaveOpen(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := BuildIndex(context.Background(), emb, testDocs(), "fake-model")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "index.json")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	if loaded.Len() != idx.Len() {
		t.Errorf("Expected %d docs after reload, got %d", idx.Len(), loaded.Len())
	}
	if loaded.Model() != "fake-model" {
		t.Errorf("Expected model preserved, got %q", loaded.Model())
	}

	r := NewRetriever(loaded, emb)
	docs, err := r.Retrieve(context.Background(), "watch", 1)
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Metadata["prod_id"] != "P2" {
		t.Errorf("Expected watch doc, got %v", docs[0].Metadata)
	}
}

func TestLoadProductsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	csv := `title,brand,description,final_price,currency,availability,url,model_number,categories
Runner X,Acme,Light running shoe,"1,299",INR,In Stock,http://x/p1,MX-1,"Shoes|Sports"
Chrono,Tick,Leather watch,150.00,USD,In Stock,http://x/p2,,
`
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadProductsCSV(path)
	if err != nil {
		t.Fatalf("LoadProductsCSV failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 docs, got %d", len(docs))
	}

	first := docs[0]
	if first.Metadata["prod_id"] != "MX-1" {
		t.Errorf("Expected model_number as prod_id, got %q", first.Metadata["prod_id"])
	}
	if first.Metadata["final_price"] != "1299" {
		t.Errorf("Expected cleaned price 1299, got %q", first.Metadata["final_price"])
	}
	if !strings.Contains(first.Content, "Categories: Shoes, Sports") {
		t.Errorf("Expected categories in content, got %q", first.Content)
	}

	// no model_number falls back to title
	if docs[1].Metadata["prod_id"] != "Chrono" {
		t.Errorf("Expected title fallback prod_id, got %q", docs[1].Metadata["prod_id"])
	}
}

func TestLoadFAQsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqs.json")
	payload := `{"questions":[{"question":"What is the return policy?","answer":"30 days."},{"question":"","answer":""}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadFAQsJSON(path)
	if err != nil {
		t.Fatalf("LoadFAQsJSON failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 doc (empty entries skipped), got %d", len(docs))
	}
	if docs[0].Metadata["source"] != "faqs" {
		t.Errorf("Expected source=faqs, got %q", docs[0].Metadata["source"])
	}
	if docs[0].Content != "Q: What is the return policy?\nA: 30 days." {
		t.Errorf("Unexpected content: %q", docs[0].Content)
	}
}

func TestLoadFAQsJSON_Missing(t *testing.T) {
	docs, err := LoadFAQsJSON(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got: %v", err)
	}
	if docs != nil {
		t.Errorf("Expected nil docs, got %v", docs)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1,299", "1299"},
		{"$49.99", "49.99"},
		{"₹999", "999"},
		{"", ""},
		{"n/a", "n/a"},
	}
	for _, tt := range tests {
		if got := parseNumber(tt.input); got != tt.expected {
			t.Errorf("parseNumber(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
