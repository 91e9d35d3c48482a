// cmd/indexer/main.go
//
// Builds the retrieval index from the flat product/FAQ files and writes
// it to the configured index path. Run once before starting the server,
// and again whenever the catalog files change.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/shoptalk-ai/shoptalk/config"
	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/logger"
)

func main() {
	out := flag.String("out", "", "override INDEX_PATH from the environment")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall embedding deadline")
	flag.Parse()

	log := logger.New("indexer")

	cfg, err := config.LoadEnv()
	if err != nil {
		log.Error("failed to load environment", err)
		os.Exit(1)
	}
	indexPath := cfg.IndexPath
	if *out != "" {
		indexPath = *out
	}

	products, err := rag.LoadProductsCSV(cfg.ProductsCSV)
	if err != nil {
		log.Error("failed to load products", err)
		os.Exit(1)
	}
	faqs, err := rag.LoadFAQsJSON(cfg.FAQsJSON)
	if err != nil {
		log.Error("failed to load FAQs", err)
		os.Exit(1)
	}
	docs := append(products, faqs...)
	if len(docs) == 0 {
		log.Error("no documents to index", nil)
		os.Exit(1)
	}
	log.Infof("loaded %d product documents, %d FAQ documents", len(products), len(faqs))

	embedder, err := rag.NewOpenAIEmbedder(cfg.EmbeddingsBaseURL, cfg.EmbeddingsAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Error("failed to configure embedder", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	index, err := rag.BuildIndex(ctx, embedder, docs, cfg.EmbeddingsModel)
	if err != nil {
		log.Error("failed to build index", err)
		os.Exit(1)
	}
	if err := index.Save(indexPath); err != nil {
		log.Error("failed to save index", err)
		os.Exit(1)
	}
	log.Infof("indexed %d documents to %s in %s", index.Len(), indexPath, time.Since(start).Round(time.Millisecond))
}
