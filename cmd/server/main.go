// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shoptalk-ai/shoptalk/api"
	"github.com/shoptalk-ai/shoptalk/config"
	"github.com/shoptalk-ai/shoptalk/internal/assistant"
	"github.com/shoptalk-ai/shoptalk/internal/rag"
	"github.com/shoptalk-ai/shoptalk/internal/store"
	"github.com/shoptalk-ai/shoptalk/llm"
	"github.com/shoptalk-ai/shoptalk/logger"
	"github.com/shoptalk-ai/shoptalk/websocket"
)

func main() {
	port := flag.Int("port", 0, "override PORT from the environment")
	noSpeech := flag.Bool("no-speech", false, "disable speech markup in replies")
	flag.Parse()

	log := logger.New("server")

	cfg, err := config.LoadEnv()
	if err != nil {
		log.Error("failed to load environment", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if lvl, perr := logger.ParseLevel(cfg.LogLevel); perr == nil {
		logger.SetDefaultLevel(lvl)
		log.SetLevel(lvl)
	}

	assistantCfg, err := config.LoadAssistantConfig(cfg.AssistantYAML)
	if err != nil {
		log.Error("failed to load assistant config", err)
		os.Exit(1)
	}

	orders, err := store.OpenOrderStore(cfg.OrdersCSV)
	if err != nil {
		log.Error("failed to open order store", err)
		os.Exit(1)
	}
	returns, err := store.OpenReturnStore(cfg.ReturnsCSV)
	if err != nil {
		log.Error("failed to open return store", err)
		os.Exit(1)
	}
	log.Infof("stores loaded: %d orders", orders.Len())

	var retriever *rag.Retriever
	if index, ierr := rag.OpenIndex(cfg.IndexPath); ierr != nil {
		log.Warnf("retrieval index unavailable (%v): run cmd/indexer to build it", ierr)
	} else {
		embedder, eerr := rag.NewOpenAIEmbedder(cfg.EmbeddingsBaseURL, cfg.EmbeddingsAPIKey, index.Model())
		if eerr != nil {
			log.Warnf("embedder unavailable (%v): retrieval disabled", eerr)
		} else {
			retriever = rag.NewRetriever(index, embedder)
			log.Infof("retrieval index loaded: %d documents", index.Len())
		}
	}

	generator, err := llm.NewFromEnv()
	if err != nil {
		if errors.Is(err, llm.ErrLLMDisabled) {
			log.Warn("LLM disabled: generated answers degrade to fixed replies")
			generator = nil
		} else {
			log.Error("failed to configure LLM", err)
			os.Exit(1)
		}
	}

	systemPrompt := ""
	if data, perr := os.ReadFile(cfg.PromptFile); perr == nil {
		systemPrompt = string(data)
	} else {
		log.Warn("prompt file missing, using built-in system prompt")
	}

	opts := assistant.Options{
		Orders:        orders,
		Returns:       returns,
		Memory:        llm.NewMemory(10),
		SystemPrompt:  systemPrompt,
		Config:        assistantCfg,
		SpeechEnabled: !*noSpeech,
	}
	if generator != nil {
		opts.Generator = generator
	}
	if retriever != nil {
		opts.Retriever = retriever
		opts.Search = retriever
	}
	engine := assistant.New(opts)

	var search api.ProductSearcher
	if retriever != nil {
		search = retriever
	}
	srv := api.NewServer(engine, search, orders, websocket.NewHub(), cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Error("server failed", err)
		os.Exit(1)
	}
}
