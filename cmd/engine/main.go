package main

// #region imports
import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docubot-ai/engine/internal/compose"
	"github.com/docubot-ai/engine/internal/config"
	"github.com/docubot-ai/engine/internal/conversation"
	"github.com/docubot-ai/engine/internal/embed"
	"github.com/docubot-ai/engine/internal/engine"
	"github.com/docubot-ai/engine/internal/intent"
	"github.com/docubot-ai/engine/internal/llm"
	"github.com/docubot-ai/engine/internal/retrieval"
	"github.com/docubot-ai/engine/internal/store"
	"github.com/docubot-ai/engine/internal/structured"
	"github.com/docubot-ai/engine/internal/vectorstore"
)

// #endregion

// #region main
func main() {
	_ = godotenv.Load()

	cfgPath := envOr("ENGINE_CONFIG", "config.yaml")
	tenantID := envOr("ENGINE_TENANT", "default")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	index, err := vectorstore.New(cfg.VectorStore, st)
	if err != nil {
		log.Fatalf("failed to open vector store: %v", err)
	}

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout(),
	})
	if err != nil {
		log.Fatalf("failed to create completion client: %v", err)
	}

	embedClient, err := embed.NewClient(embed.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKeyEnv: cfg.Embedding.APIKeyEnv,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout(),
	})
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}

	classifier := buildClassifier(cfg.Intent)

	eng := engine.New(engine.Deps{
		Store:         st,
		Conversations: conversation.NewStore(st.DB()),
		Classifier:    classifier,
		Inspector:     structured.NewInspector(st),
		Generator:     structured.NewGenerator(llmClient),
		Executor:      structured.NewExecutor(st, cfg.Structured.RowLimit),
		Retriever: retrieval.NewRetriever(embedClient, index, retrieval.Config{
			TopK:                cfg.Retrieval.TopK,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			ConfidentScore:      cfg.Retrieval.ConfidentScore,
			MinResults:          cfg.Retrieval.MinResults,
			MaxContextTokens:    cfg.Retrieval.MaxContextTokens,
		}),
		Composer: compose.NewComposer(llmClient, compose.Config{
			StructuredTemperature: cfg.Compose.StructuredTemperature,
			SemanticTemperature:   cfg.Compose.SemanticTemperature,
		}),
		HistoryLimit: cfg.Compose.HistoryLimit,
	})

	fmt.Println("Answer engine ready.")
	fmt.Printf("  DB: %s | Tenant: %s | Model: %s\n", cfg.DBPath, tenantID, cfg.LLM.Model)
	fmt.Println("Type a question (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	conversationID := ""

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "quit" || question == "exit" {
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		result, err := eng.Answer(ctx, tenantID, question, conversationID)
		cancel()
		if err != nil {
			log.Printf("answer error: %v", err)
			continue
		}
		conversationID = result.ConversationID

		fmt.Printf("\n%s\n\n", result.Answer)
		fmt.Printf("[path=%s conversation=%s]\n", result.Path, result.ConversationID)
		for i, src := range result.Sources {
			fmt.Printf("  source %d (%.2f): %s\n", i+1, src.Score, src.Excerpt)
		}
	}
}

// #endregion main

// #region helpers

func buildClassifier(cfg config.IntentConfig) *intent.Classifier {
	classifier := intent.NewClassifier(nil)
	if cfg.KeywordsPath == "" {
		return classifier
	}
	rules, err := intent.LoadRules(cfg.KeywordsPath)
	if err != nil {
		log.Printf("keyword file ignored: %v", err)
		return classifier
	}
	classifier.SetRules(rules)
	if cfg.Watch {
		if _, err := intent.WatchRules(cfg.KeywordsPath, classifier); err != nil {
			log.Printf("keyword watch disabled: %v", err)
		}
	}
	return classifier
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
