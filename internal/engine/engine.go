package engine

// #region imports
import (
	"context"
	"encoding/json"
	"log"

	"github.com/docubot-ai/engine/internal/compose"
	"github.com/docubot-ai/engine/internal/conversation"
	"github.com/docubot-ai/engine/internal/intent"
	"github.com/docubot-ai/engine/internal/logging"
	"github.com/docubot-ai/engine/internal/retrieval"
	"github.com/docubot-ai/engine/internal/store"
	"github.com/docubot-ai/engine/internal/structured"
)

// #endregion

// #region engine-struct

// Engine is the retrieval router: it decides whether a question runs the
// structured path or the semantic path, applies the fallback contract,
// and threads conversation state. One Engine serves all tenants; each
// request is an independent task with no shared mutable state.
type Engine struct {
	store         *store.Store
	conversations *conversation.Store
	classifier    *intent.Classifier
	inspector     *structured.Inspector
	generator     *structured.Generator
	executor      *structured.Executor
	retriever     *retrieval.Retriever
	composer      *compose.Composer
	historyLimit  int
}

// Deps wires the engine's collaborators.
type Deps struct {
	Store         *store.Store
	Conversations *conversation.Store
	Classifier    *intent.Classifier
	Inspector     *structured.Inspector
	Generator     *structured.Generator
	Executor      *structured.Executor
	Retriever     *retrieval.Retriever
	Composer      *compose.Composer
	HistoryLimit  int
}

// New creates a fully wired engine.
func New(d Deps) *Engine {
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = 10
	}
	return &Engine{
		store:         d.Store,
		conversations: d.Conversations,
		classifier:    d.Classifier,
		inspector:     d.Inspector,
		generator:     d.Generator,
		executor:      d.Executor,
		retriever:     d.Retriever,
		composer:      d.Composer,
		historyLimit:  d.HistoryLimit,
	}
}

// #endregion engine-struct

// #region answer

// Answer routes one question: structured attempt when the tenant has
// structured data and the intent warrants it, semantic otherwise or on
// decline. Both turns are appended to the conversation on success.
func (e *Engine) Answer(ctx context.Context, tenantID, question, conversationID string) (RetrievalResult, error) {
	conv, err := e.conversations.GetOrCreate(ctx, tenantID, conversationID)
	if err != nil {
		return RetrievalResult{}, err
	}

	result, err := e.answerInto(ctx, tenantID, question, conv)
	if err != nil {
		return RetrievalResult{}, err
	}

	if err := e.conversations.AppendTurn(ctx, conv.ID, "user", question); err != nil {
		return RetrievalResult{}, err
	}
	if err := e.conversations.AppendTurn(ctx, conv.ID, "assistant", result.Answer); err != nil {
		return RetrievalResult{}, err
	}
	return result, nil
}

// answerInto runs both paths without touching conversation history.
func (e *Engine) answerInto(ctx context.Context, tenantID, question string, conv conversation.Conversation) (RetrievalResult, error) {
	in := intent.IntentSemantic

	hasRows, err := e.store.HasStructuredData(ctx, tenantID)
	if err != nil {
		return RetrievalResult{}, err
	}
	if hasRows {
		in = e.classifier.Classify(question)
		if in == intent.IntentSemantic {
			// Structured machinery is skipped entirely on semantic intent.
			e.logDecision(tenantID, conv.ID, in, PathSemantic, StageIntent, "semantic intent")
		} else {
			result, decline, err := e.tryStructured(ctx, tenantID, question, in)
			if err != nil {
				return RetrievalResult{}, err
			}
			if decline == nil {
				result.ConversationID = conv.ID
				e.logDecision(tenantID, conv.ID, in, PathStructured, "", "")
				return result, nil
			}
			log.Printf("[ROUTER] structured path declined: tenant=%s stage=%s reason=%s",
				tenantID, decline.Stage, decline.Reason)
			e.logDecision(tenantID, conv.ID, in, PathSemantic, decline.Stage, decline.Reason)
		}
	}

	result, err := e.answerSemantic(ctx, tenantID, question, conv)
	if err != nil {
		return RetrievalResult{}, err
	}
	if !hasRows {
		e.logDecision(tenantID, conv.ID, in, PathSemantic, "", "no structured data")
	}
	return result, nil
}

// #endregion answer

// #region structured-path

// tryStructured runs inspect → generate → validate → execute → compose.
// A nil Decline means the path answered. The error return is reserved
// for request cancellation, which must not silently fall back.
func (e *Engine) tryStructured(ctx context.Context, tenantID, question string, in intent.Intent) (RetrievalResult, *Decline, error) {
	declineOrFatal := func(stage Stage, reason string) (RetrievalResult, *Decline, error) {
		if ctx.Err() != nil {
			return RetrievalResult{}, nil, ctx.Err()
		}
		return RetrievalResult{}, &Decline{Stage: stage, Reason: reason}, nil
	}

	schema, err := e.inspector.Inspect(ctx, tenantID)
	if err != nil {
		return declineOrFatal(StageSchema, err.Error())
	}
	if schema.Empty() {
		return declineOrFatal(StageSchema, "no structured columns")
	}

	query, err := e.generator.Generate(ctx, question, schema)
	if err != nil {
		return declineOrFatal(StageGenerate, err.Error())
	}
	log.Printf("[ROUTER] generated query: tenant=%s intent=%s query=%q", tenantID, in, query)

	// Generated text is untrusted until it passes validation; nothing
	// reaches the executor any other way.
	if ok, reason := structured.Validate(query); !ok {
		return declineOrFatal(StageValidate, reason)
	}

	rows, err := e.executor.Execute(ctx, tenantID, query)
	if err != nil {
		return declineOrFatal(StageExecute, err.Error())
	}

	answer, err := e.composer.ComposeStructured(ctx, question, rows)
	if err != nil {
		return declineOrFatal(StageCompose, err.Error())
	}

	return RetrievalResult{
		Answer:  answer,
		Path:    PathStructured,
		Sources: structuredSources(rows),
	}, nil, nil
}

// #endregion structured-path

// #region semantic-path

// answerSemantic runs retrieve → compose. Failures here are fatal: the
// caller gets an explicit error, never a fabricated answer.
func (e *Engine) answerSemantic(ctx context.Context, tenantID, question string, conv conversation.Conversation) (RetrievalResult, error) {
	chunks, err := e.retriever.Retrieve(ctx, tenantID, question)
	if err != nil {
		return RetrievalResult{}, wrapUpstream(ctx, "retrieve", err)
	}

	persona, err := e.store.Persona(ctx, tenantID)
	if err != nil {
		return RetrievalResult{}, err
	}
	history, err := e.conversations.RecentTurns(ctx, conv.ID, e.historyLimit)
	if err != nil {
		return RetrievalResult{}, err
	}

	answer, err := e.composer.ComposeSemantic(ctx, question, persona, chunks, history)
	if err != nil {
		return RetrievalResult{}, wrapUpstream(ctx, "complete", err)
	}

	return RetrievalResult{
		Answer:         answer,
		ConversationID: conv.ID,
		Path:           PathSemantic,
		Sources:        semanticSources(chunks),
	}, nil
}

func wrapUpstream(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &UpstreamError{Op: op, Err: err}
}

// #endregion semantic-path

// #region provenance

const excerptLimit = 200

// semanticSources shapes the top chunks into provenance entries.
func semanticSources(chunks []store.ChunkMatch) []Source {
	n := len(chunks)
	if n > 3 {
		n = 3
	}
	sources := make([]Source, 0, n)
	for _, ch := range chunks[:n] {
		excerpt := ch.Content
		if len(excerpt) > excerptLimit {
			excerpt = excerpt[:excerptLimit]
		}
		sources = append(sources, Source{Excerpt: excerpt, Score: ch.Score})
	}
	return sources
}

// structuredSources marks the structured origin and previews the first
// result rows.
func structuredSources(rows []map[string]any) []Source {
	sources := []Source{{Excerpt: "structured data query", Score: 1.0}}
	n := len(rows)
	if n > 3 {
		n = 3
	}
	for _, row := range rows[:n] {
		rendered, err := json.Marshal(row)
		if err != nil {
			continue
		}
		excerpt := string(rendered)
		if len(excerpt) > excerptLimit {
			excerpt = excerpt[:excerptLimit]
		}
		sources = append(sources, Source{Excerpt: excerpt, Score: 1.0})
	}
	return sources
}

// #endregion provenance

// #region decision-log

func (e *Engine) logDecision(tenantID, conversationID string, in intent.Intent, path Path, stage Stage, reason string) {
	err := logging.LogDecision(e.store.DB(), logging.DecisionEntry{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Intent:         string(in),
		Path:           string(path),
		Stage:          string(stage),
		Reason:         reason,
	})
	if err != nil {
		log.Printf("[ROUTER] decision log failed: %v", err)
	}
}

// #endregion decision-log
