package engine

// #region imports
import (
	"context"
	"log"
	"strings"

	"github.com/docubot-ai/engine/internal/intent"
)

// #endregion

// #region answer-stream

// AnswerStream is the streaming variant of Answer. The first event
// carries the conversation id, deltas follow in generation order, and
// the final event carries the assembled result. The assistant turn is
// appended to history only once the stream completes; a cancelled stream
// persists no partial assistant turn. Structured answers arrive as a
// single delta since query answers are fast.
func (e *Engine) AnswerStream(ctx context.Context, tenantID, question, conversationID string) (<-chan StreamEvent, error) {
	conv, err := e.conversations.GetOrCreate(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 32)
	go func() {
		defer close(events)
		events <- StreamEvent{ConversationID: conv.ID}

		fail := func(err error) {
			events <- StreamEvent{Done: true, Err: err}
		}

		in := intent.IntentSemantic
		hasRows, err := e.store.HasStructuredData(ctx, tenantID)
		if err != nil {
			fail(err)
			return
		}
		if hasRows {
			in = e.classifier.Classify(question)
			if in == intent.IntentSemantic {
				e.logDecision(tenantID, conv.ID, in, PathSemantic, StageIntent, "semantic intent")
			} else {
				result, decline, err := e.tryStructured(ctx, tenantID, question, in)
				if err != nil {
					fail(err)
					return
				}
				if decline == nil {
					result.ConversationID = conv.ID
					e.logDecision(tenantID, conv.ID, in, PathStructured, "", "")
					e.emitWhole(ctx, events, conv.ID, question, result)
					return
				}
				log.Printf("[ROUTER] structured path declined: tenant=%s stage=%s reason=%s",
					tenantID, decline.Stage, decline.Reason)
				e.logDecision(tenantID, conv.ID, in, PathSemantic, decline.Stage, decline.Reason)
			}
		}

		chunks, err := e.retriever.Retrieve(ctx, tenantID, question)
		if err != nil {
			fail(wrapUpstream(ctx, "retrieve", err))
			return
		}
		persona, err := e.store.Persona(ctx, tenantID)
		if err != nil {
			fail(err)
			return
		}
		history, err := e.conversations.RecentTurns(ctx, conv.ID, e.historyLimit)
		if err != nil {
			fail(err)
			return
		}

		if err := e.conversations.AppendTurn(ctx, conv.ID, "user", question); err != nil {
			fail(err)
			return
		}

		stream, err := e.composer.ComposeSemanticStream(ctx, question, persona, chunks, history)
		if err != nil {
			fail(wrapUpstream(ctx, "complete", err))
			return
		}

		var full strings.Builder
		for delta := range stream {
			if delta.Err != nil {
				fail(wrapUpstream(ctx, "stream", delta.Err))
				return
			}
			if delta.Content != "" {
				full.WriteString(delta.Content)
				events <- StreamEvent{Delta: delta.Content}
			}
			if delta.Done {
				break
			}
		}
		if ctx.Err() != nil {
			fail(ctx.Err())
			return
		}

		// The assembled answer is appended atomically only after a
		// complete stream.
		if err := e.conversations.AppendTurn(ctx, conv.ID, "assistant", full.String()); err != nil {
			fail(err)
			return
		}
		if !hasRows {
			e.logDecision(tenantID, conv.ID, in, PathSemantic, "", "no structured data")
		}
		events <- StreamEvent{Done: true, Result: &RetrievalResult{
			Answer:         full.String(),
			ConversationID: conv.ID,
			Path:           PathSemantic,
			Sources:        semanticSources(chunks),
		}}
	}()

	return events, nil
}

// emitWhole delivers an already-complete answer over the stream and
// persists both turns.
func (e *Engine) emitWhole(ctx context.Context, events chan<- StreamEvent, convID, question string, result RetrievalResult) {
	if err := e.conversations.AppendTurn(ctx, convID, "user", question); err != nil {
		events <- StreamEvent{Done: true, Err: err}
		return
	}
	events <- StreamEvent{Delta: result.Answer}
	if err := e.conversations.AppendTurn(ctx, convID, "assistant", result.Answer); err != nil {
		events <- StreamEvent{Done: true, Err: err}
		return
	}
	events <- StreamEvent{Done: true, Result: &result}
}

// #endregion answer-stream
