package compose

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docubot-ai/engine/internal/conversation"
	"github.com/docubot-ai/engine/internal/llm"
	"github.com/docubot-ai/engine/internal/store"
)

// #endregion

// #region messages

// NoMatchMessage is returned for empty evidence without any model call.
const NoMatchMessage = "I couldn't find any matching data for your question."

// DefaultPersona is used when a tenant has no system prompt configured.
const DefaultPersona = "You are a helpful assistant answering questions about this knowledge base."

// #endregion

// #region completion-client

// CompletionClient is the slice of the completion gateway the composer
// needs. Satisfied by *llm.Client and by test fakes.
type CompletionClient interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float32, maxTokens int) (string, error)
	CompleteStream(ctx context.Context, messages []llm.Message, temperature float32, maxTokens int) (<-chan llm.StreamDelta, error)
}

// #endregion

// #region composer

// Config holds composition temperatures.
type Config struct {
	StructuredTemperature float32
	SemanticTemperature   float32
}

// Composer turns evidence plus the question into a grounded answer. The
// prompts forbid inventing values and forbid mentioning the retrieval or
// query mechanism.
type Composer struct {
	llm    CompletionClient
	config Config
}

// NewComposer creates a Composer.
func NewComposer(client CompletionClient, config Config) *Composer {
	return &Composer{llm: client, config: config}
}

// #endregion composer

// #region structured

const structuredPrompt = `You are a data assistant. The user asked a question and here is the exact result from the database.

USER QUESTION: %s

DATABASE RESULT:
%s

RULES:
- Report the exact values from the result. Do NOT modify, round, or approximate any numbers.
- If it's a count or total, state the number clearly.
- If it's a list of rows, format them in a readable way.
- Do NOT add information not present in the result.
- Be concise and direct.
- Do NOT mention SQL, databases, or queries in your response.`

// ComposeStructured renders query result rows into a natural-language
// answer. Empty rows short-circuit to NoMatchMessage with no model call.
func (c *Composer) ComposeStructured(ctx context.Context, question string, rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return NoMatchMessage, nil
	}

	rendered, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render rows: %w", err)
	}

	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(structuredPrompt, question, rendered)},
		{Role: "user", Content: question},
	}
	answer, err := c.llm.Complete(ctx, messages, c.config.StructuredTemperature, 0)
	if err != nil {
		return "", fmt.Errorf("compose structured answer: %w", err)
	}
	return answer, nil
}

// #endregion structured

// #region semantic

const semanticRules = `Use the following context to answer the user's question accurately.

IMPORTANT RULES:
- Read each section in the context carefully.
- Answer based ONLY on information found in the context.
- If the context doesn't contain relevant information, say you don't have enough information.
- Do NOT guess or make up information not present in the context.
- Be precise and quote relevant details from the context when helpful.

CONTEXT:
`

// SemanticMessages builds the semantic prompt: persona plus grounding
// rules plus joined chunk context as the system turn, bounded history
// interleaved before the final question turn.
func SemanticMessages(question, persona string, chunks []store.ChunkMatch, history []conversation.Turn) []llm.Message {
	if persona == "" {
		persona = DefaultPersona
	}

	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content
	}
	system := persona + "\n\n" + semanticRules + strings.Join(parts, "\n\n---\n\n")

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

// ComposeSemantic answers from ranked chunks. Empty evidence
// short-circuits to NoMatchMessage with no model call.
func (c *Composer) ComposeSemantic(ctx context.Context, question, persona string, chunks []store.ChunkMatch, history []conversation.Turn) (string, error) {
	if len(chunks) == 0 {
		return NoMatchMessage, nil
	}
	answer, err := c.llm.Complete(ctx, SemanticMessages(question, persona, chunks, history), c.config.SemanticTemperature, 0)
	if err != nil {
		return "", fmt.Errorf("compose semantic answer: %w", err)
	}
	return answer, nil
}

// ComposeSemanticStream is the streaming variant of ComposeSemantic.
// Deltas arrive in generation order. Empty evidence yields a single
// NoMatchMessage delta without a model call.
func (c *Composer) ComposeSemanticStream(ctx context.Context, question, persona string, chunks []store.ChunkMatch, history []conversation.Turn) (<-chan llm.StreamDelta, error) {
	if len(chunks) == 0 {
		ch := make(chan llm.StreamDelta, 2)
		ch <- llm.StreamDelta{Content: NoMatchMessage}
		ch <- llm.StreamDelta{Done: true}
		close(ch)
		return ch, nil
	}
	stream, err := c.llm.CompleteStream(ctx, SemanticMessages(question, persona, chunks, history), c.config.SemanticTemperature, 0)
	if err != nil {
		return nil, fmt.Errorf("compose semantic stream: %w", err)
	}
	return stream, nil
}

// #endregion semantic
