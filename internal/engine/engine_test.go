package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/docubot-ai/engine/internal/compose"
	"github.com/docubot-ai/engine/internal/conversation"
	"github.com/docubot-ai/engine/internal/intent"
	"github.com/docubot-ai/engine/internal/llm"
	"github.com/docubot-ai/engine/internal/logging"
	"github.com/docubot-ai/engine/internal/retrieval"
	"github.com/docubot-ai/engine/internal/store"
	"github.com/docubot-ai/engine/internal/structured"
	"github.com/docubot-ai/engine/internal/vectorstore"
)

// #region fakes

// scriptedLLM replies from a fixed queue so a test can drive the
// generate and compose calls independently.
type scriptedLLM struct {
	replies        []string
	completeErr    error
	calls          int
	stream         []llm.StreamDelta
	blockTilCancel bool
}

func (f *scriptedLLM) Complete(_ context.Context, _ []llm.Message, _ float32, _ int) (string, error) {
	f.calls++
	if f.completeErr != nil {
		return "", f.completeErr
	}
	reply := "unscripted reply"
	if f.calls-1 < len(f.replies) {
		reply = f.replies[f.calls-1]
	}
	return reply, nil
}

func (f *scriptedLLM) CompleteStream(ctx context.Context, _ []llm.Message, _ float32, _ int) (<-chan llm.StreamDelta, error) {
	ch := make(chan llm.StreamDelta, len(f.stream)+2)
	go func() {
		defer close(ch)
		if f.blockTilCancel {
			if len(f.stream) > 0 {
				ch <- f.stream[0]
			}
			<-ctx.Done()
			ch <- llm.StreamDelta{Done: true, Err: ctx.Err()}
			return
		}
		for _, d := range f.stream {
			ch <- d
		}
		ch <- llm.StreamDelta{Done: true}
	}()
	return ch, nil
}

type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return f.vec, nil
}

type failingEmbedder struct {
	err error
}

func (f *failingEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return nil, f.err
}

// #endregion fakes

// #region harness

type harness struct {
	engine *Engine
	store  *store.Store
	convs  *conversation.Store
	llm    *scriptedLLM
}

func newHarness(t *testing.T, llmFake *scriptedLLM) *harness {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	convs := conversation.NewStore(st.DB())
	retriever := retrieval.NewRetriever(
		&fixedEmbedder{vec: []float32{1, 0}},
		vectorstore.NewSQLiteIndex(st),
		retrieval.DefaultConfig(),
	)

	eng := New(Deps{
		Store:         st,
		Conversations: convs,
		Classifier:    intent.NewClassifier(nil),
		Inspector:     structured.NewInspector(st),
		Generator:     structured.NewGenerator(llmFake),
		Executor:      structured.NewExecutor(st, 1000),
		Retriever:     retriever,
		Composer:      compose.NewComposer(llmFake, compose.Config{StructuredTemperature: 0.1, SemanticTemperature: 0.3}),
	})
	return &harness{engine: eng, store: st, convs: convs, llm: llmFake}
}

func (h *harness) seedChunks(t *testing.T, tenantID string, contents ...string) {
	t.Helper()
	chunks := make([]store.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = store.Chunk{Content: c, Vector: []float32{1, 0}}
	}
	if err := h.store.ReplaceChunks(context.Background(), tenantID, "doc", chunks); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}
}

func (h *harness) seedRows(t *testing.T, tenantID string) {
	t.Helper()
	rows := []store.StructuredRow{
		{SheetName: "orders", RowNumber: 1, Fields: map[string]any{"Customer": "Alice", "Amount": 100.5}},
		{SheetName: "orders", RowNumber: 2, Fields: map[string]any{"Customer": "Bob", "Amount": 250.25}},
	}
	if err := h.store.ReplaceRows(context.Background(), tenantID, "sheet", rows); err != nil {
		t.Fatalf("seed rows: %v", err)
	}
}

func (h *harness) turns(t *testing.T, conversationID string) []conversation.Turn {
	t.Helper()
	turns, err := h.convs.RecentTurns(context.Background(), conversationID, 100)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	return turns
}

func (h *harness) messageCount(t *testing.T) int {
	t.Helper()
	var n int
	if err := h.store.DB().QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func (h *harness) decisions(t *testing.T, tenantID string) []logging.DecisionEntry {
	t.Helper()
	entries, err := logging.RecentDecisions(h.store.DB(), tenantID, 100)
	if err != nil {
		t.Fatalf("decisions: %v", err)
	}
	return entries
}

// #endregion harness

// #region routing-tests

func TestAnswer_SemanticOnly(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{"Refunds are available within 30 days."}})
	h.seedChunks(t, "acme", "Our policy: refunds are available within 30 days of purchase.")

	// An aggregation-looking question still goes semantic when the tenant
	// has no structured rows.
	result, err := h.engine.Answer(context.Background(), "acme", "how many days do I have to request a refund?", "")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if result.Path != PathSemantic {
		t.Errorf("path: got %q, want %q", result.Path, PathSemantic)
	}
	if result.Answer != "Refunds are available within 30 days." {
		t.Errorf("answer: got %q", result.Answer)
	}
	if result.ConversationID == "" {
		t.Error("missing conversation id")
	}
	if h.llm.calls != 1 {
		t.Errorf("model calls: got %d, want 1", h.llm.calls)
	}
	if len(result.Sources) == 0 || result.Sources[0].Excerpt == "" {
		t.Errorf("sources: got %+v", result.Sources)
	}

	turns := h.turns(t, result.ConversationID)
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("persisted turns: got %+v", turns)
	}
}

func TestAnswer_StructuredSuccess(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{
		"SELECT SUM(CAST(json_extract(fields, '$.Amount') AS REAL)) AS total FROM structured_rows WHERE tenant_id = :tenant_id",
		"The total amount is 350.75.",
	}})
	h.seedRows(t, "acme")

	result, err := h.engine.Answer(context.Background(), "acme", "what is the total amount?", "")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if result.Path != PathStructured {
		t.Errorf("path: got %q, want %q", result.Path, PathStructured)
	}
	if result.Answer != "The total amount is 350.75." {
		t.Errorf("answer: got %q", result.Answer)
	}
	if len(result.Sources) == 0 || result.Sources[0].Excerpt != "structured data query" {
		t.Errorf("sources: got %+v", result.Sources)
	}
	if h.llm.calls != 2 {
		t.Errorf("model calls: got %d, want 2 (generate + compose)", h.llm.calls)
	}

	decisions := h.decisions(t, "acme")
	if len(decisions) != 1 || decisions[0].Path != "structured" || decisions[0].Stage != "" {
		t.Errorf("decision log: got %+v", decisions)
	}

	turns := h.turns(t, result.ConversationID)
	if len(turns) != 2 || turns[1].Content != "The total amount is 350.75." {
		t.Errorf("persisted turns: got %+v", turns)
	}
}

func TestAnswer_SemanticIntentSkipsStructuredMachinery(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{"Shipping takes two days."}})
	h.seedRows(t, "acme")
	h.seedChunks(t, "acme", "Standard shipping takes two business days.")

	result, err := h.engine.Answer(context.Background(), "acme", "tell me about shipping times", "")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if result.Path != PathSemantic {
		t.Errorf("path: got %q, want %q", result.Path, PathSemantic)
	}
	// No SQL generation call happened; the single call is the composer.
	if h.llm.calls != 1 {
		t.Errorf("model calls: got %d, want 1", h.llm.calls)
	}

	decisions := h.decisions(t, "acme")
	if len(decisions) != 1 || decisions[0].Stage != string(StageIntent) {
		t.Errorf("decision log: got %+v", decisions)
	}
}

func TestAnswer_FallbackOnInvalidQuery(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{
		"DELETE FROM structured_rows WHERE tenant_id = :tenant_id",
		"There are two orders on record.",
	}})
	h.seedRows(t, "acme")
	h.seedChunks(t, "acme", "The order history lists two orders this quarter.")

	result, err := h.engine.Answer(context.Background(), "acme", "how many orders are there?", "")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if result.Path != PathSemantic {
		t.Errorf("path: got %q, want %q", result.Path, PathSemantic)
	}
	if result.Answer != "There are two orders on record." {
		t.Errorf("answer: got %q", result.Answer)
	}

	decisions := h.decisions(t, "acme")
	if len(decisions) != 1 || decisions[0].Stage != string(StageValidate) {
		t.Errorf("decision log: got %+v", decisions)
	}
	if decisions[0].Path != "semantic" {
		t.Errorf("decision path: got %q", decisions[0].Path)
	}
}

func TestAnswer_FallbackOnExecutionError(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{
		"SELECT no_such_column FROM structured_rows WHERE tenant_id = :tenant_id",
		"I found two orders.",
	}})
	h.seedRows(t, "acme")
	h.seedChunks(t, "acme", "Two orders were placed in total.")

	result, err := h.engine.Answer(context.Background(), "acme", "count the orders", "")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if result.Path != PathSemantic {
		t.Errorf("path: got %q, want %q", result.Path, PathSemantic)
	}
	decisions := h.decisions(t, "acme")
	if len(decisions) != 1 || decisions[0].Stage != string(StageExecute) {
		t.Errorf("decision log: got %+v", decisions)
	}
}

func TestAnswer_NoEvidenceNoMatchMessage(t *testing.T) {
	h := newHarness(t, &scriptedLLM{})

	result, err := h.engine.Answer(context.Background(), "acme", "what is the refund policy?", "")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Answer != compose.NoMatchMessage {
		t.Errorf("answer: got %q, want %q", result.Answer, compose.NoMatchMessage)
	}
	if h.llm.calls != 0 {
		t.Errorf("model calls: got %d, want 0", h.llm.calls)
	}
}

func TestAnswer_ThreadsConversation(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{"First answer.", "Second answer."}})
	h.seedChunks(t, "acme", "Some knowledge base content.")

	first, err := h.engine.Answer(context.Background(), "acme", "first question", "")
	if err != nil {
		t.Fatalf("first answer: %v", err)
	}
	second, err := h.engine.Answer(context.Background(), "acme", "second question", first.ConversationID)
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}

	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation not threaded: %q vs %q", second.ConversationID, first.ConversationID)
	}
	turns := h.turns(t, first.ConversationID)
	if len(turns) != 4 {
		t.Fatalf("turns: got %d, want 4", len(turns))
	}
	if turns[2].Content != "second question" || turns[3].Content != "Second answer." {
		t.Errorf("second exchange: got %+v", turns[2:])
	}
}

func TestAnswer_RetrieveFailureIsUpstream(t *testing.T) {
	h := newHarness(t, &scriptedLLM{})
	h.seedChunks(t, "acme", "Some knowledge base content.")
	h.engine.retriever = retrieval.NewRetriever(
		&failingEmbedder{err: errors.New("connection refused")},
		vectorstore.NewSQLiteIndex(h.store),
		retrieval.DefaultConfig(),
	)

	_, err := h.engine.Answer(context.Background(), "acme", "what is the policy?", "")
	if err == nil {
		t.Fatal("expected error, not a fabricated answer")
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type: got %T (%v), want *UpstreamError", err, err)
	}
	if ue.Op != "retrieve" {
		t.Errorf("op: got %q, want %q", ue.Op, "retrieve")
	}
	if !IsUpstream(err) {
		t.Error("IsUpstream: got false, want true")
	}
	if n := h.messageCount(t); n != 0 {
		t.Errorf("persisted turns after failure: got %d, want 0", n)
	}
}

func TestAnswer_CompletionFailureIsUpstream(t *testing.T) {
	h := newHarness(t, &scriptedLLM{completeErr: errors.New("completion status 503: overloaded")})
	h.seedChunks(t, "acme", "Some knowledge base content.")

	_, err := h.engine.Answer(context.Background(), "acme", "what is the policy?", "")
	if err == nil {
		t.Fatal("expected error, not a fabricated answer")
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type: got %T (%v), want *UpstreamError", err, err)
	}
	if ue.Op != "complete" {
		t.Errorf("op: got %q, want %q", ue.Op, "complete")
	}
	if !IsUpstream(err) {
		t.Error("IsUpstream: got false, want true")
	}
	if n := h.messageCount(t); n != 0 {
		t.Errorf("persisted turns after failure: got %d, want 0", n)
	}
}

// #endregion routing-tests

// #region stream-tests

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestAnswerStream_Semantic(t *testing.T) {
	h := newHarness(t, &scriptedLLM{stream: []llm.StreamDelta{
		{Content: "Refunds take "},
		{Content: "30 days."},
	}})
	h.seedChunks(t, "acme", "Refunds take 30 days to process.")

	events, err := h.engine.AnswerStream(context.Background(), "acme", "how long do refunds take?", "")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	got := collectEvents(t, events)

	if got[0].ConversationID == "" {
		t.Fatal("first event must carry the conversation id")
	}
	last := got[len(got)-1]
	if !last.Done || last.Err != nil || last.Result == nil {
		t.Fatalf("final event: got %+v", last)
	}
	if last.Result.Answer != "Refunds take 30 days." {
		t.Errorf("assembled answer: got %q", last.Result.Answer)
	}
	if last.Result.Path != PathSemantic {
		t.Errorf("path: got %q", last.Result.Path)
	}

	var streamed string
	for _, ev := range got {
		streamed += ev.Delta
	}
	if streamed != last.Result.Answer {
		t.Errorf("deltas %q do not assemble the answer %q", streamed, last.Result.Answer)
	}

	turns := h.turns(t, got[0].ConversationID)
	if len(turns) != 2 || turns[1].Content != "Refunds take 30 days." {
		t.Errorf("persisted turns: got %+v", turns)
	}
}

func TestAnswerStream_LogsNoStructuredDataDecision(t *testing.T) {
	h := newHarness(t, &scriptedLLM{stream: []llm.StreamDelta{{Content: "The policy is simple."}}})
	h.seedChunks(t, "acme", "The policy is simple and short.")

	events, err := h.engine.AnswerStream(context.Background(), "acme", "what is the policy?", "")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	collectEvents(t, events)

	// Streaming records the same routing decision as the blocking path.
	decisions := h.decisions(t, "acme")
	if len(decisions) != 1 {
		t.Fatalf("decisions: got %d, want 1", len(decisions))
	}
	if decisions[0].Path != "semantic" || decisions[0].Reason != "no structured data" {
		t.Errorf("decision: got %+v", decisions[0])
	}
}

func TestAnswerStream_StructuredSingleDelta(t *testing.T) {
	h := newHarness(t, &scriptedLLM{replies: []string{
		"SELECT COUNT(*) AS n FROM structured_rows WHERE tenant_id = :tenant_id",
		"There are 2 orders.",
	}})
	h.seedRows(t, "acme")

	events, err := h.engine.AnswerStream(context.Background(), "acme", "how many orders?", "")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	got := collectEvents(t, events)

	var deltas []string
	for _, ev := range got {
		if ev.Delta != "" {
			deltas = append(deltas, ev.Delta)
		}
	}
	if len(deltas) != 1 || deltas[0] != "There are 2 orders." {
		t.Errorf("deltas: got %v, want one whole answer", deltas)
	}
	last := got[len(got)-1]
	if last.Result == nil || last.Result.Path != PathStructured {
		t.Errorf("final event: got %+v", last)
	}
}

func TestAnswerStream_CancelPersistsNoAssistantTurn(t *testing.T) {
	h := newHarness(t, &scriptedLLM{
		stream:         []llm.StreamDelta{{Content: "partial "}},
		blockTilCancel: true,
	})
	h.seedChunks(t, "acme", "Some knowledge base content.")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.engine.AnswerStream(ctx, "acme", "question", "")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	first := <-events
	if first.ConversationID == "" {
		t.Fatal("first event must carry the conversation id")
	}
	<-events // the partial delta
	cancel()

	var last StreamEvent
	for ev := range events {
		last = ev
	}
	if !last.Done || last.Err == nil {
		t.Fatalf("final event: got %+v, want Done with error", last)
	}

	turns := h.turns(t, first.ConversationID)
	if len(turns) != 1 || turns[0].Role != "user" {
		t.Errorf("persisted turns after cancel: got %+v, want only the user turn", turns)
	}
}

// #endregion stream-tests
