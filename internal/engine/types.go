package engine

// #region path

// Path identifies which retrieval route produced an answer.
type Path string

const (
	PathStructured Path = "structured"
	PathSemantic   Path = "semantic"
)

// #endregion

// #region stage

// Stage names the structured-path step that declined.
type Stage string

const (
	StageIntent   Stage = "intent"
	StageSchema   Stage = "schema"
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageExecute  Stage = "execute"
	StageCompose  Stage = "compose"
)

// #endregion

// #region decline

// Decline is the structured path's tagged "try the other path" outcome.
// It is a first-class value, not an error: declines are recoverable by
// contract and never surface to the end user.
type Decline struct {
	Stage  Stage
	Reason string
}

// #endregion

// #region result

// Source is one piece of provenance behind an answer.
type Source struct {
	Excerpt string
	Score   float32
}

// RetrievalResult is the engine's terminal output for one question.
type RetrievalResult struct {
	Answer         string
	ConversationID string
	Path           Path
	Sources        []Source
}

// #endregion

// #region stream-event

// StreamEvent is one increment of a streaming answer. The first event
// carries the conversation id; the last carries Done and the assembled
// result, or Err.
type StreamEvent struct {
	ConversationID string
	Delta          string
	Done           bool
	Result         *RetrievalResult
	Err            error
}

// #endregion
