package engine

// #region imports
import (
	"errors"
	"fmt"
)

// #endregion

// #region upstream-error

// UpstreamError marks a fatal transport failure against the embedding or
// completion gateway (or the vector index). Semantic-path callers get it
// instead of a fabricated answer.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err wraps an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// #endregion
