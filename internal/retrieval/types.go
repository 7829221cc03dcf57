package retrieval

// #region config
// Config holds thresholds and limits for similarity retrieval.
type Config struct {
	TopK                int     // max results returned
	SimilarityThreshold float32 // min cosine similarity to keep a candidate
	ConfidentScore      float32 // best-hit score above which the window narrows
	MinResults          int     // floor kept on a confident match
	MaxContextTokens    int     // estimated-token budget across kept chunks
}

// DefaultConfig returns sensible retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                5,
		SimilarityThreshold: 0.20,
		ConfidentScore:      0.75,
		MinResults:          3,
		MaxContextTokens:    40000,
	}
}

// #endregion config

// #region token-estimate

// EstimateTokens approximates the token count of a text at four
// characters per token, rounded up.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// #endregion token-estimate
