package intent

// #region imports
import (
	"strings"
	"sync"
)

// #endregion

// #region intent-type

// Intent is the routing category for a user question.
type Intent string

const (
	IntentAggregation Intent = "AGGREGATION"
	IntentRowLookup   Intent = "ROW_LOOKUP"
	IntentSemantic    Intent = "SEMANTIC"
)

// #endregion

// #region keywords

var aggregationKeywords = []string{
	"how many", "count", "total", "sum", "average", "avg",
	"maximum", "minimum", "max", "min", "group by", "grouped",
	"percentage", "percent", "%", "number of",
}

var rowLookupKeywords = []string{
	"find", "where", "which", "who has", "who have", "lookup",
	"show me row", "show me rows", "get row", "get rows",
	"list all", "list the", "give me", "show all", "what is the",
	"details of", "details for", "information about", "info about",
}

// #endregion

// #region rule

// Rule maps a keyword set to an intent. Rules are checked in order; the
// first matching keyword wins, so aggregation rules placed before lookup
// rules take priority when both match.
type Rule struct {
	Intent   Intent   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules returns the built-in keyword lists, aggregation first.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: IntentAggregation, Keywords: aggregationKeywords},
		{Intent: IntentRowLookup, Keywords: rowLookupKeywords},
	}
}

// #endregion

// #region classifier

// Classifier routes a question via case-insensitive substring matching
// over an ordered rule list. No model call, no I/O; classification over a
// given rule set is deterministic. The rule set can be swapped at runtime
// (see Watcher), so reads go through a lock.
type Classifier struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewClassifier creates a classifier. Nil rules means DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the intent for a question, defaulting to SEMANTIC.
func (c *Classifier) Classify(question string) Intent {
	lower := strings.ToLower(strings.TrimSpace(question))

	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Intent
			}
		}
	}
	return IntentSemantic
}

// SetRules atomically replaces the rule list.
func (c *Classifier) SetRules(rules []Rule) {
	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()
}

// #endregion
