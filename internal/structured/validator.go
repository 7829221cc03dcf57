package structured

// #region imports
import (
	"fmt"
	"regexp"
	"strings"
)

// #endregion

// #region forbidden

// Deny-list validation over free text is a known-weak guard; a parsed
// allow-list grammar would close obfuscation bypasses. Kept textual here
// to match the executor's plain-SQL contract, hardened with whole-word
// matching and the single-statement rule.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
	"CREATE", "GRANT", "REVOKE", "EXEC", "EXECUTE", "INTO",
}

var forbiddenPatterns = compileForbidden()

func compileForbidden() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(forbiddenKeywords))
	for i, kw := range forbiddenKeywords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}

// #endregion

// #region validate

// Validate is the deterministic safety gate for generated query text.
// No I/O. Rules, in order: non-empty, read-only SELECT, exactly one
// statement, no mutating/schema keywords or comment tokens, and a textual
// reference to the :tenant_id parameter.
func Validate(query string) (bool, string) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false, "empty query"
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return false, "query must start with SELECT"
	}

	var statements int
	for _, part := range strings.Split(trimmed, ";") {
		if strings.TrimSpace(part) != "" {
			statements++
		}
	}
	if statements > 1 {
		return false, "multiple statements not allowed"
	}

	for i, pattern := range forbiddenPatterns {
		if pattern.MatchString(trimmed) {
			return false, fmt.Sprintf("forbidden keyword: %s", forbiddenKeywords[i])
		}
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return false, "comment tokens not allowed"
	}

	if !strings.Contains(strings.ToLower(trimmed), ":tenant_id") {
		return false, "query must include the :tenant_id filter"
	}

	return true, ""
}

// #endregion
