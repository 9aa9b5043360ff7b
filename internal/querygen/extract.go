package querygen

import (
	"regexp"
	"strings"
)

const (
	openDelimiter  = "<query>"
	closeDelimiter = "</query>"
)

// queryPattern matches one delimited query span. (?s) lets a span cross
// line breaks; the non-greedy body stops at the nearest closing tag, so
// pairs are non-overlapping and non-nested by construction.
var queryPattern = regexp.MustCompile(`(?s)<query>(.*?)</query>`)

// ExtractionResult is the parsed output of one assistant turn.
type ExtractionResult struct {
	Explanation string   `json:"explanation"`
	Queries     []string `json:"queries"`
}

// Extract parses free-form model output into an explanation and the ordered
// list of delimited queries. It is total: any input yields a result.
// An opening tag with no closing tag before end of text contributes nothing.
func Extract(text string) ExtractionResult {
	firstOpen := strings.Index(text, openDelimiter)
	if firstOpen < 0 {
		return ExtractionResult{Explanation: strings.TrimSpace(text)}
	}

	result := ExtractionResult{
		Explanation: strings.TrimSpace(text[:firstOpen]),
	}
	for _, match := range queryPattern.FindAllStringSubmatch(text, -1) {
		result.Queries = append(result.Queries, strings.TrimSpace(match[1]))
	}
	return result
}
