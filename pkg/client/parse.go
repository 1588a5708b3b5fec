package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// fallback is returned when the model answer cannot be used.
func fallback(reason string, tags ...string) *types.Suggestion {
	return &types.Suggestion{
		Preset:     "",
		Confidence: 0,
		Reason:     reason,
		Tags:       append([]string{"fallback"}, tags...),
	}
}

// ParseSuggestion parses a model answer into a suggestion. Answers that are
// not JSON produce a zero-confidence fallback instead of an error.
func ParseSuggestion(raw string) *types.Suggestion {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return fallback("Model returned non-JSON response", "non-json")
	}

	var result types.Suggestion
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback("Failed to parse model response", "parse-error")
	}
	result.Preset = strings.ToLower(strings.TrimSpace(result.Preset))
	return &result
}

// SanitizeModelJSON removes code fences, comments and trailing commas, and
// keeps only the outermost {...} of a model answer.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
