package a2a

import (
	"encoding/json"
	"strings"
)

// extractStrategy attempts to pull response text out of a decoded result.
// Strategies are tried in priority order; the first non-empty text wins.
type extractStrategy func(result any) (string, bool)

// extractStrategies in priority order. The order matters: the parts array is
// the primary agent response shape, the rest are fallbacks seen in the wild.
var extractStrategies = []extractStrategy{
	extractFromParts,
	extractFromString,
	extractFromKnownFields,
	extractFromArtifacts,
}

// knownTextFields are alternate result fields that may carry the response,
// either as a plain string or as an object with a text field.
var knownTextFields = []string{"response", "content", "data", "text", "message", "output"}

// ExtractText extracts response text from a raw JSON-RPC result by trying
// each extraction strategy in priority order.
func ExtractText(raw json.RawMessage) (string, bool) {
	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", false
	}
	for _, strategy := range extractStrategies {
		if text, ok := strategy(result); ok {
			return text, true
		}
	}
	return "", false
}

// extractFromParts handles {"parts": [{"kind": "text", "text": ...}, ...]}.
func extractFromParts(result any) (string, bool) {
	obj, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	return textFromParts(obj["parts"])
}

// extractFromString handles a bare string result.
func extractFromString(result any) (string, bool) {
	s, ok := result.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// extractFromKnownFields probes well-known alternate field names, each
// holding either a non-blank string or an object with a text field.
func extractFromKnownFields(result any) (string, bool) {
	obj, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	for _, field := range knownTextFields {
		value, present := obj[field]
		if !present {
			continue
		}
		if s, ok := nonBlankString(value); ok {
			return s, true
		}
		if nested, ok := value.(map[string]any); ok {
			if s, ok := nonBlankString(nested["text"]); ok {
				return s, true
			}
		}
	}
	return "", false
}

// extractFromArtifacts handles the standard A2A artifacts fallback: a list
// of artifacts whose parts/content/text/data members carry the text either
// directly or as a parts array.
func extractFromArtifacts(result any) (string, bool) {
	obj, ok := result.(map[string]any)
	if !ok {
		return "", false
	}
	artifacts, ok := obj["artifacts"].([]any)
	if !ok {
		return "", false
	}
	for _, item := range artifacts {
		artifact, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"parts", "content", "text", "data"} {
			value, present := artifact[key]
			if !present {
				continue
			}
			if s, ok := nonBlankString(value); ok {
				return s, true
			}
			if s, ok := textFromParts(value); ok {
				return s, true
			}
		}
	}
	return "", false
}

// textFromParts selects the first text-typed part with non-empty text.
func textFromParts(value any) (string, bool) {
	parts, ok := value.([]any)
	if !ok {
		return "", false
	}
	for _, item := range parts {
		part, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if part["kind"] != "text" {
			continue
		}
		if text, ok := part["text"].(string); ok && text != "" {
			return text, true
		}
	}
	return "", false
}

func nonBlankString(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
