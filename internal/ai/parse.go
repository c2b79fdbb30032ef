package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"business-assistant/internal/core"
)

// ErrBadPayload means the model output did not contain a parsable, valid
// IntentResult even after normalization. The caller must fail closed and
// leave the conversation state untouched.
var ErrBadPayload = errors.New("oracle payload is not a valid intent result")

// extractJSON strips markdown code fences and any prose around the outermost
// JSON object. Models occasionally wrap structured output in ```json fences
// despite instructions not to.
func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}

// DecodeIntentResult parses raw model output into a validated IntentResult.
// The intent must belong to the closed IntentKind set; anything else is
// rejected so untyped data never crosses into the dialogue layer.
func DecodeIntentResult(raw string) (*core.IntentResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrBadPayload)
	}

	var result core.IntentResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	result.Intent = core.IntentKind(strings.ToUpper(strings.TrimSpace(string(result.Intent))))
	if !core.KnownIntents[result.Intent] {
		return nil, fmt.Errorf("%w: unknown intent %q", ErrBadPayload, result.Intent)
	}

	result.Message = strings.TrimSpace(result.Message)
	result.Data.ClientName = strings.TrimSpace(result.Data.ClientName)
	result.Data.Service = strings.TrimSpace(result.Data.Service)
	result.Data.PaymentMethod = strings.TrimSpace(result.Data.PaymentMethod)
	result.Data.Status = strings.ToLower(strings.TrimSpace(result.Data.Status))

	return &result, nil
}
