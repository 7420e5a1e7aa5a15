package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ge, ok := As(err)
	if !ok {
		ge = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ge.Message))
	if ge.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ge.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ge.Code))

	return sb.String()
}

// Payload is the JSON representation of an error used by the HTTP API
// and the MCP tools.
type Payload struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// ToPayload converts any error into a Payload. Plain errors become
// ERR_501_INTERNAL.
func ToPayload(err error) Payload {
	ge, ok := As(err)
	if !ok {
		ge = Wrap(ErrCodeInternal, err)
	}

	p := Payload{
		Code:       ge.Code,
		Message:    ge.Message,
		Category:   string(ge.Category),
		Severity:   string(ge.Severity),
		Details:    ge.Details,
		Suggestion: ge.Suggestion,
		Retryable:  ge.Retryable,
	}
	if ge.Cause != nil {
		p.Cause = ge.Cause.Error()
	}
	return p
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(ToPayload(err))
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ge, ok := As(err)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ge.Code,
		"message":    ge.Message,
		"category":   string(ge.Category),
		"severity":   string(ge.Severity),
		"retryable":  ge.Retryable,
	}
	if ge.Cause != nil {
		result["cause"] = ge.Cause.Error()
	}
	if ge.Suggestion != "" {
		result["suggestion"] = ge.Suggestion
	}
	for k, v := range ge.Details {
		result["detail_"+k] = v
	}

	return result
}
