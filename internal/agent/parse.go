package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
)

// InvalidJSONError carries the raw model output that could not be parsed.
type InvalidJSONError struct {
	Raw string
	Err error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("the agent returned a response that was not valid JSON. Raw response: '%s'", e.Raw)
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// ParseJSONResponse extracts the JSON document from accumulated model text.
// Fenced output (```json ... ```) is cut down to the outermost object.
// Comments and trailing commas are tolerated. Key order is preserved.
func ParseJSONResponse(text string) (json.RawMessage, error) {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		start := strings.Index(t, "{")
		end := strings.LastIndex(t, "}")
		if start >= 0 && end > start {
			t = t[start : end+1]
		}
	}

	if json.Valid([]byte(t)) {
		return json.RawMessage(t), nil
	}

	lenient := jsonc.ToJSON([]byte(t))
	if json.Valid(lenient) {
		return json.RawMessage(lenient), nil
	}

	var probe any
	err := json.Unmarshal([]byte(t), &probe)
	return nil, &InvalidJSONError{Raw: text, Err: err}
}
