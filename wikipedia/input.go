package wikipedia

import (
	"encoding/json"
	"fmt"
)

// Input is the object form of a query.
type Input struct {
	Input string `json:"input"`
}

// queryFromInput accepts a bare string or an object carrying an "input"
// string, in Go or JSON form.
func queryFromInput(v any) (string, error) {
	switch in := v.(type) {
	case string:
		return in, nil
	case Input:
		return in.Input, nil
	case *Input:
		if in == nil {
			return "", invalidInput("nil input")
		}
		return in.Input, nil
	case map[string]string:
		s, ok := in["input"]
		if !ok {
			return "", invalidInput("expected 'input' field")
		}
		return s, nil
	case map[string]any:
		s, ok := in["input"].(string)
		if !ok {
			return "", invalidInput("expected 'input' field")
		}
		return s, nil
	case json.RawMessage:
		return queryFromJSON(in)
	case []byte:
		return queryFromJSON(in)
	}
	return "", invalidInput(fmt.Sprintf("input must be a string or object with 'input' field, got %T", v))
}

func queryFromJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", &Error{Kind: ErrInvalidInput, Message: "input is not valid JSON", Cause: err}
	}
	switch v.(type) {
	case string, map[string]any:
		return queryFromInput(v)
	}
	return "", invalidInput(fmt.Sprintf("input must be a string or object with 'input' field, got JSON %T", v))
}

func invalidInput(msg string) error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}
