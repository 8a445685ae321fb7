package executor

import (
	"encoding/json"
	"fmt"

	"github.com/haricheung/assignment-helper/internal/llm"
	"github.com/haricheung/assignment-helper/internal/types"
)

// rawResult mirrors the Executor reply. Pointers tell an absent key from an
// empty string; Action stays raw so an absent key and null can be told apart.
type rawResult struct {
	Action   json.RawMessage `json:"action"`
	Filename *string `json:"filename"`
	Content  *string `json:"content"`
}

// ParseResult decodes an Executor reply into one of the types.Action variants.
// Fences and <think> blocks are stripped only when raw does not decode as-is.
//
// Expectations:
//   - Returns types.GenerateFile with filename and content for "Generate_File"
//   - Leaves Filename and Content empty when the keys are absent
//   - Returns types.NoOp for "NoOp"
//   - Returns types.NoOp when the "action" key is missing
//   - Returns types.Unknown{Action: "null"} when "action" is an explicit null
//   - Returns types.Unknown carrying the literal string for any other action
//   - Returns *types.ParseFailure (stage executor) for invalid JSON or non-string fields
func ParseResult(raw string) (types.Action, error) {
	var r rawResult
	if err := llm.DecodeObject(raw, &r); err != nil {
		return nil, &types.ParseFailure{Stage: types.PhaseExecutor, Raw: raw, Err: err}
	}
	if r.Action == nil {
		return types.NoOp{}, nil
	}
	if string(r.Action) == "null" {
		return types.Unknown{Action: "null"}, nil
	}
	var action string
	if err := json.Unmarshal(r.Action, &action); err != nil {
		return nil, &types.ParseFailure{Stage: types.PhaseExecutor, Raw: raw, Err: fmt.Errorf("action: %w", err)}
	}
	switch action {
	case types.ActionGenerateFile:
		a := types.GenerateFile{}
		if r.Filename != nil {
			a.Filename = *r.Filename
		}
		if r.Content != nil {
			a.Content = *r.Content
		}
		return a, nil
	case types.ActionNoOp:
		return types.NoOp{}, nil
	default:
		return types.Unknown{Action: action}, nil
	}
}
