package automation

import (
	"encoding/json"
	"fmt"
	"strings"

	"basicsos.app/automation/internal/model"
)

// ChainAction is one validated entry of an automation's action chain.
type ChainAction struct {
	Index  int
	Type   string
	Config json.RawMessage
}

// ParseChain splits the authored chain into runnable actions and the entries
// excluded by validation. Each entry must be an object with a non-empty
// string "type" and an object "config". Whether the type is known is left to
// the registry so unknown types still produce a failed result. A chain that is
// not a JSON array is an error.
func ParseChain(raw json.RawMessage) ([]ChainAction, []model.ChainIssue, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("action chain is not a JSON array: %w", err)
	}

	var (
		actions []ChainAction
		issues  []model.ChainIssue
	)
	for i, entry := range entries {
		a, issue := parseEntry(i, entry)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		actions = append(actions, a)
	}
	return actions, issues, nil
}

func parseEntry(i int, entry json.RawMessage) (ChainAction, *model.ChainIssue) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return ChainAction{}, &model.ChainIssue{Index: i, Error: "entry must be an object"}
	}

	var actionType string
	rawType, ok := fields["type"]
	if !ok || json.Unmarshal(rawType, &actionType) != nil || strings.TrimSpace(actionType) == "" {
		return ChainAction{}, &model.ChainIssue{Index: i, Error: "type must be a non-empty string"}
	}

	config, ok := fields["config"]
	if !ok || !isObject(config) {
		return ChainAction{}, &model.ChainIssue{Index: i, Type: actionType, Error: "config must be an object"}
	}

	return ChainAction{Index: i, Type: actionType, Config: config}, nil
}

func isObject(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	return json.Unmarshal(raw, &m) == nil && m != nil
}
