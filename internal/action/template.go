package action

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Interpolate replaces {{dotted.path}} placeholders with values from data.
// Unresolved paths become empty strings; non-string values are JSON encoded.
func Interpolate(tmpl string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := lookup(data, path)
		if !ok || v == nil {
			return ""
		}
		switch val := v.(type) {
		case string:
			return val
		case json.Number:
			return val.String()
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return ""
			}
			return string(b)
		}
	})
}

func lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func decodeData(payload json.RawMessage) map[string]any {
	data := map[string]any{}
	if len(payload) == 0 {
		return data
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return map[string]any{}
	}
	return data
}
