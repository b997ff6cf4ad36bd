package flex

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

var ErrUnrecognizedShape = goerr.New("unrecognized list response shape")

// listRule extracts the list payload from one known response envelope.
type listRule struct {
	name string
	path []string
}

// listRules are tried in order; the first that yields a JSON array wins.
var listRules = []listRule{
	{name: "root-array"},
	{name: "data-array", path: []string{"data"}},
	{name: "data.items", path: []string{"data", "items"}},
	{name: "items", path: []string{"items"}},
	{name: "data.content", path: []string{"data", "content"}},
	{name: "content", path: []string{"content"}},
	{name: "results", path: []string{"results"}},
}

const ruleEmpty = "empty"

// normalizeList returns the array elements of body and the name of the rule that matched.
func normalizeList(body []byte) ([]json.RawMessage, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ruleEmpty, nil
	}

	for _, rule := range listRules {
		raw, ok := lookup(trimmed, rule.path)
		if !ok || !isArray(raw) {
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, rule.name, goerr.Wrap(err, "failed to decode list", goerr.V("rule", rule.name))
		}
		return items, rule.name, nil
	}

	return nil, "", goerr.Wrap(ErrUnrecognizedShape, "no rule matched", goerr.V("head", head(trimmed)))
}

func lookup(raw json.RawMessage, path []string) (json.RawMessage, bool) {
	cur := raw
	for _, key := range path {
		if len(cur) == 0 || cur[0] != '{' {
			return nil, false
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		cur = bytes.TrimSpace(next)
	}
	return cur, true
}

func isArray(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '['
}

func head(b []byte) string {
	const limit = 128
	if len(b) > limit {
		return string(b[:limit])
	}
	return string(b)
}
