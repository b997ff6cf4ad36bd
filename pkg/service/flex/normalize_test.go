package flex

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRule string
		wantLen  int
		wantErr  error
	}{
		{name: "root array", body: `[{"a":1},{"a":2}]`, wantRule: "root-array", wantLen: 2},
		{name: "data array", body: `{"data":[{"a":1}]}`, wantRule: "data-array", wantLen: 1},
		{name: "data items", body: `{"data":{"items":[{},{},{}]}}`, wantRule: "data.items", wantLen: 3},
		{name: "items", body: `{"items":[],"total":0}`, wantRule: "items", wantLen: 0},
		{name: "data content", body: `{"data":{"content":[{}]}}`, wantRule: "data.content", wantLen: 1},
		{name: "content", body: `{"content":[{}],"page":1}`, wantRule: "content", wantLen: 1},
		{name: "results", body: `{"results":[{},{}]}`, wantRule: "results", wantLen: 2},
		{name: "data array wins over items", body: `{"data":[{}],"items":[{},{}]}`, wantRule: "data-array", wantLen: 1},
		{name: "empty body", body: "  ", wantRule: "empty", wantLen: 0},
		{name: "null", body: "null", wantRule: "empty", wantLen: 0},
		{name: "unknown object", body: `{"payload":[{}]}`, wantErr: ErrUnrecognizedShape},
		{name: "scalar", body: `"ok"`, wantErr: ErrUnrecognizedShape},
		{name: "data is object without list", body: `{"data":{"count":3}}`, wantErr: ErrUnrecognizedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, rule, err := normalizeList([]byte(tt.body))
			if tt.wantErr != nil {
				gt.Error(t, err)
				gt.Bool(t, errors.Is(err, tt.wantErr)).True()
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, rule).Equal(tt.wantRule)
			gt.Array(t, items).Length(tt.wantLen)
		})
	}
}
