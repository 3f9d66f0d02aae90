package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dedbg/dedbg/internal/value"
)

func sampleValues() []value.ClientValue {
	return []value.ClientValue{
		{Name: "count", TypeName: "int", Kind: value.KindInt, Value: 3},
		{Name: "rows", TypeName: "table", Kind: value.KindTable, Value: []value.ClientValue{
			{Name: "$1", TypeName: "string", Kind: value.KindString, Value: "a"},
			{Name: "$2", TypeName: "string", Kind: value.KindString, Value: "b"},
		}},
	}
}

func TestNDJSONWriteValues(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)
	require.NoError(t, w.WriteValues(sampleValues()))

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "result", event["type"])

	values := event["values"].([]any)
	require.Len(t, values, 2)

	first := values[0].(map[string]any)
	assert.Equal(t, "count", first["name"])
	assert.Equal(t, float64(3), first["value"])

	second := values[1].(map[string]any)
	assert.Equal(t, "rows", second["name"])
	nested := second["values"].([]any)
	assert.Len(t, nested, 2)
	_, hasScalar := second["value"]
	assert.False(t, hasScalar, "table values carry children, not a scalar")
}

func TestNDJSONWriteError(t *testing.T) {
	var buf bytes.Buffer
	NewNDJSONWriter(&buf).WriteError("NOT_CONNECTED", "no open connection", "check the server address")

	var event ErrorEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "error", event.Type)
	assert.Equal(t, "NOT_CONNECTED", event.Code)
	assert.Equal(t, "check the server address", event.Hint)
}

func TestNDJSONOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)
	require.NoError(t, w.Write(NewLifecycleEvent("established", nil)))
	require.NoError(t, w.Write(PathEvent{Type: "path", Old: "/", New: "/app"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		var obj map[string]any
		assert.NoError(t, json.Unmarshal([]byte(line), &obj))
	}
}

func TestRenderTableFlattensNestedValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, sampleValues()))

	out := buf.String()
	assert.Contains(t, out, "count")
	assert.Contains(t, out, "rows.$1")
	assert.Contains(t, out, "rows.$2")
}

func TestRenderTextIndentsTables(t *testing.T) {
	var buf bytes.Buffer
	RenderText(&buf, sampleValues())

	out := buf.String()
	assert.Contains(t, out, "count (int) = 3")
	assert.Contains(t, out, "rows (table):")
	assert.Contains(t, out, "  $1 (string) = a")
}
