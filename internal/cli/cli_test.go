package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dedbg/dedbg/internal/config"
	"github.com/dedbg/dedbg/internal/pending"
	"github.com/dedbg/dedbg/internal/value"
	"github.com/dedbg/dedbg/internal/wire"
)

// testGlobals creates a Globals struct with captured stdout/stderr
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Server:  "ws://127.0.0.1:1",
		Format:  format,
		Timeout: 2 * time.Second,
		Retry:   10 * time.Millisecond,
		Stdout:  stdout,
		Stderr:  stderr,
		Config:  config.Default(),
		logger:  newSessionLogger(false, ""),
	}, stdout, stderr
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Current Configuration:")
		assert.Contains(t, output, "format:")
		assert.Contains(t, output, "server:")
		assert.Contains(t, output, "Defaults:")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config", result["type"])
		assert.Contains(t, result, "format")
		assert.Contains(t, result, "defaults")
	})
}

func TestConfigPathCmd_Run(t *testing.T) {
	t.Run("outputs path info in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.True(t, len(output) > 0)
	})

	t.Run("outputs path in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)
		assert.Equal(t, "config_path", result["type"])
	})
}

// --- Error Emission Tests ---

func TestOutputErrorCommon(t *testing.T) {
	t.Run("ndjson errors are machine readable", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")

		err := outputErrorCommon(globals, "NOT_CONNECTED", "no open connection", "check the address")
		require.Error(t, err)

		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &event))
		assert.Equal(t, "error", event["type"])
		assert.Equal(t, "NOT_CONNECTED", event["code"])
		assert.Equal(t, "check the address", event["hint"])
	})

	t.Run("text errors go to stderr with hint", func(t *testing.T) {
		globals, stdout, stderr := testGlobals("text")

		err := outputErrorCommon(globals, "SEND_FAILED", "boom", "try again")
		require.Error(t, err)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "Error [SEND_FAILED]: boom")
		assert.Contains(t, stderr.String(), "try again")
	})
}

func TestEmitSendErrorMapsCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"remote fault", &wire.RemoteFault{Message: "m", Type: "T"}, "REMOTE_FAULT"},
		{"cancelled", pending.ErrCancelled, "CANCELLED"},
		{"generic", errors.New("weird"), "SEND_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			globals, stdout, _ := testGlobals("ndjson")
			emitSendError(globals, tc.err)

			var event map[string]interface{}
			require.NoError(t, json.Unmarshal(stdout.Bytes(), &event))
			assert.Equal(t, tc.code, event["code"])
		})
	}
}

// --- Output Format Tests ---

func TestEmitValuesFormats(t *testing.T) {
	vals := []value.ClientValue{
		{Name: "$0", TypeName: "int", Kind: value.KindInt, Value: 2},
	}

	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		require.NoError(t, emitValues(globals, vals))

		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &event))
		assert.Equal(t, "result", event["type"])
	})

	t.Run("table", func(t *testing.T) {
		globals, stdout, _ := testGlobals("table")
		require.NoError(t, emitValues(globals, vals))
		assert.Contains(t, stdout.String(), "$0")
	})

	t.Run("text", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, emitValues(globals, vals))
		assert.Contains(t, stdout.String(), "$0 (int) = 2")
	})
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDurationOr("5s", time.Minute))
	assert.Equal(t, time.Minute, parseDurationOr("garbage", time.Minute))
	assert.Equal(t, time.Minute, parseDurationOr("-1s", time.Minute))
}

func TestNewGlobalsWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.Node = "/app"
	c := &CLI{
		Server:  "http://debug.local:9001",
		Format:  "ndjson",
		Timeout: "250ms",
		Verbose: false,
	}

	g := NewGlobalsWithConfig(c, cfg)
	assert.Equal(t, "http://debug.local:9001", g.Server)
	assert.Equal(t, "ndjson", g.Format)
	assert.Equal(t, 250*time.Millisecond, g.Timeout)
	assert.Equal(t, "/app", g.Node)
}
