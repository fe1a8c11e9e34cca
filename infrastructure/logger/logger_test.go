package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerAddsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	GetLogger().WithField("platform", "youtube").Info("connected")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "connected", line["msg"])
	assert.Equal(t, "youtube", line["platform"])
	assert.Contains(t, line["function"], "TestGetLoggerAddsCallerFields")
	assert.Contains(t, line, "line")
}
