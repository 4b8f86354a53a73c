package audit_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pilab-dev/pagepost/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := audit.New(&buf)

	l.Log(audit.ActionPublish, "12345", "IMAGE", false, errors.New("boom"))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["log"])
	assert.Equal(t, "publish", line["action"])
	assert.Equal(t, "12345", line["target"])
	assert.Equal(t, "IMAGE", line["details"])
	assert.Equal(t, false, line["success"])
	assert.Equal(t, "boom", line["error"])
	assert.NotEmpty(t, line["timestamp"])
}

func TestLogger_NilAndNop(t *testing.T) {
	var l *audit.Logger
	assert.NotPanics(t, func() { l.Log(audit.ActionCallback, "", "", true, nil) })
	assert.NotPanics(t, func() { audit.Nop().Log(audit.ActionCallback, "", "", true, nil) })
}
