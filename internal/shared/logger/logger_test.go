package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"transit-console/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("info", "json")
	var _ Logger = NewNopLogger()
}

func TestLogrusLogger_WithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput("debug", "json", &buf)

	ctx := context.WithValue(context.Background(), contextkeys.OperatorIDKey, "op-7")
	ctx = context.WithValue(ctx, contextkeys.RestoreIDKey, "r-1")
	log.WithContext(ctx).WithComponent("restore_engine").Info("restoring")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "op-7", line["operator_id"])
	assert.Equal(t, "r-1", line["restore_id"])
	assert.Equal(t, "restore_engine", line["component"])
	assert.Equal(t, "restoring", line["msg"])
}

func TestLogrusLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput("info", "json", &buf)
	log.WithError(errors.New("boom")).Warn("upload failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "warning", line["level"])
}

func TestNopLogger_Discards(t *testing.T) {
	log := NewNopLogger()
	log.WithFields(map[string]interface{}{"k": "v"}).Error("ignored")
}
