package uhfmac

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrftimeLayout(t *testing.T) {
	for pattern, want := range map[string]string{
		"%Y-%m-%d %H:%M:%S": "2006-01-02 15:04:05",
		"%H:%M":             "15:04",
		"%b %d":             "Jan 02",
		"[%Y%m%d]":          "[20060102]",
	} {
		var got, err = strftimeLayout(pattern)
		require.NoError(t, err, pattern)
		assert.Equal(t, want, got, pattern)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer

	var logger, err = NewLogger(LogConfig{Level: "warn"}, &buf) //nolint:exhaustruct
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud", "mpdus", 3)

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "mpdus=3")
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	var logger, err = NewLogger(LogConfig{Format: "json", Level: "debug"}, &buf) //nolint:exhaustruct
	require.NoError(t, err)

	logger.WithPrefix("mac").Debug("Packet encoded", "length", 300)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Packet encoded", record["msg"])
	assert.Equal(t, "mac", record["prefix"])
	assert.InDelta(t, 300, record["length"], 0)
}

func TestNewLoggerRejects(t *testing.T) {
	var _, err = NewLogger(LogConfig{Level: "chatty"}, nil) //nolint:exhaustruct
	require.ErrorIs(t, err, ErrLogConfig)

	_, err = NewLogger(LogConfig{Format: "xml"}, nil) //nolint:exhaustruct
	require.ErrorIs(t, err, ErrLogConfig)
}
