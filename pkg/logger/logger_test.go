package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Debug().Msg("debug message")
	log.Info().Msg("info message")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn message")
	assert.Contains(t, buf.String(), "warn message")
}

func TestParseLevel_Default(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}

func TestComponent_TagsOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter("info", &buf), "queue")
	log.Info().Msg("worker started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "queue", entry["component"])
}
