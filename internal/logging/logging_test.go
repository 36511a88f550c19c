package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	require.NoError(t, setup(&buf, "warn", false))

	log.Info().Msg("hidden")
	log.Warn().Str("jobId", "abc").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "abc", entry["jobId"])
	assert.Equal(t, "subtitler", entry["service"])
}

func TestSetupUnknownLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	assert.Error(t, setup(&buf, "chatty", false))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
