package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/garmin-osm-sync/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestInitJSONWithRunID(t *testing.T) {
	var buf bytes.Buffer
	prev, prevDefault := log.Logger, zerolog.DefaultContextLogger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.DefaultContextLogger = prevDefault
	})

	logging.Init(logging.Config{Level: "info", Format: "json", Output: &buf})

	ctx, runID := logging.WithRunID(context.Background())
	require.Len(t, runID, 8)

	log.Ctx(ctx).Info().Str("activity_id", "42").Msg("processed")
	log.Ctx(ctx).Debug().Msg("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "info", line["level"])
	require.Equal(t, "processed", line["message"])
	require.Equal(t, runID, line["run_id"])
	require.Equal(t, "42", line["activity_id"])
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	prev, prevDefault := log.Logger, zerolog.DefaultContextLogger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.DefaultContextLogger = prevDefault
	})

	logger := logging.Init(logging.Config{Level: "loud", Format: "json", Output: &buf})
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
