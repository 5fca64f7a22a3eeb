// Package logging configures the global zerolog logger used across the sync tool.
//
// Components log through the context logger so every line of a run carries its run id:
//
//	ctx, runID := logging.WithRunID(ctx)
//	log.Ctx(ctx).Info().Str("activity_id", id).Msg("Processing activity")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string
	// Format is json or console.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Init replaces the global zerolog logger and makes it the default context logger.
func Init(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger
}

// NewRunID returns a short id for correlating the log lines of one invocation.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// WithRunID attaches a logger carrying a fresh run id to ctx.
func WithRunID(ctx context.Context) (context.Context, string) {
	runID := NewRunID()
	logger := log.Ctx(ctx).With().Str("run_id", runID).Logger()
	return logger.WithContext(ctx), runID
}
