package tracksync

import (
	"time"

	"github.com/jrsteele09/garmin-osm-sync/internal/config"
)

// Mode selects how many candidates a run processes and how fast.
type Mode int

const (
	// ModeNormal processes every new activity with the normal delay.
	ModeNormal Mode = iota
	// ModeBoundedSlow processes only the oldest few new activities with a longer delay.
	ModeBoundedSlow
)

func (m Mode) String() string {
	if m == ModeBoundedSlow {
		return "bounded-slow"
	}
	return "normal"
}

const (
	DefaultMaxActivities = 10
	DefaultDelay         = time.Second
	DefaultSlowDelay     = 10 * time.Second
	DefaultSlowBatchSize = 5
)

type Options struct {
	MaxActivities int
	Mode          Mode
	DryRun        bool
	Delay         time.Duration
	SlowDelay     time.Duration
	SlowBatchSize int
}

// OptionsFromConfig builds run options from the sync configuration.
func OptionsFromConfig(cfg config.SyncConfig) Options {
	mode := ModeNormal
	if cfg.GetSlowMode() {
		mode = ModeBoundedSlow
	}
	return Options{
		MaxActivities: cfg.GetMaxActivities(),
		Mode:          mode,
		DryRun:        cfg.GetDryRun(),
		Delay:         cfg.GetUploadDelay(),
		SlowDelay:     cfg.GetSlowUploadDelay(),
		SlowBatchSize: cfg.GetSlowBatchSize(),
	}
}

func (o Options) withDefaults() Options {
	if o.MaxActivities <= 0 {
		o.MaxActivities = DefaultMaxActivities
	}
	if o.Delay < 0 {
		o.Delay = DefaultDelay
	}
	if o.SlowDelay < 0 {
		o.SlowDelay = DefaultSlowDelay
	}
	if o.SlowBatchSize <= 0 {
		o.SlowBatchSize = DefaultSlowBatchSize
	}
	return o
}

func (o Options) delay() time.Duration {
	if o.Mode == ModeBoundedSlow {
		return o.SlowDelay
	}
	return o.Delay
}
