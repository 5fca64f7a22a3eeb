package tracksync

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/garmin-osm-sync/garmin"
	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/jrsteele09/garmin-osm-sync/ledger"
	"github.com/jrsteele09/garmin-osm-sync/osm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenProvider hands out destination access tokens.
type TokenProvider interface {
	EnsureAccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Orchestrator runs one sequential sync pass from the activity source to the destination.
type Orchestrator struct {
	tokens      TokenProvider
	source      garmin.Client
	uploader    osm.Uploader
	ledger      ledger.Repo
	downloadDir string
	newThrottle func(time.Duration) Throttle
	nowTime     func() time.Time
	traceURL    func(traceID string) string
}

type OrchestratorOption func(*Orchestrator)

// WithThrottle replaces the rate limiter used between activities (primarily for testing)
func WithThrottle(f func(time.Duration) Throttle) OrchestratorOption {
	return func(o *Orchestrator) {
		o.newThrottle = f
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.nowTime = nowFunc
	}
}

// WithTraceLinks logs the public page of each uploaded trace under the user's profile.
func WithTraceLinks(baseURL, username string) OrchestratorOption {
	return func(o *Orchestrator) {
		if username == "" {
			return
		}
		base := strings.TrimRight(baseURL, "/")
		o.traceURL = func(traceID string) string {
			return fmt.Sprintf("%s/user/%s/traces/%s", base, url.PathEscape(username), traceID)
		}
	}
}

func NewOrchestrator(tokens TokenProvider, source garmin.Client, uploader osm.Uploader, repo ledger.Repo, downloadDir string, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		tokens:      tokens,
		source:      source,
		uploader:    uploader,
		ledger:      repo,
		downloadDir: downloadDir,
		newThrottle: NewThrottle,
		nowTime:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one pass. The returned error is only set for run-fatal failures; per-activity
// failures are reported in the Summary.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	logger := log.Ctx(ctx)
	summary := Summary{}

	logger.Info().
		Str("mode", opts.Mode.String()).
		Bool("dry_run", opts.DryRun).
		Int("max_activities", opts.MaxActivities).
		Msg("Starting Garmin to OSM sync")

	if err := os.MkdirAll(o.downloadDir, 0o755); err != nil {
		return summary, fmt.Errorf("[tracksync Run] create download dir: %w", err)
	}

	accessToken, err := o.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to obtain OSM access token: %w", err)
	}

	processed, err := o.ledger.LoadProcessedIDs(ctx)
	if err != nil {
		logger.Err(err).Msg("Failed to load processed ids, continuing with an empty set")
		processed = map[string]struct{}{}
	}
	logger.Info().Int("count", len(processed)).Msg("Loaded processed ids")

	if err := o.source.Login(ctx); err != nil {
		return summary, fmt.Errorf("garmin login: %w", err)
	}
	activities, err := o.source.ListActivities(ctx, 0, opts.MaxActivities)
	if err != nil {
		return summary, fmt.Errorf("garmin activity list: %w", err)
	}
	summary.Fetched = len(activities)

	candidates := newActivities(activities, processed)
	summary.New = len(candidates)
	if len(candidates) == 0 {
		logger.Info().Msg("No new activities to process")
		return summary, nil
	}

	if opts.Mode == ModeBoundedSlow && len(candidates) > opts.SlowBatchSize {
		candidates = candidates[len(candidates)-opts.SlowBatchSize:]
		logger.Info().Int("batch", opts.SlowBatchSize).Msg("Slow mode: processing the oldest new activities only")
	}
	summary.Selected = len(candidates)

	throttle := o.newThrottle(opts.delay())
	for i := len(candidates) - 1; i >= 0; i-- {
		if err := throttle.Wait(ctx); err != nil {
			summary.Cancelled = true
			return summary, err
		}

		res, token, err := o.process(ctx, candidates[i], accessToken, opts.DryRun)
		accessToken = token
		summary.Results = append(summary.Results, res)
		if err != nil {
			return summary, err
		}
	}

	logger.Info().
		Int("uploaded", summary.Uploaded()).
		Int("dry_run", summary.DryRun()).
		Int("failed", summary.Failed()).
		Msg("Sync finished")
	return summary, nil
}

// newActivities keeps activities with an id that the ledger has not seen, in source order.
func newActivities(activities []garmin.Activity, processed map[string]struct{}) []garmin.Activity {
	var out []garmin.Activity
	for _, a := range activities {
		if a.ID == "" {
			continue
		}
		if _, done := processed[a.ID]; done {
			continue
		}
		out = append(out, a)
	}
	return out
}

// process handles one activity and returns the access token to use from now on. A non-nil
// error means the run must stop.
func (o *Orchestrator) process(ctx context.Context, a garmin.Activity, accessToken string, dryRun bool) (Result, string, error) {
	logger := log.Ctx(ctx).With().Str("activity_id", a.ID).Logger()
	ctx = logger.WithContext(ctx)

	res := Result{ActivityID: a.ID, Name: a.DisplayName()}
	gpxPath := filepath.Join(o.downloadDir, a.ID+".gpx")
	defer removeFile(&logger, gpxPath)

	logger.Info().Str("name", res.Name).Msg("Processing activity")

	gpx, err := o.source.DownloadGPX(ctx, a.ID)
	if err != nil {
		return o.failed(&logger, res, err, "Failed to download activity"), accessToken, nil
	}
	if err := os.WriteFile(gpxPath, gpx, 0o644); err != nil {
		return o.failed(&logger, res, err, "Failed to write GPX file"), accessToken, nil
	}

	meta := ledger.UploadMetadata{
		Name:        res.Name,
		Type:        a.Type(),
		StartTime:   a.StartTime(),
		Description: fmt.Sprintf("Garmin Activity: %s on %s", res.Name, a.StartTime()),
		Tags:        "garmin,sync," + a.Type(),
		Visibility:  osm.VisibilityDefault,
	}
	trace := osm.Trace{
		Path:        gpxPath,
		Description: meta.Description,
		Tags:        meta.Tags,
		Visibility:  meta.Visibility,
	}

	if dryRun {
		logger.Info().Str("path", gpxPath).Msg("Dry run: would upload")
		res.Outcome = OutcomeDryRun
		o.record(ctx, ledger.Entry{
			ActivityID: a.ID,
			UploadedAt: o.nowTime().UTC(),
			Status:     ledger.StatusDryRun,
			Metadata:   meta.Encode(),
		})
		return res, accessToken, nil
	}

	resp, err := o.uploader.Upload(ctx, accessToken, trace)
	res.Attempts = 1
	if apperrors.IsUnauthorized(err) {
		logger.Warn().Msg("Upload returned 401, refreshing token and retrying once")
		refreshed, rerr := o.tokens.ForceRefresh(ctx)
		if rerr != nil {
			res = o.failed(&logger, res, rerr, "Token refresh failed")
			return res, accessToken, fmt.Errorf("refresh after 401: %w", rerr)
		}
		accessToken = refreshed
		resp, err = o.uploader.Upload(ctx, accessToken, trace)
		res.Attempts = 2
	}
	if err != nil {
		return o.failed(&logger, res, err, "Failed to upload activity"), accessToken, nil
	}

	res.Outcome = OutcomeUploaded
	res.TrackID = resp.TraceID
	evt := logger.Info().Str("gpx_id", resp.TraceID)
	if o.traceURL != nil && resp.TraceID != "" {
		evt = evt.Str("trace_url", o.traceURL(resp.TraceID))
	}
	evt.Msg("Uploaded activity to OSM")

	trackID := resp.TraceID
	o.record(ctx, ledger.Entry{
		ActivityID:    a.ID,
		UploadedAt:    o.nowTime().UTC(),
		RemoteTrackID: &trackID,
		Status:        ledger.StatusUploaded,
		Metadata:      meta.Encode(),
	})
	return res, accessToken, nil
}

func (o *Orchestrator) failed(logger *zerolog.Logger, res Result, err error, msg string) Result {
	logger.Err(err).Msg(msg)
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}

// record writes the ledger entry. A failed write is logged and the run continues.
func (o *Orchestrator) record(ctx context.Context, e ledger.Entry) {
	if err := o.ledger.Upsert(ctx, e); err != nil {
		log.Ctx(ctx).Err(err).Str("status", string(e.Status)).Msg("Failed to record processed activity")
	}
}

func removeFile(logger *zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Err(err).Str("path", path).Msg("Failed to delete temporary file")
	}
}
