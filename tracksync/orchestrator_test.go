package tracksync_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/garmin-osm-sync/garmin"
	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/jrsteele09/garmin-osm-sync/ledger"
	ledgerfakerepo "github.com/jrsteele09/garmin-osm-sync/ledger/repofake"
	"github.com/jrsteele09/garmin-osm-sync/osm"
	"github.com/jrsteele09/garmin-osm-sync/tracksync"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeTokens struct {
	access     string
	refreshed  string
	ensureErr  error
	refreshErr error
	refreshes  int
}

func (f *fakeTokens) EnsureAccessToken(context.Context) (string, error) {
	return f.access, f.ensureErr
}

func (f *fakeTokens) ForceRefresh(context.Context) (string, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshed, nil
}

type fakeGarmin struct {
	activities  []garmin.Activity
	loginErr    error
	listErr     error
	downloadErr map[string]error
	logins      int
	lastLimit   int
	downloads   []string
}

func (f *fakeGarmin) Login(context.Context) error {
	f.logins++
	return f.loginErr
}

func (f *fakeGarmin) ListActivities(_ context.Context, _, limit int) ([]garmin.Activity, error) {
	f.lastLimit = limit
	return f.activities, f.listErr
}

func (f *fakeGarmin) DownloadGPX(_ context.Context, id string) ([]byte, error) {
	f.downloads = append(f.downloads, id)
	if err := f.downloadErr[id]; err != nil {
		return nil, err
	}
	return []byte("<gpx id=\"" + id + "\"/>"), nil
}

type uploadCall struct {
	token      string
	trace      osm.Trace
	fileExists bool
}

// fakeUploader replies from a per-activity script of errors; an exhausted script succeeds.
type fakeUploader struct {
	lock    sync.Mutex
	calls   []uploadCall
	scripts map[string][]error
}

func (f *fakeUploader) Upload(_ context.Context, accessToken string, trace osm.Trace) (osm.UploadResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	_, statErr := os.Stat(trace.Path)
	f.calls = append(f.calls, uploadCall{token: accessToken, trace: trace, fileExists: statErr == nil})

	id := filepath.Base(trace.Path)
	id = id[:len(id)-len(".gpx")]
	if script := f.scripts[id]; len(script) > 0 {
		f.scripts[id] = script[1:]
		if script[0] != nil {
			return osm.UploadResponse{}, script[0]
		}
	}
	return osm.UploadResponse{StatusCode: 200, TraceID: "trace-" + id}, nil
}

func (f *fakeUploader) uploadedIDs() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	ids := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		base := filepath.Base(c.trace.Path)
		ids = append(ids, base[:len(base)-len(".gpx")])
	}
	return ids
}

type recordingThrottle struct {
	intervals []time.Duration
	waits     int
	cancelAt  int
}

func (r *recordingThrottle) factory(d time.Duration) tracksync.Throttle {
	r.intervals = append(r.intervals, d)
	return r
}

func (r *recordingThrottle) Wait(ctx context.Context) error {
	r.waits++
	if r.cancelAt > 0 && r.waits >= r.cancelAt {
		return context.Canceled
	}
	return ctx.Err()
}

type fixture struct {
	tokens   *fakeTokens
	source   *fakeGarmin
	uploader *fakeUploader
	ledger   *ledgerfakerepo.FakeLedgerRepo
	throttle *recordingThrottle
	dir      string
	orch     *tracksync.Orchestrator
}

func newFixture(t *testing.T, activities []garmin.Activity, processed ...string) *fixture {
	t.Helper()
	f := &fixture{
		tokens:   &fakeTokens{access: "access-1", refreshed: "access-2"},
		source:   &fakeGarmin{activities: activities, downloadErr: map[string]error{}},
		uploader: &fakeUploader{scripts: map[string][]error{}},
		ledger:   ledgerfakerepo.NewFakeLedgerRepo(processed...),
		throttle: &recordingThrottle{},
		dir:      filepath.Join(t.TempDir(), "downloads"),
	}
	f.orch = tracksync.NewOrchestrator(f.tokens, f.source, f.uploader, f.ledger, f.dir,
		tracksync.WithThrottle(f.throttle.factory),
		tracksync.WithNowTime(func() time.Time { return fixedNow }),
	)
	return f
}

func activity(id string) garmin.Activity {
	return garmin.Activity{ID: id, Name: "Run " + id, TypeKey: "running", StartTimeLocal: "2024-05-0" + id + " 07:00:00"}
}

// newestFirst returns activities with ids n..1, as the provider lists them.
func newestFirst(n int) []garmin.Activity {
	var out []garmin.Activity
	for i := n; i >= 1; i-- {
		out = append(out, activity(fmt.Sprint(i)))
	}
	return out
}

func defaultOptions() tracksync.Options {
	return tracksync.Options{MaxActivities: 10, Delay: time.Second, SlowDelay: 10 * time.Second, SlowBatchSize: 5}
}

func requireDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRun_UploadsOldestFirst(t *testing.T) {
	f := newFixture(t, []garmin.Activity{activity("3"), activity("2"), activity("1")})

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Equal(t, []string{"1", "2", "3"}, f.uploader.uploadedIDs())
	require.Equal(t, 3, summary.Fetched)
	require.Equal(t, 3, summary.New)
	require.Equal(t, 3, summary.Uploaded())
	require.Equal(t, 0, summary.Failed())
	require.Equal(t, 10, f.source.lastLimit)
	require.Equal(t, []time.Duration{time.Second}, f.throttle.intervals)
	require.Equal(t, 3, f.throttle.waits)

	writes := f.ledger.Writes()
	require.Len(t, writes, 3)
	for i, id := range []string{"1", "2", "3"} {
		assert.Equal(t, id, writes[i].ActivityID)
		assert.Equal(t, ledger.StatusUploaded, writes[i].Status)
		assert.Equal(t, "trace-"+id, *writes[i].RemoteTrackID)
		assert.Equal(t, fixedNow, writes[i].UploadedAt)
	}

	var meta ledger.UploadMetadata
	require.NoError(t, json.Unmarshal([]byte(writes[0].Metadata), &meta))
	assert.Equal(t, ledger.UploadMetadata{
		Name:        "Run 1",
		Type:        "running",
		StartTime:   "2024-05-01 07:00:00",
		Description: "Garmin Activity: Run 1 on 2024-05-01 07:00:00",
		Tags:        "garmin,sync,running",
		Visibility:  "identifiable",
	}, meta)

	call := f.uploader.calls[0]
	assert.Equal(t, "access-1", call.token)
	assert.True(t, call.fileExists)
	assert.Equal(t, "Garmin Activity: Run 1 on 2024-05-01 07:00:00", call.trace.Description)
	assert.Equal(t, "garmin,sync,running", call.trace.Tags)
	assert.Equal(t, "identifiable", call.trace.Visibility)

	requireDirEmpty(t, f.dir)
}

func TestRun_IsIdempotent(t *testing.T) {
	f := newFixture(t, newestFirst(3))

	_, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Len(t, f.uploader.calls, 3)

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Len(t, f.uploader.calls, 3, "second run uploads nothing")
	require.Equal(t, 0, summary.New)
	require.Empty(t, summary.Results)
}

func TestRun_SkipsProcessedAndIDLess(t *testing.T) {
	activities := append(newestFirst(3), garmin.Activity{Name: "no id"})
	f := newFixture(t, activities, "2")

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3"}, f.uploader.uploadedIDs())
	require.Equal(t, 2, summary.New)
}

func TestRun_DefaultsForMissingFields(t *testing.T) {
	f := newFixture(t, []garmin.Activity{{ID: "77"}})

	_, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	trace := f.uploader.calls[0].trace
	require.Equal(t, "Garmin Activity: Garmin Activity 77 on Unknown", trace.Description)
	require.Equal(t, "garmin,sync,unknown", trace.Tags)
}

func TestRun_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := newFixture(t, newestFirst(2))
	f.uploader.scripts["1"] = []error{&apperrors.UploadError{StatusCode: 401, Body: "expired"}}

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Equal(t, 1, f.tokens.refreshes)
	require.Equal(t, []string{"1", "1", "2"}, f.uploader.uploadedIDs())
	require.Equal(t, "access-1", f.uploader.calls[0].token)
	require.Equal(t, "access-2", f.uploader.calls[1].token)
	require.Equal(t, "access-2", f.uploader.calls[2].token, "refreshed token is kept for later activities")

	require.Equal(t, 2, summary.Results[0].Attempts)
	require.Equal(t, tracksync.OutcomeUploaded, summary.Results[0].Outcome)

	writes := f.ledger.Writes()
	require.Len(t, writes, 2)
	require.Equal(t, "1", writes[0].ActivityID)
}

func TestRun_SecondUnauthorizedFailsActivity(t *testing.T) {
	f := newFixture(t, newestFirst(2))
	unauthorized := &apperrors.UploadError{StatusCode: 401}
	f.uploader.scripts["1"] = []error{unauthorized, unauthorized, unauthorized}

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Equal(t, []string{"1", "1", "2"}, f.uploader.uploadedIDs())
	require.Equal(t, 1, f.tokens.refreshes)
	require.Equal(t, tracksync.OutcomeFailed, summary.Results[0].Outcome)
	require.True(t, apperrors.IsUnauthorized(summary.Results[0].Err))
	require.Equal(t, tracksync.OutcomeUploaded, summary.Results[1].Outcome)

	_, err = f.ledger.Get(context.Background(), "1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	requireDirEmpty(t, f.dir)
}

func TestRun_RefreshFailureIsFatal(t *testing.T) {
	f := newFixture(t, newestFirst(2))
	f.uploader.scripts["1"] = []error{&apperrors.UploadError{StatusCode: 401}}
	f.tokens.refreshErr = &apperrors.AuthorizationError{Stage: "refresh", Err: apperrors.ErrTokenExchange}

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.ErrorIs(t, err, apperrors.ErrTokenExchange)
	require.Equal(t, []string{"1"}, f.uploader.uploadedIDs())
	require.Len(t, summary.Results, 1)
	require.Equal(t, tracksync.OutcomeFailed, summary.Results[0].Outcome)
	require.Empty(t, f.ledger.Writes())
	requireDirEmpty(t, f.dir)
}

func TestRun_RejectedUploadContinues(t *testing.T) {
	f := newFixture(t, newestFirst(3))
	f.uploader.scripts["2"] = []error{&apperrors.UploadError{StatusCode: 400, Body: "bad gpx"}}

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, f.uploader.uploadedIDs())
	require.Equal(t, 0, f.tokens.refreshes)
	require.Equal(t, 2, summary.Uploaded())
	require.Equal(t, 1, summary.Failed())
	require.Len(t, f.ledger.Writes(), 2)
	requireDirEmpty(t, f.dir)
}

func TestRun_DownloadFailureContinues(t *testing.T) {
	f := newFixture(t, newestFirst(2))
	f.source.downloadErr["1"] = apperrors.ErrProviderConnection

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, f.uploader.uploadedIDs())
	require.Equal(t, tracksync.OutcomeFailed, summary.Results[0].Outcome)
	require.ErrorIs(t, summary.Results[0].Err, apperrors.ErrProviderConnection)
}

func TestRun_BoundedSlowProcessesOldestBatch(t *testing.T) {
	f := newFixture(t, newestFirst(8))
	opts := defaultOptions()
	opts.Mode = tracksync.ModeBoundedSlow

	summary, err := f.orch.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Equal(t, []string{"1", "2", "3", "4", "5"}, f.uploader.uploadedIDs())
	require.Equal(t, 8, summary.New)
	require.Equal(t, 5, summary.Selected)
	require.Equal(t, []time.Duration{10 * time.Second}, f.throttle.intervals)
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t, newestFirst(2))
	opts := defaultOptions()
	opts.DryRun = true

	summary, err := f.orch.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Empty(t, f.uploader.calls)
	require.Equal(t, []string{"1", "2"}, f.source.downloads)
	require.Equal(t, 2, summary.DryRun())

	writes := f.ledger.Writes()
	require.Len(t, writes, 2)
	for _, w := range writes {
		require.Equal(t, ledger.StatusDryRun, w.Status)
		require.Nil(t, w.RemoteTrackID)
	}
	requireDirEmpty(t, f.dir)
}

func TestRun_LedgerLoadFailureDegrades(t *testing.T) {
	f := newFixture(t, newestFirst(1))
	f.ledger.FailLoads(fmt.Errorf("database is locked"))

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Uploaded())
}

func TestRun_LedgerWriteFailureIsLogged(t *testing.T) {
	f := newFixture(t, newestFirst(2))
	f.ledger.FailUpserts(fmt.Errorf("disk full"))

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Uploaded())
}

func TestRun_FatalErrors(t *testing.T) {
	t.Run("token", func(t *testing.T) {
		f := newFixture(t, newestFirst(1))
		f.tokens.ensureErr = &apperrors.AuthorizationError{Stage: "authorize", Err: apperrors.ErrAuthorizationTimeout}

		_, err := f.orch.Run(context.Background(), defaultOptions())
		require.ErrorIs(t, err, apperrors.ErrAuthorizationTimeout)
		require.Zero(t, f.source.logins)
	})

	t.Run("login", func(t *testing.T) {
		f := newFixture(t, newestFirst(1))
		f.source.loginErr = apperrors.ErrProviderAuthentication

		_, err := f.orch.Run(context.Background(), defaultOptions())
		require.ErrorIs(t, err, apperrors.ErrProviderAuthentication)
		require.Empty(t, f.uploader.calls)
	})

	t.Run("rate limited list", func(t *testing.T) {
		f := newFixture(t, newestFirst(1))
		f.source.listErr = &apperrors.RateLimitError{RetryAfter: time.Minute}

		_, err := f.orch.Run(context.Background(), defaultOptions())
		var rateErr *apperrors.RateLimitError
		require.ErrorAs(t, err, &rateErr)
		require.Empty(t, f.uploader.calls)
	})
}

func TestRun_CancelledBetweenActivities(t *testing.T) {
	f := newFixture(t, newestFirst(3))
	f.throttle.cancelAt = 2

	summary, err := f.orch.Run(context.Background(), defaultOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, summary.Cancelled)
	require.Equal(t, []string{"1"}, f.uploader.uploadedIDs())
	require.Len(t, f.ledger.Writes(), 1)
}

func TestRun_LogsTraceLink(t *testing.T) {
	f := newFixture(t, newestFirst(1))
	buf := &bytes.Buffer{}
	ctx := zerolog.New(buf).WithContext(context.Background())
	orch := tracksync.NewOrchestrator(f.tokens, f.source, f.uploader, f.ledger, f.dir,
		tracksync.WithThrottle(f.throttle.factory),
		tracksync.WithTraceLinks("https://www.openstreetmap.org/", "mapper"),
	)

	_, err := orch.Run(ctx, defaultOptions())
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"trace_url":"https://www.openstreetmap.org/user/mapper/traces/trace-1"`)
}
