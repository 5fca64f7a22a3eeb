package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client is the activity source used by the sync run.
type Client interface {
	Login(ctx context.Context) error
	ListActivities(ctx context.Context, start, limit int) ([]Activity, error)
	DownloadGPX(ctx context.Context, activityID string) ([]byte, error)
}

const (
	signinPath       = "/sso/signin"
	ticketPath       = "/modern/"
	activitiesPath   = "/activitylist-service/activities/search/activities"
	gpxDownloadPath  = "/download-service/export/gpx/activity/"
	defaultUserAgent = "garmin-osm-sync"
	maxErrorBody     = 500
)

var (
	csrfPattern   = regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`)
	ticketPattern = regexp.MustCompile(`ticket=([A-Za-z0-9\-_.]+)`)
)

type Options struct {
	SSOURL     string
	ConnectURL string
	Email      string
	Password   string
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
}

// HTTPClient talks to Garmin Connect with a cookie session established by Login.
type HTTPClient struct {
	ssoURL     string
	connectURL string
	email      string
	password   string
	userAgent  string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "[garmin NewHTTPClient] cookie jar")
		}
		clone := *httpClient
		clone.Jar = jar
		httpClient = &clone
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPClient{
		ssoURL:     strings.TrimRight(opts.SSOURL, "/"),
		connectURL: strings.TrimRight(opts.ConnectURL, "/"),
		email:      opts.Email,
		password:   opts.Password,
		userAgent:  userAgent,
		httpClient: httpClient,
	}, nil
}

// Login signs in through Garmin SSO and exchanges the service ticket for a Connect session.
func (c *HTTPClient) Login(ctx context.Context) error {
	service := c.connectURL + ticketPath
	signinURL := c.ssoURL + signinPath + "?" + url.Values{
		"service":              {service},
		"gauthHost":            {c.ssoURL + "/sso"},
		"clientId":             {"GarminConnect"},
		"consumeServiceTicket": {"false"},
	}.Encode()

	page, err := c.do(ctx, http.MethodGet, signinURL, nil, "")
	if err != nil {
		return errors.Wrap(err, "[garmin Login] load sign-in form")
	}
	csrf := ""
	if m := csrfPattern.FindSubmatch(page); m != nil {
		csrf = string(m[1])
	}

	form := url.Values{
		"username": {c.email},
		"password": {c.password},
		"embed":    {"false"},
	}
	if csrf != "" {
		form.Set("_csrf", csrf)
	}
	body, err := c.do(ctx, http.MethodPost, signinURL, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return errors.Wrap(err, "[garmin Login] submit credentials")
	}
	m := ticketPattern.FindSubmatch(body)
	if m == nil {
		return errors.Wrap(apperrors.ErrProviderAuthentication, "[garmin Login] no service ticket in sign-in response")
	}

	if _, err := c.do(ctx, http.MethodGet, service+"?ticket="+url.QueryEscape(string(m[1])), nil, ""); err != nil {
		return errors.Wrap(err, "[garmin Login] exchange ticket")
	}
	log.Ctx(ctx).Info().Msg("Garmin login successful")
	return nil
}

// ListActivities returns activity summaries newest-first.
func (c *HTTPClient) ListActivities(ctx context.Context, start, limit int) ([]Activity, error) {
	u := c.connectURL + activitiesPath + "?" + url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}.Encode()
	body, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, errors.Wrap(err, "[garmin ListActivities]")
	}
	var activities []Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, errors.Wrap(err, "[garmin ListActivities] decode")
	}
	return activities, nil
}

// DownloadGPX returns the GPX export of one activity.
func (c *HTTPClient) DownloadGPX(ctx context.Context, activityID string) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, c.connectURL+gpxDownloadPath+url.PathEscape(activityID), nil, "")
	if err != nil {
		return nil, errors.Wrapf(err, "[garmin DownloadGPX] activity %s", activityID)
	}
	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("NK", "NT")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrProviderConnection, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrProviderConnection, err)
	}
	if err := statusError(resp, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

func statusError(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status=%d", apperrors.ErrProviderAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &apperrors.RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    "garmin connect rate limit exceeded",
		}
	default:
		return fmt.Errorf("%w: status=%d body=%s", apperrors.ErrProviderConnection, resp.StatusCode, truncate(body))
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
