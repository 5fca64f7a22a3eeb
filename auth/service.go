package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/garmin-osm-sync/internal/config"
	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/jrsteele09/garmin-osm-sync/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Service obtains and keeps a usable OpenStreetMap access token. It reuses the stored token
// while it is fresh, refreshes it when a refresh token is available, and otherwise runs the
// interactive authorization code flow through the user's browser.
type Service struct {
	config     config.OAuthConfig
	store      token.Store
	oauth      *oauth2.Config
	browser    BrowserOpener
	httpClient *http.Client
	endpoint   *oauth2.Endpoint
	nowTime    func() time.Time
}

// ServiceOption modifies a Service during construction.
type ServiceOption func(*Service)

// WithBrowser replaces the system browser (primarily for testing)
func WithBrowser(b BrowserOpener) ServiceOption {
	return func(s *Service) {
		s.browser = b
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithHTTPClient sets the client used for token endpoint and discovery calls.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithEndpoint pins the authorization and token URLs, skipping discovery.
func WithEndpoint(e oauth2.Endpoint) ServiceOption {
	return func(s *Service) {
		s.endpoint = &e
	}
}

// NewService builds a Service. Endpoints come from WithEndpoint, from OpenID discovery when an
// issuer URL is configured, or from the configured OpenStreetMap base URL.
func NewService(ctx context.Context, cfg config.OAuthConfig, store token.Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("[auth NewService] token store is required")
	}
	s := &Service{
		config:  cfg,
		store:   store,
		browser: SystemBrowser{},
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	endpoint, err := s.resolveEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	s.oauth = &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetRedirectURI(),
		Scopes:       cfg.GetScopes(),
		Endpoint:     endpoint,
	}
	return s, nil
}

func (s *Service) resolveEndpoint(ctx context.Context) (oauth2.Endpoint, error) {
	if s.endpoint != nil {
		return *s.endpoint, nil
	}
	if issuer := s.config.GetIssuerURL(); issuer != "" {
		return DiscoverEndpoint(s.clientContext(ctx), issuer)
	}
	return StaticEndpoint(s.config.GetOSMBaseURL()), nil
}

// clientContext carries the injected HTTP client into oauth2 and oidc calls.
func (s *Service) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// AuthCodeURL returns the consent page address for the given flow.
func (s *Service) AuthCodeURL(fs FlowState) string {
	return s.oauth.AuthCodeURL(fs.State, fs.authCodeOptions()...)
}

// EnsureAccessToken returns an access token that is valid for at least token.FreshnessMargin.
func (s *Service) EnsureAccessToken(ctx context.Context) (string, error) {
	logger := log.Ctx(ctx)

	rec, err := s.store.Load(ctx)
	if err != nil {
		logger.Err(err).Msg("Could not read stored tokens, starting authorization")
		rec = nil
	}

	now := s.nowTime()
	switch {
	case rec == nil:
		logger.Info().Str("stage", string(StageNoGrant)).Msg("No stored tokens, starting authorization")
		return s.authorize(ctx)
	case token.IsFresh(rec, now):
		logger.Debug().Msg("Reusing stored access token")
		return rec.AccessToken, nil
	case !rec.HasRefreshToken():
		logger.Info().Msg("Access token expired and no refresh token stored, starting authorization")
		return s.authorize(ctx)
	}

	logger.Info().Msg("Access token expired, refreshing")
	refreshed, err := s.refresh(ctx, rec.RefreshToken)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// ForceRefresh exchanges the stored refresh token regardless of the access token's expiry.
func (s *Service) ForceRefresh(ctx context.Context) (string, error) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return "", &apperrors.AuthorizationError{Stage: "refresh", Err: err}
	}
	if rec == nil || !rec.HasRefreshToken() {
		return "", &apperrors.AuthorizationError{Stage: "refresh", Err: apperrors.ErrNoRefreshToken}
	}
	refreshed, err := s.refresh(ctx, rec.RefreshToken)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Authorize always runs the interactive flow and stores the resulting grant.
func (s *Service) Authorize(ctx context.Context) (string, error) {
	return s.authorize(ctx)
}

func (s *Service) authorize(ctx context.Context) (string, error) {
	logger := log.Ctx(ctx)

	listener, err := NewCallbackListener(s.oauth.RedirectURL)
	if err != nil {
		return "", &apperrors.AuthorizationError{Stage: "authorize", Err: err}
	}
	defer func() {
		if cerr := listener.Close(); cerr != nil {
			logger.Err(cerr).Msg("Failed to close callback listener")
		}
	}()

	fs := newFlowState(s.nowTime(), s.config.GetRequirePKCE())
	authURL := s.AuthCodeURL(fs)

	logger.Info().
		Str("stage", string(StageAwaitingCode)).
		Str("url", authURL).
		Str("listen", listener.Addr().String()).
		Msg("Open this URL to authorize access to OpenStreetMap")
	if err := s.browser.Open(authURL); err != nil {
		logger.Warn().Err(err).Msg("Could not open a browser, open the URL manually")
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.config.GetAuthCodeTimeout())
	defer cancel()
	cb, err := listener.Wait(waitCtx)
	if err != nil {
		return "", &apperrors.AuthorizationError{Stage: "authorize", Err: err}
	}

	if cb.State != fs.State {
		logger.Error().Str("path", cb.Path).Msg("Callback state does not match the authorization request")
		return "", &apperrors.AuthorizationError{Stage: "authorize", Err: apperrors.ErrNoAuthorizationCode}
	}
	if cb.Code == "" {
		logger.Error().
			Str("path", cb.Path).
			Str("error", cb.Error).
			Str("error_description", cb.ErrorDescription).
			Msg("No authorization code in callback")
		return "", &apperrors.AuthorizationError{Stage: "authorize", Err: apperrors.ErrNoAuthorizationCode}
	}
	logger.Info().Str("stage", string(StageHaveCode)).Msg("Authorization code received")

	rec, err := s.exchange(ctx, cb.Code, fs)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

func (s *Service) exchange(ctx context.Context, code string, fs FlowState) (*token.Record, error) {
	tok, err := s.oauth.Exchange(s.clientContext(ctx), code, fs.exchangeOptions()...)
	if err != nil {
		return nil, &apperrors.AuthorizationError{Stage: "exchange", Err: fmt.Errorf("%w: %w", apperrors.ErrTokenExchange, err)}
	}
	rec := recordFromToken(tok, "", s.nowTime())
	s.persist(ctx, rec)
	return rec, nil
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (*token.Record, error) {
	// An empty access token makes the token source go straight to the token endpoint.
	src := s.oauth.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, &apperrors.AuthorizationError{Stage: "refresh", Err: fmt.Errorf("%w: %w", apperrors.ErrTokenExchange, err)}
	}
	rec := recordFromToken(tok, refreshToken, s.nowTime())
	s.persist(ctx, rec)
	return rec, nil
}

// persist stores rec. A failed write is logged and the in-memory token is still returned.
func (s *Service) persist(ctx context.Context, rec *token.Record) {
	logger := log.Ctx(ctx)
	if err := s.store.Save(ctx, rec); err != nil {
		logger.Err(err).Msg("Failed to save tokens")
		return
	}
	evt := logger.Info().Str("stage", string(StageHaveTokens))
	if rec.ExpiresAt != nil {
		evt = evt.Time("expires_at", *rec.ExpiresAt)
	}
	evt.Msg("Stored new tokens")
}
