package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestIsUnauthorized(t *testing.T) {
	t.Run("401 upload error", func(t *testing.T) {
		err := errors.Wrapf(&errors.UploadError{StatusCode: http.StatusUnauthorized}, "upload %s", "123")
		require.True(t, errors.IsUnauthorized(err))
		require.True(t, errors.Is(err, errors.ErrUploadRejected))
	})

	t.Run("other status", func(t *testing.T) {
		require.False(t, errors.IsUnauthorized(&errors.UploadError{StatusCode: http.StatusBadRequest}))
	})

	t.Run("unrelated error", func(t *testing.T) {
		require.False(t, errors.IsUnauthorized(stderrors.New("boom")))
	})
}

func TestConfigError(t *testing.T) {
	err := &errors.ConfigError{Field: "OSM_CLIENT_ID"}
	require.True(t, errors.Is(err, errors.ErrMissingConfig))
	require.Contains(t, err.Error(), "OSM_CLIENT_ID")

	err = &errors.ConfigError{Field: "MAX_ACTIVITIES", Reason: "must be at least 1"}
	require.Equal(t, "config MAX_ACTIVITIES: must be at least 1", err.Error())
}

func TestAuthorizationError(t *testing.T) {
	err := &errors.AuthorizationError{Stage: "refresh", Err: errors.ErrNoRefreshToken}
	require.True(t, errors.Is(err, errors.ErrNoRefreshToken))
	require.Equal(t, "authorization refresh: no refresh token stored", err.Error())

	var authErr *errors.AuthorizationError
	require.True(t, errors.As(errors.Wrapf(err, "ensure"), &authErr))
	require.Equal(t, "refresh", authErr.Stage)
}

func TestRateLimitError(t *testing.T) {
	var nilErr *errors.RateLimitError
	require.Equal(t, "rate limit", nilErr.Error())
	require.Equal(t, "rate limit exceeded", (&errors.RateLimitError{}).Error())
	require.Equal(t, "slow down", (&errors.RateLimitError{Message: "slow down"}).Error())
}

func TestWrapfNil(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "nothing"))
}
