package osm_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/jrsteele09/garmin-osm-sync/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGPX(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "42.gpx")
	require.NoError(t, os.WriteFile(path, []byte("<gpx/>"), 0o644))
	return path
}

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/0.6/gpx/create", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Garmin Activity: Run on 2024-05-01", r.FormValue("description"))
		assert.Equal(t, "garmin,sync,running", r.FormValue("tags"))
		assert.Equal(t, "identifiable", r.FormValue("visibility"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "42.gpx", header.Filename)
		assert.Equal(t, "application/gpx+xml", header.Header.Get("Content-Type"))
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "<gpx/>", string(content))

		_, _ = io.WriteString(w, "  12345\n")
	}))
	t.Cleanup(srv.Close)

	u := osm.NewHTTPUploader(srv.URL+"/", nil)
	resp, err := u.Upload(context.Background(), "access-1", osm.Trace{
		Path:        writeGPX(t),
		Description: "Garmin Activity: Run on 2024-05-01",
		Tags:        "garmin,sync,running",
	})
	require.NoError(t, err)
	require.Equal(t, "12345", resp.TraceID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpload_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, "nope")
		}))

		u := osm.NewHTTPUploader(srv.URL, srv.Client())
		_, err := u.Upload(context.Background(), "access-1", osm.Trace{Path: writeGPX(t)})
		srv.Close()

		var uploadErr *apperrors.UploadError
		require.ErrorAs(t, err, &uploadErr)
		require.Equal(t, status, uploadErr.StatusCode)
		require.Equal(t, "nope", uploadErr.Body)
		require.ErrorIs(t, err, apperrors.ErrUploadRejected)
		require.Equal(t, status == http.StatusUnauthorized, apperrors.IsUnauthorized(err))
	}
}

func TestUpload_MissingFile(t *testing.T) {
	u := osm.NewHTTPUploader("http://127.0.0.1:1", nil)
	_, err := u.Upload(context.Background(), "access-1", osm.Trace{Path: filepath.Join(t.TempDir(), "missing.gpx")})
	require.Error(t, err)
	require.False(t, apperrors.IsUnauthorized(err))
}
