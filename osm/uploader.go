package osm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/pkg/errors"
)

const (
	uploadPath        = "/api/0.6/gpx/create"
	gpxContentType    = "application/gpx+xml"
	maxErrorBody      = 500
	VisibilityDefault = "identifiable"
)

// Trace is one GPX file to publish together with its descriptive fields.
type Trace struct {
	Path        string
	Description string
	Tags        string
	Visibility  string
}

// UploadResponse is the destination's reply to an accepted upload.
type UploadResponse struct {
	StatusCode int
	TraceID    string
}

// Uploader publishes traces using a bearer access token.
type Uploader interface {
	Upload(ctx context.Context, accessToken string, trace Trace) (UploadResponse, error)
}

// HTTPUploader posts traces to the OpenStreetMap GPS trace API.
type HTTPUploader struct {
	baseURL    string
	httpClient *http.Client
}

var _ Uploader = (*HTTPUploader)(nil)

func NewHTTPUploader(baseURL string, httpClient *http.Client) *HTTPUploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPUploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Upload sends trace as multipart form data. Any 2xx is success and the trimmed body is the
// trace id. Other statuses return *errors.UploadError.
func (u *HTTPUploader) Upload(ctx context.Context, accessToken string, trace Trace) (UploadResponse, error) {
	body, contentType, err := encodeTrace(trace)
	if err != nil {
		return UploadResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+uploadPath, body)
	if err != nil {
		return UploadResponse{}, errors.Wrap(err, "[osm Upload] build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return UploadResponse{}, errors.Wrap(err, "[osm Upload] send")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResponse{}, errors.Wrap(err, "[osm Upload] read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(respBody))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return UploadResponse{StatusCode: resp.StatusCode}, &apperrors.UploadError{StatusCode: resp.StatusCode, Body: text}
	}
	return UploadResponse{
		StatusCode: resp.StatusCode,
		TraceID:    strings.TrimSpace(string(respBody)),
	}, nil
}

func encodeTrace(trace Trace) (*bytes.Buffer, string, error) {
	f, err := os.Open(trace.Path)
	if err != nil {
		return nil, "", errors.Wrap(err, "[osm Upload] open gpx")
	}
	defer f.Close()

	visibility := trace.Visibility
	if visibility == "" {
		visibility = VisibilityDefault
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(trace.Path)))
	h.Set("Content-Type", gpxContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "[osm Upload] create file part")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", errors.Wrap(err, "[osm Upload] copy gpx")
	}

	for _, field := range [][2]string{
		{"description", trace.Description},
		{"tags", trace.Tags},
		{"visibility", visibility},
	} {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", errors.Wrap(err, "[osm Upload] write field")
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "[osm Upload] close form")
	}
	return buf, w.FormDataContentType(), nil
}
