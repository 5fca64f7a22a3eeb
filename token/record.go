package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FreshnessMargin is the minimum remaining lifetime for a stored access token to be reused.
const FreshnessMargin = 60 * time.Second

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Record is the persisted delegated-access grant. There is only ever one.
type Record struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"` // nil = never expires until rejected
	Scope        string     `json:"scope,omitempty"`
	ObtainedAt   time.Time  `json:"obtained_at"`
}

// IsFresh reports whether r can be used as-is at now.
func IsFresh(r *Record, now time.Time) bool {
	if r == nil {
		return false
	}
	if r.ExpiresAt == nil {
		return true
	}
	return now.Add(FreshnessMargin).Before(*r.ExpiresAt)
}

// HasRefreshToken reports whether r can be renewed without user interaction.
func (r *Record) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}

// timestampLayouts lists the formats accepted when reading a token file. The naive layouts
// match files written by the earlier script, which stored UTC without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

type rawRecord struct {
	AccessToken  *string `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresAt    *string `json:"expires_at"`
	Scope        *string `json:"scope"`
	ObtainedAt   *string `json:"obtained_at"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec := Record{
		AccessToken:  deref(raw.AccessToken),
		RefreshToken: deref(raw.RefreshToken),
		Scope:        deref(raw.Scope),
	}
	if v := deref(raw.ExpiresAt); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			return fmt.Errorf("expires_at: %w", err)
		}
		rec.ExpiresAt = &t
	}
	if v := deref(raw.ObtainedAt); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			return fmt.Errorf("obtained_at: %w", err)
		}
		rec.ObtainedAt = t
	}

	*r = rec
	return nil
}

func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
