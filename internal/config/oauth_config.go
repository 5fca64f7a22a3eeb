package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetOSMUsername() string
	GetOSMBaseURL() string
	GetIssuerURL() string
	GetScopes() []string
	GetAuthCodeTimeout() time.Duration
	GetRequirePKCE() bool
}

// DefaultScopes are the OpenStreetMap scopes needed to read and create GPS traces.
var DefaultScopes = []string{"read_gpx", "write_gpx"}

func (c mainConfig) GetClientID() string     { return c.settings.OSM.ClientID }
func (c mainConfig) GetClientSecret() string { return c.settings.OSM.ClientSecret }
func (c mainConfig) GetRedirectURI() string  { return c.settings.OSM.RedirectURI }
func (c mainConfig) GetOSMUsername() string  { return c.settings.OSM.Username }
func (c mainConfig) GetIssuerURL() string    { return c.settings.OSM.IssuerURL }
func (c mainConfig) GetRequirePKCE() bool    { return c.settings.OSM.PKCE }

func (c mainConfig) GetOSMBaseURL() string {
	return strings.TrimRight(c.settings.OSM.BaseURL, "/")
}

func (c mainConfig) GetScopes() []string {
	if len(c.settings.OSM.Scopes) == 0 {
		return DefaultScopes
	}
	return c.settings.OSM.Scopes
}

// GetAuthCodeTimeout bounds how long the local callback listener waits for the browser.
func (c mainConfig) GetAuthCodeTimeout() time.Duration {
	if c.settings.OSM.AuthTimeout <= 0 {
		return 5 * time.Minute
	}
	return c.settings.OSM.AuthTimeout
}
