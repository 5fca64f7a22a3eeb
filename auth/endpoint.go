package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/oauth2/authorize"
	tokenPath     = "/oauth2/token"
)

// StaticEndpoint returns the OpenStreetMap-style OAuth2 endpoints under baseURL.
func StaticEndpoint(baseURL string) oauth2.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return oauth2.Endpoint{
		AuthURL:   base + authorizePath,
		TokenURL:  base + tokenPath,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// DiscoverEndpoint reads the endpoints from the issuer's OpenID configuration document.
func DiscoverEndpoint(ctx context.Context, issuerURL string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, strings.TrimRight(issuerURL, "/"))
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("[auth DiscoverEndpoint] %w", err)
	}
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return endpoint, nil
}
