package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/garmin-osm-sync/token"
	"golang.org/x/oauth2"
)

// recordFromToken converts an token endpoint response into the persisted record.
// previousRefresh is kept when the response carries no refresh token.
func recordFromToken(tok *oauth2.Token, previousRefresh string, now time.Time) *token.Record {
	rec := &token.Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ObtainedAt:   now.UTC(),
	}
	if rec.RefreshToken == "" {
		rec.RefreshToken = previousRefresh
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}

	switch {
	case !tok.Expiry.IsZero():
		exp := tok.Expiry.UTC()
		rec.ExpiresAt = &exp
	default:
		rec.ExpiresAt = jwtExpiry(tok.AccessToken)
	}
	return rec
}

// jwtExpiry returns the exp claim when the access token happens to be a JWT. The signature
// is not checked; the value only schedules a refresh.
func jwtExpiry(accessToken string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}
