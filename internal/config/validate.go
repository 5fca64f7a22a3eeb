package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
)

// Scope selects which settings a command needs.
type Scope int

const (
	// ScopeStructure checks formats and enums only.
	ScopeStructure Scope = iota
	// ScopeLedger is enough for ledger maintenance commands.
	ScopeLedger
	// ScopeAuthorize needs the OSM client credentials.
	ScopeAuthorize
	// ScopeSync needs everything.
	ScopeSync
)

var credentialFields = map[string]string{
	"Garmin.Email":     "GARMIN_EMAIL",
	"Garmin.Password":  "GARMIN_PASSWORD",
	"OSM.ClientID":     "OSM_CLIENT_ID",
	"OSM.ClientSecret": "OSM_CLIENT_SECRET",
	"OSM.RedirectURI":  "REDIRECT_URI",
}

var scopeExclusions = map[Scope][]string{
	ScopeStructure: {"Garmin.Email", "Garmin.Password", "OSM.ClientID", "OSM.ClientSecret", "OSM.RedirectURI"},
	ScopeLedger:    {"Garmin.Email", "Garmin.Password", "OSM.ClientID", "OSM.ClientSecret", "OSM.RedirectURI"},
	ScopeAuthorize: {"Garmin.Email", "Garmin.Password"},
	ScopeSync:      nil,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks s for the given scope and returns a *errors.ConfigError naming the
// first offending setting.
func Validate(s *Settings, scope Scope) error {
	var err error
	if excluded := scopeExclusions[scope]; len(excluded) > 0 {
		err = validate.StructExcept(s, excluded...)
	} else {
		err = validate.Struct(s)
	}
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !apperrors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fmt.Errorf("[config Validate] %w", err)
	}

	fe := validationErrs[0]
	field := strings.TrimPrefix(fe.StructNamespace(), "Settings.")
	name := fieldName(field)
	if fe.Tag() == "required" || fe.Tag() == "required_if" {
		return &apperrors.ConfigError{Field: name}
	}
	return &apperrors.ConfigError{Field: name, Reason: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), redact(field, fe.Value()))}
}

// Validate checks the loaded configuration for the given scope.
func (c mainConfig) Validate(scope Scope) error {
	return Validate(c.settings, scope)
}

func fieldName(field string) string {
	if env, ok := credentialFields[field]; ok {
		return env
	}
	for env, path := range envMappings {
		if strings.EqualFold(strings.ReplaceAll(path, "_", ""), strings.ReplaceAll(field, "_", "")) {
			return strings.ToUpper(env)
		}
	}
	return field
}

func redact(field string, value any) any {
	if strings.Contains(field, "Password") || strings.Contains(field, "Secret") {
		return "***"
	}
	return value
}
