package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the location of the optional YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// envMappings maps the environment variables understood by the tool onto koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"app_name":     "app_name",
	"http_timeout": "http_timeout",

	"garmin_email":       "garmin.email",
	"garmin_password":    "garmin.password",
	"garmin_sso_url":     "garmin.sso_url",
	"garmin_connect_url": "garmin.connect_url",

	"osm_client_id":     "osm.client_id",
	"osm_client_secret": "osm.client_secret",
	"redirect_uri":      "osm.redirect_uri",
	"osm_username":      "osm.username",
	"osm_base_url":      "osm.base_url",
	"osm_issuer_url":    "osm.issuer_url",
	"auth_timeout":      "osm.auth_timeout",
	"osm_pkce":          "osm.pkce",

	"tokens_file":               "storage.tokens_file",
	"ledger_backend":            "storage.ledger_backend",
	"db_file":                   "storage.db_file",
	"processed_activities_file": "storage.processed_file",
	"download_dir":              "storage.download_dir",

	"max_activities":    "sync.max_activities",
	"dry_run":           "sync.dry_run",
	"slow_mode":         "sync.slow_mode",
	"upload_delay":      "sync.upload_delay",
	"slow_upload_delay": "sync.slow_upload_delay",
	"slow_batch_size":   "sync.slow_batch_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// boolPaths accept loose spellings such as 1, yes and on.
var boolPaths = map[string]struct{}{
	"osm.pkce":       {},
	"sync.dry_run":   {},
	"sync.slow_mode": {},
}

// Load layers struct defaults, an optional YAML file and environment variables.
// Only structural validation is performed here; credential checks happen in Validate.
func Load() (*Settings, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit YAML file. An empty path skips the file layer.
func LoadFrom(configPath string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(s, ScopeStructure); err != nil {
		return nil, err
	}
	return s, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func envTransformFunc(key, value string) (string, interface{}) {
	path, ok := envMappings[strings.ToLower(key)]
	if !ok {
		return "", nil
	}
	if _, isBool := boolPaths[path]; isBool {
		return path, parseLooseBool(value)
	}
	return path, value
}

func parseLooseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
