package config

import "time"

type Config interface {
	EnvConfig
	OAuthConfig
	GarminConfig
	StorageConfig
	SyncConfig
	Validate(scope Scope) error
}

type EnvConfig interface {
	GetAppName() string
	GetLogLevel() string
	GetLogFormat() string
	GetHTTPTimeout() time.Duration
}

type GarminConfig interface {
	GetGarminEmail() string
	GetGarminPassword() string
	GetGarminSSOURL() string
	GetGarminConnectURL() string
}

type StorageConfig interface {
	GetTokensFile() string
	GetLedgerBackend() string
	GetDBFile() string
	GetProcessedActivitiesFile() string
	GetDownloadDir() string
}

type SyncConfig interface {
	GetMaxActivities() int
	GetDryRun() bool
	GetSlowMode() bool
	GetUploadDelay() time.Duration
	GetSlowUploadDelay() time.Duration
	GetSlowBatchSize() int
}

type mainConfig struct {
	settings *Settings
}

var _ Config = mainConfig{}

// New loads the configuration from defaults, an optional YAML file and the environment.
func New() (Config, error) {
	s, err := Load()
	if err != nil {
		return nil, err
	}
	return FromSettings(s), nil
}

// NewFromFile is New with an explicit YAML file.
func NewFromFile(path string) (Config, error) {
	s, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	return FromSettings(s), nil
}

// FromSettings exposes already loaded settings through the Config getters.
func FromSettings(s *Settings) Config {
	return mainConfig{settings: s}
}

func (c mainConfig) GetAppName() string            { return c.settings.AppName }
func (c mainConfig) GetLogLevel() string           { return c.settings.Logging.Level }
func (c mainConfig) GetLogFormat() string          { return c.settings.Logging.Format }
func (c mainConfig) GetHTTPTimeout() time.Duration { return c.settings.HTTPTimeout }

func (c mainConfig) GetGarminEmail() string      { return c.settings.Garmin.Email }
func (c mainConfig) GetGarminPassword() string   { return c.settings.Garmin.Password }
func (c mainConfig) GetGarminSSOURL() string     { return c.settings.Garmin.SSOURL }
func (c mainConfig) GetGarminConnectURL() string { return c.settings.Garmin.ConnectURL }

func (c mainConfig) GetTokensFile() string              { return c.settings.Storage.TokensFile }
func (c mainConfig) GetLedgerBackend() string           { return c.settings.Storage.LedgerBackend }
func (c mainConfig) GetDBFile() string                  { return c.settings.Storage.DBFile }
func (c mainConfig) GetProcessedActivitiesFile() string { return c.settings.Storage.ProcessedFile }
func (c mainConfig) GetDownloadDir() string             { return c.settings.Storage.DownloadDir }

func (c mainConfig) GetMaxActivities() int             { return c.settings.Sync.MaxActivities }
func (c mainConfig) GetDryRun() bool                   { return c.settings.Sync.DryRun }
func (c mainConfig) GetSlowMode() bool                 { return c.settings.Sync.SlowMode }
func (c mainConfig) GetUploadDelay() time.Duration     { return c.settings.Sync.UploadDelay }
func (c mainConfig) GetSlowUploadDelay() time.Duration { return c.settings.Sync.SlowUploadDelay }
func (c mainConfig) GetSlowBatchSize() int             { return c.settings.Sync.SlowBatchSize }
