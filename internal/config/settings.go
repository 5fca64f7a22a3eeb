package config

import "time"

// Settings is the raw configuration tree. Values are layered by Load.
type Settings struct {
	AppName     string          `koanf:"app_name"`
	HTTPTimeout time.Duration   `koanf:"http_timeout" validate:"gt=0"`
	Garmin      GarminSettings  `koanf:"garmin"`
	OSM         OSMSettings     `koanf:"osm"`
	Storage     StorageSettings `koanf:"storage"`
	Sync        SyncSettings    `koanf:"sync"`
	Logging     LoggingSettings `koanf:"logging"`
}

type GarminSettings struct {
	Email      string `koanf:"email" validate:"required"`
	Password   string `koanf:"password" validate:"required"`
	SSOURL     string `koanf:"sso_url" validate:"required,url"`
	ConnectURL string `koanf:"connect_url" validate:"required,url"`
}

type OSMSettings struct {
	ClientID     string        `koanf:"client_id" validate:"required"`
	ClientSecret string        `koanf:"client_secret" validate:"required"`
	RedirectURI  string        `koanf:"redirect_uri" validate:"required,url"`
	Username     string        `koanf:"username"`
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	IssuerURL    string        `koanf:"issuer_url" validate:"omitempty,url"`
	Scopes       []string      `koanf:"scopes"`
	AuthTimeout  time.Duration `koanf:"auth_timeout" validate:"gte=0"`
	PKCE         bool          `koanf:"pkce"`
}

type StorageSettings struct {
	TokensFile    string `koanf:"tokens_file" validate:"required"`
	LedgerBackend string `koanf:"ledger_backend" validate:"oneof=sqlite text"`
	DBFile        string `koanf:"db_file" validate:"required_if=LedgerBackend sqlite"`
	ProcessedFile string `koanf:"processed_file"`
	DownloadDir   string `koanf:"download_dir" validate:"required"`
}

type SyncSettings struct {
	MaxActivities   int           `koanf:"max_activities" validate:"min=1"`
	DryRun          bool          `koanf:"dry_run"`
	SlowMode        bool          `koanf:"slow_mode"`
	UploadDelay     time.Duration `koanf:"upload_delay" validate:"gte=0"`
	SlowUploadDelay time.Duration `koanf:"slow_upload_delay" validate:"gte=0"`
	SlowBatchSize   int           `koanf:"slow_batch_size" validate:"min=1"`
}

type LoggingSettings struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultSettings holds the values used when neither the file nor the environment set one.
func defaultSettings() *Settings {
	return &Settings{
		AppName:     "Garmin OSM Sync",
		HTTPTimeout: 60 * time.Second,
		Garmin: GarminSettings{
			SSOURL:     "https://sso.garmin.com",
			ConnectURL: "https://connect.garmin.com",
		},
		OSM: OSMSettings{
			BaseURL:     "https://www.openstreetmap.org",
			Scopes:      DefaultScopes,
			AuthTimeout: 5 * time.Minute,
			PKCE:        true,
		},
		Storage: StorageSettings{
			TokensFile:    "tokens.json",
			LedgerBackend: "sqlite",
			DBFile:        "data.db",
			ProcessedFile: "processed_ids.txt",
			DownloadDir:   "downloads",
		},
		Sync: SyncSettings{
			MaxActivities:   10,
			UploadDelay:     1 * time.Second,
			SlowUploadDelay: 10 * time.Second,
			SlowBatchSize:   5,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
		},
	}
}
