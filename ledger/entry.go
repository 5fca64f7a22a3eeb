package ledger

import (
	"encoding/json"
	"time"
)

// Status records how an activity came to be in the ledger.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusDryRun   Status = "dry-run"
	StatusMigrated Status = "migrated"
)

// Entry marks an activity as processed. Once an entry exists the activity is never
// handed to the destination again, whatever its status.
type Entry struct {
	ActivityID    string
	UploadedAt    time.Time
	RemoteTrackID *string
	Status        Status
	Metadata      string
}

// UploadMetadata is stored as JSON alongside uploaded entries.
type UploadMetadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	StartTime   string `json:"start_time"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Visibility  string `json:"visibility"`
}

// Encode renders the metadata as the JSON stored in Entry.Metadata.
func (m UploadMetadata) Encode() string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
