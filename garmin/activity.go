package garmin

import (
	"encoding/json"
	"strings"
)

// Activity is the subset of a Garmin Connect activity summary the sync needs.
type Activity struct {
	ID             string
	Name           string
	TypeKey        string
	StartTimeLocal string
	StartTimeGMT   string
}

type rawActivity struct {
	ActivityID   json.Number `json:"activityId"`
	ActivityName string      `json:"activityName"`
	ActivityType struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	StartTimeLocal string `json:"startTimeLocal"`
	StartTimeGMT   string `json:"startTimeGMT"`
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw rawActivity
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id := strings.TrimSpace(raw.ActivityID.String())
	if id == "0" {
		id = ""
	}
	*a = Activity{
		ID:             id,
		Name:           raw.ActivityName,
		TypeKey:        raw.ActivityType.TypeKey,
		StartTimeLocal: raw.StartTimeLocal,
		StartTimeGMT:   raw.StartTimeGMT,
	}
	return nil
}

// DisplayName is the activity name or "Garmin Activity <id>" when it has none.
func (a Activity) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return "Garmin Activity " + a.ID
}

// Type is the activity type key or "unknown".
func (a Activity) Type() string {
	if a.TypeKey != "" {
		return a.TypeKey
	}
	return "unknown"
}

// StartTime prefers the local start time, then GMT, then "Unknown".
func (a Activity) StartTime() string {
	switch {
	case a.StartTimeLocal != "":
		return a.StartTimeLocal
	case a.StartTimeGMT != "":
		return a.StartTimeGMT
	default:
		return "Unknown"
	}
}
