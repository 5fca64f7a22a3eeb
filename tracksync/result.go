package tracksync

// Outcome is what happened to one activity during a run.
type Outcome string

const (
	OutcomeUploaded Outcome = "uploaded"
	OutcomeDryRun   Outcome = "dry-run"
	OutcomeFailed   Outcome = "failed"
)

// Result reports the handling of a single activity.
type Result struct {
	ActivityID string
	Name       string
	Outcome    Outcome
	TrackID    string
	Attempts   int
	Err        error
}

// Summary aggregates a run.
type Summary struct {
	Fetched   int
	New       int
	Selected  int
	Results   []Result
	Cancelled bool
}

func (s Summary) count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func (s Summary) Uploaded() int { return s.count(OutcomeUploaded) }
func (s Summary) DryRun() int   { return s.count(OutcomeDryRun) }
func (s Summary) Failed() int   { return s.count(OutcomeFailed) }
