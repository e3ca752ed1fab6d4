package pipeline

import (
	"encoding/json"
	"os"
	"time"
)

// SkippedVersion records why a planned version produced no commit.
type SkippedVersion struct {
	ID     string `json:"id"`
	Reason string `json:"reason"` // "mapping_missing" or "no_changes"
}

// RunSummary is DVH's equivalent of the original Java implementation's
// GitHub Actions output-variable block: a small end-of-run report for
// CI consumption, written to <output>/.dvh-last-run.json.
type RunSummary struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
	Committed []string         `json:"committed"`
	Skipped   []SkippedVersion `json:"skipped"`
	FinalHead string           `json:"final_head"`
	Pushed    bool             `json:"pushed"`
}

// writeRunSummary serializes summary to path atomically.
func writeRunSummary(path string, summary *RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
