package checkpoint

import "time"

// Snapshot is the on-disk TOML record written by the recovery hook, per
// SPEC_FULL.md's "Recovery hook" supplement: a file named by ID containing
// the remit, milestone progress, and a size-bounded excerpt of
// the work log, never the full WorkflowState (that would defeat the max
// content size guard on a long-running workflow).
type Snapshot struct {
	ID                   string    `toml:"id"`
	CapturedAt           time.Time `toml:"captured_at"`
	UserRequest          string    `toml:"user_request"`
	Remit                string    `toml:"remit"`
	ActiveMilestoneIndex int       `toml:"active_milestone_index"`
	MilestoneCount       int       `toml:"milestone_count"`
	Status               string    `toml:"status"`
	AttemptCount         int       `toml:"attempt_count"`
	Urgency              float64   `toml:"urgency"`
	WorkLog              []string  `toml:"work_log"`
	Truncated            bool      `toml:"truncated"`
}
