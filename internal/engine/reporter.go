package engine

import (
	"fmt"
	"strings"
)

// Reporter produces the final narrative summary from done_list and
// terminal status (spec.md §2, "Reporter" row).
type Reporter struct{}

// NewReporter constructs a Reporter.
func NewReporter() *Reporter { return &Reporter{} }

// Summarize builds a human-readable report of the run.
func (r *Reporter) Summarize(state *WorkflowState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Request: %s\n", state.UserRequest)
	if state.Remit != "" {
		fmt.Fprintf(&b, "Remit: %s\n", state.Remit)
	}
	fmt.Fprintf(&b, "Status: %s\n", state.Status)
	if state.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", state.Error)
	}

	completed, failed := 0, 0
	for _, entry := range state.DoneList {
		if entry.Failed {
			failed++
		} else {
			completed++
		}
	}
	fmt.Fprintf(&b, "Tasks completed: %d, failed: %d\n", completed, failed)

	if len(state.Milestones) > 0 {
		fmt.Fprintf(&b, "Milestone progress: %d/%d\n", state.ActiveMilestoneIndex, len(state.Milestones))
	}

	if len(state.DoneList) > 0 {
		b.WriteString("\nWork log:\n")
		for i, entry := range state.DoneList {
			status := "done"
			if entry.Failed {
				status = "failed"
			}
			fmt.Fprintf(&b, "%d. [%s] %s — %s\n", i+1, status, entry.TaskDescription, entry.ResultSummary)
		}
	}

	return b.String()
}
