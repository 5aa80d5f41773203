package checkpoint

import (
	"context"

	"github.com/fyrsmithlabs/devteam/internal/engine"
)

// RecoveryHook adapts a Service into the engine.RecoveryHook signature,
// converting an engine.StateSnapshot into the bounded Snapshot this
// package persists.
func RecoveryHook(svc Service) engine.RecoveryHook {
	return func(ctx context.Context, snap engine.StateSnapshot) error {
		state := snap.State

		workLog := make([]string, 0, len(state.DoneList))
		for _, entry := range state.DoneList {
			status := "done"
			if entry.Failed {
				status = "failed"
			}
			workLog = append(workLog, "["+status+"] "+entry.TaskDescription)
		}

		_, err := svc.Save(ctx, &Snapshot{
			CapturedAt:           snap.CapturedAt,
			UserRequest:          state.UserRequest,
			Remit:                state.Remit,
			ActiveMilestoneIndex: state.ActiveMilestoneIndex,
			MilestoneCount:       len(state.Milestones),
			Status:               string(state.Status),
			AttemptCount:         state.AttemptCount,
			Urgency:              state.Urgency,
			WorkLog:              workLog,
		})
		return err
	}
}
