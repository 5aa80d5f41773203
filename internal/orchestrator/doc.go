// Package orchestrator provides the Implementor node's git-backed
// workspace tooling: staging and committing the files a completed task
// touched, and reading the worktree's current diff, via go-git. It also
// offers an optional go-github pull-request opener for the end of a
// workflow run.
//
// This package is the descendant of an earlier phase/gate TDD executor
// (init → test → implement → verify → commit → report, enforced by
// PhaseGate checks and recorded to an external memory API). That model
// doesn't fit this engine — task sequencing and review cadence are the
// TaskPlanner/Assessor nodes' job, not a fixed phase ladder, and there is
// no external memory API to record learnings back to here. What survives
// is the one genuinely reusable piece: committing one unit of work at a
// time, now driven by go-git instead of a shelled-out phase handler. See
// DESIGN.md for the full accounting of what was dropped and why.
package orchestrator
