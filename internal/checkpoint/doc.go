// Package checkpoint implements the optional external recovery hook named
// in spec.md §6: a best-effort TOML snapshot, one file per snapshot ID, of a
// workflow run's remit, milestone progress, and a size-bounded work log,
// written after every mark_complete/mark_failed.
package checkpoint
