// Package knowledge loads the docs/knowledge/{conventions,design,lessons,domain}
// markdown corpus spec.md §6 names as planner-readable, and watches it (plus
// the retrieval index under .rag_index/) for changes via fsnotify so the
// retrieval adapter picks up edits without a process restart
// (SPEC_FULL.md §4 "docs/knowledge/* loader"). The engine never writes to
// this tree — writers are external per spec.md.
package knowledge
