package engine

import "testing"

func TestStateUpdateSetAndHas(t *testing.T) {
	u := NewStateUpdate()
	if u.Has(FieldRemit) {
		t.Fatal("expected field unset initially")
	}
	u.Set(FieldRemit, "hello")
	if !u.Has(FieldRemit) {
		t.Fatal("expected field set")
	}
}

func TestStateStoreApplyOnlyStagedFields(t *testing.T) {
	initial := NewWorkflowState("req", "/repo", 5, 3)
	initial.Remit = "original remit"
	store := NewStateStore(initial)

	store.Apply(NewStateUpdate().Set(FieldAttemptCount, 2))

	snap := store.Snapshot()
	if snap.AttemptCount != 2 {
		t.Errorf("expected attempt count 2, got %d", snap.AttemptCount)
	}
	if snap.Remit != "original remit" {
		t.Errorf("unstaged field should be untouched, got %q", snap.Remit)
	}
}

func TestStateStoreSnapshotIsIndependentCopy(t *testing.T) {
	initial := NewWorkflowState("req", "/repo", 5, 3)
	initial.CarryForward = []string{"a"}
	store := NewStateStore(initial)

	snap := store.Snapshot()
	snap.CarryForward[0] = "mutated"

	second := store.Snapshot()
	if second.CarryForward[0] != "a" {
		t.Errorf("mutating a snapshot should not affect the store, got %q", second.CarryForward[0])
	}
}

func TestApplyReducerClearsPointerFieldsOnNil(t *testing.T) {
	state := NewWorkflowState("req", "/repo", 5, 3)
	state.CurrentQAResult = &QAResult{Passed: true}

	applyReducer(state, NewStateUpdate().Set(FieldCurrentQAResult, nil))

	if state.CurrentQAResult != nil {
		t.Error("expected CurrentQAResult to be cleared")
	}
}

func TestApplyReducerUnknownFieldIgnored(t *testing.T) {
	state := NewWorkflowState("req", "/repo", 5, 3)
	applyReducer(state, NewStateUpdate().Set("NotARealField", 123))
	// No panic, no observable effect: success.
}
