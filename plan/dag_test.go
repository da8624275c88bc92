package plan

import "testing"

func steps(withDeps bool) []ToolStep {
	if !withDeps {
		return []ToolStep{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	}
	return []ToolStep{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"a"}},
		{ID: "d", Dependencies: []string{"b", "c"}},
	}
}

func TestDAG_ReadyNodes_NoDeps(t *testing.T) {
	d := newDAG(steps(false))
	ready := d.readyNodes()
	if len(ready) != 3 {
		t.Fatalf("expected all 3 nodes ready with no deps, got %v", ready)
	}
}

func TestDAG_ReadyNodes_RespectsDependencies(t *testing.T) {
	d := newDAG(steps(true))
	ready := d.readyNodes()
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only 'a' ready, got %v", ready)
	}

	d.markRunning("a")
	d.markCompleted("a")
	ready = d.readyNodes()
	if len(ready) != 2 {
		t.Fatalf("expected b and c ready after a completes, got %v", ready)
	}
}

func TestDAG_MarkFailed_CascadesSkipToDependents(t *testing.T) {
	d := newDAG(steps(true))
	d.markRunning("a")
	d.markFailed("a")

	skipped := d.skippedIDs()
	if len(skipped) != 3 {
		t.Fatalf("expected b, c, d all skipped after a fails, got %v", skipped)
	}
	if d.readyNodes() != nil {
		t.Fatalf("expected no ready nodes once everything downstream is skipped/failed")
	}
	if !d.isComplete() {
		t.Fatal("expected dag to be complete: no pending or running nodes remain")
	}
}

func TestDAG_TopologicalOrder_RespectsDependencies(t *testing.T) {
	d := newDAG(steps(true))
	order := d.topologicalOrder()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] >= pos["b"] || pos["a"] >= pos["c"] || pos["b"] >= pos["d"] || pos["c"] >= pos["d"] {
		t.Fatalf("topological order violates dependencies: %v", order)
	}
}

func TestDAG_ExecutionLevels_GroupsIndependentWork(t *testing.T) {
	d := newDAG(steps(true))
	levels := d.executionLevels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 waves (a | b,c | d), got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 1 || levels[0][0] != "a" {
		t.Fatalf("expected first wave to be just 'a', got %v", levels[0])
	}
	if len(levels[1]) != 2 {
		t.Fatalf("expected second wave to contain b and c together, got %v", levels[1])
	}
}
