package dispatcher

import (
	"sort"
	"testing"

	"screenshotsvc/internal/model"
)

// stableOrder replicates ProcessRequests' sort without needing a live
// Dispatcher (which requires a real browser pool to construct).
func stableOrder(requests []model.Request) []model.Request {
	ordered := make([]model.Request, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

func TestProcessRequestsOrderingIsStableByPriority(t *testing.T) {
	requests := []model.Request{
		{ID: "a", Priority: model.PriorityLow},
		{ID: "b", Priority: model.PriorityCritical},
		{ID: "c", Priority: model.PriorityNormal},
		{ID: "d", Priority: model.PriorityCritical},
		{ID: "e", Priority: model.PriorityHigh},
	}

	ordered := stableOrder(requests)

	want := []string{"b", "d", "e", "c", "a"}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Fatalf("position %d = %q, want %q (full order: %v)", i, ordered[i].ID, id, ids(ordered))
		}
	}
}

func TestProcessRequestsOrderingPreservesArrivalOnTies(t *testing.T) {
	requests := []model.Request{
		{ID: "first", Priority: model.PriorityNormal},
		{ID: "second", Priority: model.PriorityNormal},
		{ID: "third", Priority: model.PriorityNormal},
	}

	ordered := stableOrder(requests)
	for i, id := range []string{"first", "second", "third"} {
		if ordered[i].ID != id {
			t.Fatalf("tie-break order not preserved: position %d = %q, want %q", i, ordered[i].ID, id)
		}
	}
}

func ids(requests []model.Request) []string {
	out := make([]string, len(requests))
	for i, r := range requests {
		out[i] = r.ID
	}
	return out
}
