package tracing

import (
	"context"
	"testing"
)

func TestLogAndGetRecentTraces(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	s.Log(ctx, Trace{Operation: "blitz_session", Success: true, DurationS: 1.5})
	s.Log(ctx, Trace{Operation: "queue_session", Success: false, DurationS: 2.0})
	s.Log(ctx, Trace{Operation: "blitz_session", Success: false, DurationS: 0.5})

	all := s.GetRecentTraces("", 10)
	if len(all) != 3 {
		t.Fatalf("GetRecentTraces(\"\", 10) returned %d traces, want 3", len(all))
	}
	// Newest first.
	if all[0].Operation != "blitz_session" || all[0].DurationS != 0.5 {
		t.Errorf("GetRecentTraces()[0] = %+v, want the most recently logged trace", all[0])
	}

	blitzOnly := s.GetRecentTraces("blitz_session", 10)
	if len(blitzOnly) != 2 {
		t.Fatalf("GetRecentTraces(\"blitz_session\", 10) returned %d traces, want 2", len(blitzOnly))
	}
	for _, tr := range blitzOnly {
		if tr.Operation != "blitz_session" {
			t.Errorf("GetRecentTraces filter leaked operation %q", tr.Operation)
		}
	}
}

func TestGetRecentTracesRespectsLimit(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Log(ctx, Trace{Operation: "x", Success: true})
	}
	if got := s.GetRecentTraces("", 2); len(got) != 2 {
		t.Errorf("GetRecentTraces limit=2 returned %d, want 2", len(got))
	}
}

func TestGetPerformanceSummary(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	s.Log(ctx, Trace{Operation: "blitz_session", Success: true, DurationS: 2.0})
	s.Log(ctx, Trace{Operation: "blitz_session", Success: false, DurationS: 4.0})
	s.Log(ctx, Trace{Operation: "queue_session", Success: true, DurationS: 1.0})

	summary := s.GetPerformanceSummary()
	if summary.TotalOperations != 3 {
		t.Errorf("TotalOperations = %d, want 3", summary.TotalOperations)
	}
	if summary.SuccessRate < 0.66 || summary.SuccessRate > 0.67 {
		t.Errorf("SuccessRate = %v, want ~0.667", summary.SuccessRate)
	}

	blitzStats, ok := summary.ByOperation["blitz_session"]
	if !ok {
		t.Fatal("ByOperation missing blitz_session")
	}
	if blitzStats.Count != 2 || blitzStats.SuccessCount != 1 {
		t.Errorf("blitz_session stats = %+v, want Count=2 SuccessCount=1", blitzStats)
	}
	if blitzStats.AvgDurationS != 3.0 {
		t.Errorf("blitz_session AvgDurationS = %v, want 3.0", blitzStats.AvgDurationS)
	}
}

func TestPerformanceSummaryInvalidatesOnNewWrite(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	s.Log(ctx, Trace{Operation: "x", Success: true})

	first := s.GetPerformanceSummary()
	if first.TotalOperations != 1 {
		t.Fatalf("TotalOperations = %d, want 1", first.TotalOperations)
	}

	s.Log(ctx, Trace{Operation: "x", Success: true})
	second := s.GetPerformanceSummary()
	if second.TotalOperations != 2 {
		t.Errorf("TotalOperations after second write = %d, want 2 (cache not invalidated)", second.TotalOperations)
	}
}

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	for i := 0; i < ringSize+5; i++ {
		s.Log(ctx, Trace{Operation: "x", Success: true})
	}

	summary := s.GetPerformanceSummary()
	if summary.TotalOperations != ringSize {
		t.Errorf("TotalOperations = %d, want ring capped at %d", summary.TotalOperations, ringSize)
	}
}
