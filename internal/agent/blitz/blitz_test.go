package blitz

import (
	"testing"

	"github.com/DeepNandre/friendlyy/internal/models"
)

func TestServiceOrDefault(t *testing.T) {
	cases := map[string]string{
		"":        "service",
		"plumber": "plumber",
		"roofing": "roofing",
	}
	for input, want := range cases {
		if got := serviceOrDefault(input); got != want {
			t.Errorf("serviceOrDefault(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestAllTerminal(t *testing.T) {
	cases := []struct {
		name  string
		calls []models.CallRecord
		want  bool
	}{
		{"empty", nil, true},
		{"all terminal", []models.CallRecord{{Status: models.CallComplete}, {Status: models.CallFailed}}, true},
		{"one pending", []models.CallRecord{{Status: models.CallComplete}, {Status: models.CallRinging}}, false},
	}
	for _, c := range cases {
		if got := allTerminal(c.calls); got != c.want {
			t.Errorf("%s: allTerminal() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSummarizeNoSuccesses(t *testing.T) {
	blitz := &models.BlitzSession{
		ParsedParams: models.RouterParams{Service: "plumber"},
		Calls:        []models.CallRecord{{Status: models.CallFailed}, {Status: models.CallNoAnswer}},
	}
	got := summarize(blitz)
	if got == "" {
		t.Fatal("summarize() returned empty string")
	}
	want := "I called 2 plumber but couldn't get through to any of them. Would you like me to try different ones?"
	if got != want {
		t.Errorf("summarize() = %q, want %q", got, want)
	}
}

func TestSummarizeWithResults(t *testing.T) {
	quote := "We can do Tuesday at 2pm for £80"
	blitz := &models.BlitzSession{
		ParsedParams: models.RouterParams{Service: "plumber"},
		Calls: []models.CallRecord{
			{Business: models.Business{Name: "Ace Plumbing"}, Status: models.CallComplete, Result: &quote},
			{Business: models.Business{Name: "Best Plumbing"}, Status: models.CallFailed},
		},
	}
	got := summarize(blitz)
	want := "Found 1 options for you:\n\n- Ace Plumbing: We can do Tuesday at 2pm for £80"
	if got != want {
		t.Errorf("summarize() = %q, want %q", got, want)
	}
}

func TestSuccessfulCallsFiltersIncomplete(t *testing.T) {
	quote := "£50"
	blitz := &models.BlitzSession{
		Calls: []models.CallRecord{
			{Status: models.CallComplete, Result: &quote},
			{Status: models.CallComplete, Result: nil},
			{Status: models.CallFailed, Result: &quote},
		},
	}
	got := successfulCalls(blitz)
	if len(got) != 1 {
		t.Fatalf("successfulCalls() returned %d records, want 1", len(got))
	}
}

func TestCallControlURLIncludesPathSegments(t *testing.T) {
	a := &Agent{publicURL: "https://friendly.example.com"}

	got := a.callControlURL("sess-1", "call-1", "", false)
	want := "https://friendly.example.com/api/blitz/twiml/sess-1/call-1"
	if got != want {
		t.Errorf("callControlURL() = %q, want %q", got, want)
	}

	got = a.callControlURL("sess-1", "call-1", "abc123", true)
	want = "https://friendly.example.com/api/blitz/twiml/sess-1/call-1?audio_hash=abc123"
	if got != want {
		t.Errorf("callControlURL() with audio = %q, want %q", got, want)
	}
}

func TestStatusCallbackURL(t *testing.T) {
	a := &Agent{publicURL: "https://friendly.example.com"}
	got := a.statusCallbackURL("sess-1", "call-1")
	want := "https://friendly.example.com/api/blitz/webhook?session_id=sess-1&call_id=call-1"
	if got != want {
		t.Errorf("statusCallbackURL() = %q, want %q", got, want)
	}
}
