package places

import "testing"

func TestSearchWithNoAPIKeyUsesFallback(t *testing.T) {
	r := New("")
	got := r.Search(nil, "plumber", "London", nil, 5)
	if len(got) == 0 {
		t.Fatal("Search with no API key returned no businesses")
	}
	for _, b := range got {
		if b.Phone == "" {
			t.Errorf("fallback business %q has no phone number", b.Name)
		}
	}
}

func TestFallbackBusinessesExactKey(t *testing.T) {
	got := fallbackBusinesses("plumber", 10)
	if len(got) != len(fallbackCatalog["plumber"]) {
		t.Errorf("fallbackBusinesses(\"plumber\") returned %d, want %d", len(got), len(fallbackCatalog["plumber"]))
	}
}

func TestFallbackBusinessesSubstringMatch(t *testing.T) {
	got := fallbackBusinesses("emergency electrician", 10)
	if len(got) != len(fallbackCatalog["electrician"]) {
		t.Errorf("fallbackBusinesses(\"emergency electrician\") returned %d, want %d matching electrician catalog", len(got), len(fallbackCatalog["electrician"]))
	}
}

func TestFallbackBusinessesUnknownQueryUsesDefault(t *testing.T) {
	got := fallbackBusinesses("submarine repair", 10)
	if len(got) != len(fallbackCatalog["default"]) {
		t.Errorf("fallbackBusinesses(\"submarine repair\") returned %d, want default catalog length %d", len(got), len(fallbackCatalog["default"]))
	}
}

func TestCapBusinessesRespectsMax(t *testing.T) {
	got := capBusinesses(fallbackCatalog["plumber"], 2)
	if len(got) != 2 {
		t.Errorf("capBusinesses(max=2) returned %d, want 2", len(got))
	}
}

func TestCapBusinessesZeroMeansUnbounded(t *testing.T) {
	got := capBusinesses(fallbackCatalog["plumber"], 0)
	if len(got) != len(fallbackCatalog["plumber"]) {
		t.Errorf("capBusinesses(max=0) returned %d, want unbounded %d", len(got), len(fallbackCatalog["plumber"]))
	}
}
