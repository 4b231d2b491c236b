package build

import "testing"

func TestNeedsClarification(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"build me something cool", true},
		{"surprise me", true},
		{"idk", true},
		{"hi", true},
		{"make a landing page for my bakery called Flour & Co", false},
		{"a portfolio site for a photographer", false},
		{"build a menu page for my restaurant", false},
	}

	for _, c := range cases {
		if got := needsClarification(c.message); got != c.want {
			t.Errorf("needsClarification(%q) = %v, want %v", c.message, got, c.want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"<!DOCTYPE html><html></html>":                "<!DOCTYPE html><html></html>",
		"```html\n<!DOCTYPE html><html></html>\n```": "<!DOCTYPE html><html></html>",
		"```\n<!DOCTYPE html><html></html>\n```":     "<!DOCTYPE html><html></html>",
	}
	for input, want := range cases {
		if got := stripCodeFences(input); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCapitalizeWords(t *testing.T) {
	cases := map[string]string{
		"flour & co bakery": "Flour & Co Bakery",
		"website":           "Website",
		"":                  "",
	}
	for input, want := range cases {
		if got := capitalizeWords(input); got != want {
			t.Errorf("capitalizeWords(%q) = %q, want %q", input, got, want)
		}
	}
}
