package queue

import "testing"

func TestIsHumanSpeech(t *testing.T) {
	cases := []struct {
		heard string
		want  bool
	}{
		{"", false},
		{"hi", false},
		{"Hello!", false},
		{"good morning", false},
		{"Your call is important to us", false},
		{"please hold while we connect you", false},
		{"you are number 4 in the queue, your position in the queue", false},
		{"All calls may be recorded for quality purposes", false},
		{"All of our agents are busy at the moment", false},
		{"Please stay on the line and we will be with you shortly", false},
		{"Thank you for waiting, please continue to hold", false},
		{"Hi this is Dave from the plumbing shop, how can I help", true},
		{"yeah sorry about that, what do you need", true},
	}

	for _, c := range cases {
		if got := isHumanSpeech(c.heard); got != c.want {
			t.Errorf("isHumanSpeech(%q) = %v, want %v", c.heard, got, c.want)
		}
	}
}

func TestIsDigits(t *testing.T) {
	cases := map[string]bool{
		"":     false,
		"1":    true,
		"123":  true,
		"HOLD": false,
		"1a":   false,
	}
	for input, want := range cases {
		if got := isDigits(input); got != want {
			t.Errorf("isDigits(%q) = %v, want %v", input, got, want)
		}
	}
}
