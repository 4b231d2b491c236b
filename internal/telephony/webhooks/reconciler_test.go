package webhooks

import "testing"

func TestExtractQuote(t *testing.T) {
	cases := []struct {
		text string
		want *float64
	}{
		{"Available, £95 call-out fee", ptr(95.0)},
		{"$120.50 for parts and labour", ptr(120.50)},
		{"call 3 businesses", nil},
		{"£50 or £100, depending on access", ptr(50.0)},
		{"", nil},
		{"no currency here, just 42", nil},
	}

	for _, c := range cases {
		got := ExtractQuote(c.text)
		if c.want == nil {
			if got != nil {
				t.Errorf("ExtractQuote(%q) = %v, want nil", c.text, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("ExtractQuote(%q) = nil, want %v", c.text, *c.want)
			continue
		}
		if *got != *c.want {
			t.Errorf("ExtractQuote(%q) = %v, want %v", c.text, *got, *c.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }
