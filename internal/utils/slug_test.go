package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"  Make.com & Zapier  ", "make-com-zapier"},
		{"n8n", "n8n"},
		{"AI -- Agents!!", "ai-agents"},
		{"---", ""},
		{"", ""},
		{"Café Automation", "café-automation"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
