package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := New("")

	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "Encoded product destination",
			input:    "https://www.walmart.com/sp/track?bt=1&eventST=click&rd=https%3A%2F%2Fwww.walmart.com%2Fip%2FGreat-Value-Whole-Milk%2F10450114&pos=1",
			expected: "https://www.walmart.com/ip/Great-Value-Whole-Milk/10450114",
			ok:       true,
		},
		{
			name:     "Parameter at end of string",
			input:    "/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F12345",
			expected: "https://www.walmart.com/ip/12345",
			ok:       true,
		},
		{
			name:     "Already decoded destination",
			input:    "/sp/track?rd=https://www.walmart.com/ip/12345&x=1",
			expected: "https://www.walmart.com/ip/12345",
			ok:       true,
		},
		{
			name:  "Missing parameter",
			input: "https://www.walmart.com/ip/Great-Value-Whole-Milk/10450114",
		},
		{
			name:  "Destination outside product path",
			input: "/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fcp%2Ffood%2F976759",
		},
		{
			name:  "Other retailer",
			input: "/track?rd=https%3A%2F%2Fwww.example.com%2Fip%2F1",
		},
		{
			name:  "Empty parameter",
			input: "/track?rd=&pos=1",
		},
		{
			name:     "Key ending in rd before the real parameter",
			input:    "https://www.walmart.com/sp/track?bird=x&rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F123&pos=1",
			expected: "https://www.walmart.com/ip/123",
			ok:       true,
		},
		{
			name:     "Lookalike key with foreign destination first",
			input:    "https://www.walmart.com/sp/track?xrd=https%3A%2F%2Fevil.example%2F&rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F123",
			expected: "https://www.walmart.com/ip/123",
			ok:       true,
		},
		{
			name:  "Lookalike key only",
			input: "https://www.walmart.com/sp/track?hrd=https%3A%2F%2Fwww.walmart.com%2Fip%2F999",
		},
		{
			name:     "Bare parameter without query",
			input:    "rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F5",
			expected: "https://www.walmart.com/ip/5",
			ok:       true,
		},
		{
			name:     "Second rd is the product",
			input:    "/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fcp%2F1&rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F7",
			expected: "https://www.walmart.com/ip/7",
			ok:       true,
		},
		{
			name:  "Empty string",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
			assert.NotContains(t, got, "%3A")
			assert.NotContains(t, got, "%2F")
		})
	}
}

func TestResolveCustomPrefix(t *testing.T) {
	r := New("https://shop.example.com/p/")

	got, ok := r.Resolve("/c?rd=https%3A%2F%2Fshop.example.com%2Fp%2Fmilk")
	assert.True(t, ok)
	assert.Equal(t, "https://shop.example.com/p/milk", got)

	_, ok = r.Resolve("/c?rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F1")
	assert.False(t, ok)
}

func TestResolveAll(t *testing.T) {
	r := New("")

	urls := r.ResolveAll([]string{
		"/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F1",
		"/ip/no-redirect/2",
		"/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F3&pos=3",
	})

	assert.Equal(t, []string{
		"https://www.walmart.com/ip/1",
		"https://www.walmart.com/ip/3",
	}, urls)
	assert.Empty(t, r.ResolveAll(nil))
}
