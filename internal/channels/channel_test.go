package channels

import "testing"

func TestSenderAllowed(t *testing.T) {
	cases := []struct {
		name      string
		allowFrom []string
		sender    string
		want      bool
	}{
		{"empty list allows all", nil, "U123", true},
		{"listed sender", []string{"U123", "U456"}, "U456", true},
		{"unlisted sender", []string{"U123"}, "U999", false},
		{"case insensitive", []string{"u123"}, "U123", true},
		{"whitespace trimmed", []string{" U123 "}, "U123", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := senderAllowed(tc.allowFrom, tc.sender); got != tc.want {
				t.Fatalf("senderAllowed(%v, %q) = %v, want %v", tc.allowFrom, tc.sender, got, tc.want)
			}
		})
	}
}
