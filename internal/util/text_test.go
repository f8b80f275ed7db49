package util

import "testing"

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo wörld", 7, "héllo w"},
		{"hello", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncateRunes(tc.in, tc.limit); got != tc.want {
			t.Fatalf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestSanitizePostgresText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"nul\x00byte", "nulbyte"},
		{"bad\xffutf8", "badutf8"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizePostgresText(tc.in); got != tc.want {
			t.Fatalf("SanitizePostgresText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Treaty of   Pressburg ", "Treaty of Pressburg"},
		{"Napoleon", "Napoleon"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
