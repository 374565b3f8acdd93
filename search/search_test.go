package search

import "testing"

func TestRewriteQuotedPhrase(t *testing.T) {
	got := Rewrite(`"hello world"`)
	want := `"hello world"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewritePassesThroughReservedOperators(t *testing.T) {
	cases := []string{
		"python AND handler",
		"python OR javascript",
		"python NEAR handler",
	}
	for _, c := range cases {
		if got := Rewrite(c); got != c {
			t.Fatalf("Rewrite(%q) = %q, want unchanged", c, got)
		}
	}
}

func TestRewriteSplitsAndOrJoinsPlainQueries(t *testing.T) {
	got := Rewrite("python handler errors")
	want := "python OR handler OR errors"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteSingleToken(t *testing.T) {
	if got := Rewrite("python"); got != "python" {
		t.Fatalf("got %q, want %q", got, "python")
	}
}

func TestRewriteEmptyQuery(t *testing.T) {
	if got := Rewrite("   "); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
