package reader

import "testing"

func TestCleanText(t *testing.T) {
	t.Parallel()

	raw := "  First   line \r\n\r\n Second\tline \r third "
	want := "First line\n\nSecond line\n\nthird"
	if got := CleanText(raw); got != want {
		t.Fatalf("unexpected cleaned text: got %q want %q", got, want)
	}
}

func TestCleanTextEmpty(t *testing.T) {
	t.Parallel()

	if got := CleanText(" \r\n \n "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
