package db

import (
	"reflect"
	"testing"
)

func TestUnionKeywordsMergesNewWords(t *testing.T) {
	t.Parallel()

	got := unionKeywords([]string{"ai"}, []string{"robotics", "ai"})
	want := []string{"ai", "robotics"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected union: got %v want %v", got, want)
	}
}

func TestUnionKeywordsIdempotent(t *testing.T) {
	t.Parallel()

	stored := []string{"ai", "quantum"}
	got := unionKeywords(stored, []string{"quantum", "ai"})
	if !reflect.DeepEqual(got, stored) {
		t.Fatalf("expected stored set unchanged, got %v", got)
	}
}

func TestMergeKeywordJSON(t *testing.T) {
	t.Parallel()

	merged, changed, err := mergeKeywordJSON(`["ai"]`, []string{"robotics"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected a change when a new keyword arrives")
	}
	if merged != `["ai","robotics"]` {
		t.Fatalf("unexpected merged JSON: %s", merged)
	}

	same, changed, err := mergeKeywordJSON(merged, []string{"ai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("expected re-saving covered keywords to be a no-op")
	}
	if same != merged {
		t.Fatalf("stored JSON should be untouched, got %s", same)
	}
}

func TestMergeKeywordJSONRejectsJunk(t *testing.T) {
	t.Parallel()

	if _, _, err := mergeKeywordJSON(`{"not":"an array"}`, []string{"ai"}); err == nil {
		t.Fatal("expected an error for malformed stored keywords")
	}
}
