package course

import "testing"

func TestParseChapterFilter(t *testing.T) {
	filter, err := ParseChapterFilter("1,3-5,7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, want := range []int{1, 3, 4, 5, 7} {
		if !filter.Includes(want) {
			t.Fatalf("expected chapter %d to be included", want)
		}
	}
	for _, skip := range []int{2, 6, 8} {
		if filter.Includes(skip) {
			t.Fatalf("expected chapter %d to be excluded", skip)
		}
	}
}

func TestParseChapterFilterEmptyMeansAll(t *testing.T) {
	filter, err := ParseChapterFilter("  ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if filter != nil {
		t.Fatalf("expected nil filter, got %v", filter)
	}
	if !filter.Includes(42) {
		t.Fatal("nil filter must include every chapter")
	}
}

func TestParseChapterFilterErrors(t *testing.T) {
	cases := []string{"abc", "0", "5-2", "1,x"}
	for _, expr := range cases {
		if _, err := ParseChapterFilter(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}
