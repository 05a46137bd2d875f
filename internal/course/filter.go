package course

import (
	"fmt"
	"strconv"
	"strings"
)

// ChapterFilter is a membership set over chapter ordinals. A nil filter
// includes every chapter.
type ChapterFilter map[int]struct{}

// Includes reports whether the chapter ordinal passes the filter.
func (f ChapterFilter) Includes(ordinal int) bool {
	if f == nil {
		return true
	}
	_, ok := f[ordinal]
	return ok
}

// ParseChapterFilter parses expressions of the form "1,3-5,7" into a
// filter set. An empty expression yields a nil (all-inclusive) filter.
func ParseChapterFilter(expr string) (ChapterFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	filter := make(ChapterFilter)
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parseOrdinal(lo)
			if err != nil {
				return nil, fmt.Errorf("chapter filter %q: %w", part, err)
			}
			end, err := parseOrdinal(hi)
			if err != nil {
				return nil, fmt.Errorf("chapter filter %q: %w", part, err)
			}
			if end < start {
				return nil, fmt.Errorf("chapter filter %q: range end before start", part)
			}
			for ordinal := start; ordinal <= end; ordinal++ {
				filter[ordinal] = struct{}{}
			}
			continue
		}
		ordinal, err := parseOrdinal(part)
		if err != nil {
			return nil, fmt.Errorf("chapter filter %q: %w", part, err)
		}
		filter[ordinal] = struct{}{}
	}
	if len(filter) == 0 {
		return nil, nil
	}
	return filter, nil
}

func parseOrdinal(value string) (int, error) {
	ordinal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("not a chapter number: %q", value)
	}
	if ordinal < 1 {
		return 0, fmt.Errorf("chapter numbers start at 1, got %d", ordinal)
	}
	return ordinal, nil
}
