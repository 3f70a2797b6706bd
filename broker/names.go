package broker

import (
	"fmt"
	"sort"
	"strings"
)

// allDestination is a reserved name meaning "every joined node", dominating
// any other destination present in the same Send call.
const allDestination = "all"

const delimiter = "|"

// encodeDestinations builds the delimiter-encoded topic a publish fans out
// to, e.g. ["a", "b"] -> "|a|b|". Destinations are deduplicated and sorted so
// equivalent destination sets always publish to the same literal topic.
// If allDestination is present, every other name is dropped.
func encodeDestinations(destinations []string) string {
	set := make(map[string]struct{}, len(destinations))
	for _, d := range destinations {
		if d == allDestination {
			return delimiter + allDestination + delimiter
		}
		set[d] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for d := range set {
		names = append(names, d)
	}
	sort.Strings(names)
	return delimiter + strings.Join(names, delimiter) + delimiter
}

// subscriptionPattern returns the PSUBSCRIBE pattern a node joining name
// should use so it matches any encoded topic that includes name.
func subscriptionPattern(name string) string {
	return "*" + delimiter + name + delimiter + "*"
}

// ValidateName rejects a channel or destination name containing the
// delimiter, which would otherwise corrupt the encoded topic or pattern.
// Adapter implementations call this from Join, Leave, and Send.
func ValidateName(name string) error {
	if strings.Contains(name, delimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidChannel, name, delimiter)
	}
	return nil
}

// DestinationWarnings reports whether encoding destinations will silently
// normalize them: "all" dominates any other name present in the same call,
// and duplicate names are collapsed. Callers that hold a logger should warn
// when either is true before publishing.
func DestinationWarnings(destinations []string) (allCollapsed, duplicatesDropped bool) {
	counts := make(map[string]int, len(destinations))
	hasAll := false
	for _, d := range destinations {
		counts[d]++
		if d == allDestination {
			hasAll = true
		}
	}
	allCollapsed = hasAll && len(counts) > 1
	for _, n := range counts {
		if n > 1 {
			duplicatesDropped = true
			break
		}
	}
	return allCollapsed, duplicatesDropped
}
