package broker

import (
	"errors"
	"testing"
)

func TestEncodeDestinations(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want string
	}{
		{"single", []string{"a"}, "|a|"},
		{"sorted_and_deduped", []string{"b", "a", "b"}, "|a|b|"},
		{"all_dominates", []string{"a", "all", "b"}, "|all|"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := encodeDestinations(c.in); got != c.want {
				t.Fatalf("encodeDestinations(%v) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestSubscriptionPattern(t *testing.T) {
	if got, want := subscriptionPattern("room-1"), "*|room-1|*"; got != want {
		t.Fatalf("subscriptionPattern() = %q, want %q", got, want)
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("room-1"); err != nil {
		t.Fatalf("ValidateName(%q) = %v, want nil", "room-1", err)
	}
	err := ValidateName("a|b")
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("ValidateName(%q) = %v, want ErrInvalidChannel", "a|b", err)
	}
}

func TestDestinationWarnings(t *testing.T) {
	cases := []struct {
		name                  string
		in                    []string
		wantAllCollapsed      bool
		wantDuplicatesDropped bool
	}{
		{"single", []string{"a"}, false, false},
		{"duplicates", []string{"a", "a", "b"}, false, true},
		{"all_dominates", []string{"a", "all", "b"}, true, false},
		{"all_alone", []string{"all"}, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			allCollapsed, duplicatesDropped := DestinationWarnings(c.in)
			if allCollapsed != c.wantAllCollapsed || duplicatesDropped != c.wantDuplicatesDropped {
				t.Fatalf("DestinationWarnings(%v) = (%v, %v), want (%v, %v)",
					c.in, allCollapsed, duplicatesDropped, c.wantAllCollapsed, c.wantDuplicatesDropped)
			}
		})
	}
}
