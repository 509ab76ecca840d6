package listing

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParseDates(t *testing.T) {
	tests := []struct {
		text       string
		posted     *time.Time
		due        *time.Time
	}{
		{"Posted: 10/01/2024 Due: 10/15/2024", day(2024, 10, 1), day(2024, 10, 15)},
		{"Due 2024-11-05 | Published 2024-10-20", day(2024, 10, 20), day(2024, 11, 5)},
		{"Issued October 3, 2024 - Responses due Oct. 31, 2024", day(2024, 10, 3), day(2024, 10, 31)},
		{"Posted on 3 September 2024, closing date: Sept 30, 2024", day(2024, 9, 3), day(2024, 9, 30)},
		{"Closes: 12/01/2024", nil, day(2024, 12, 1)},
		{"Posted 2024-10-02", day(2024, 10, 2), nil},
		{"Deadline TBD. Posted: 2024-10-02", day(2024, 10, 2), nil},
		{"10/01/2024 - 10/15/2024", nil, nil},
		{"", nil, nil},
	}
	for _, tt := range tests {
		posted, due := ParseDates(tt.text)
		if !sameDay(posted, tt.posted) {
			t.Errorf("ParseDates(%q) posted = %v, want %v", tt.text, posted, tt.posted)
		}
		if !sameDay(due, tt.due) {
			t.Errorf("ParseDates(%q) due = %v, want %v", tt.text, due, tt.due)
		}
	}
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func TestDeriveID_Stable(t *testing.T) {
	posted := day(2024, 10, 1)
	a := DeriveID("State University Website Redesign", posted)
	b := DeriveID("State University Website Redesign", day(2024, 10, 1))
	if a != b {
		t.Fatalf("ids differ: %s vs %s", a, b)
	}
	if len(a) != len("rfp-")+16 || a[:4] != "rfp-" {
		t.Fatalf("id format = %q", a)
	}

	// Case, accents, punctuation and spacing do not change the id.
	if c := DeriveID("  STATE university — website   redesign!", posted); c != a {
		t.Errorf("folded id %s != %s", c, a)
	}
	if d := DeriveID("State University Website Redesign", day(2024, 10, 2)); d == a {
		t.Error("different posted date gave the same id")
	}
	if e := DeriveID("State University Website Redesign", nil); e == a {
		t.Error("missing posted date gave the same id")
	}
}

func TestDeriveID_TitlePrefix(t *testing.T) {
	long := "Request for proposals for the comprehensive redesign and migration of the university public website to a modern content management platform"
	a := DeriveID(long+" phase one", nil)
	b := DeriveID(long+" phase two", nil)
	if a != b {
		t.Fatalf("titles equal in the first 80 folded characters should share an id")
	}
}

func TestASCIIFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Étude  Rénovation!", "etude renovation"},
		{"City: Logo-Refresh", "city logo refresh"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := ASCIIFold(tt.in); got != tt.want {
			t.Errorf("ASCIIFold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
