package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRunID_Format(t *testing.T) {
	id := RunID()
	raw, ok := strings.CutPrefix(id, "run_")
	if !ok {
		t.Fatalf("RunID = %q, want run_ prefix", id)
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Version() != 7 {
		t.Errorf("version = %d, want 7", u.Version())
	}
	sec, _ := u.Time().UnixTime()
	if d := time.Since(time.Unix(sec, 0)); d < -time.Second || d > time.Minute {
		t.Errorf("embedded time is %v away from now", d)
	}
}

func TestRunID_UniqueAndSorted(t *testing.T) {
	prev := RunID()
	seen := map[string]bool{prev: true}
	for i := 0; i < 500; i++ {
		if i%100 == 0 {
			time.Sleep(2 * time.Millisecond)
		}
		id := RunID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		if id < prev {
			t.Fatalf("%s sorts before earlier %s", id, prev)
		}
		seen[id] = true
		prev = id
	}
}
