package postgres

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestULIDGeneratorMonotonicWithinMillisecond(t *testing.T) {
	g := NewULIDGenerator()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	prev := g.Generate()
	for i := 0; i < 100; i++ {
		next := g.Generate()
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		id, err := ulid.ParseStrict(next)
		if err != nil {
			t.Fatalf("invalid ulid %q: %v", next, err)
		}
		if id.Time() != ulid.Timestamp(fixed) {
			t.Fatalf("unexpected timestamp %d", id.Time())
		}
		prev = next
	}
}
