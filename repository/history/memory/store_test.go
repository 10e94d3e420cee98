package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestStore_AppendAndRecent(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, "ROOM01", "playerMoved", []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := s.Recent(ctx, "ROOM01", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// 新しい順
	if string(entries[0].Data) != `{"n":2}` {
		t.Errorf("most recent entry should come first, got %s", entries[0].Data)
	}
}

// 保持件数の上限を超えた古いエントリは破棄されます。
func TestStore_Bounded(t *testing.T) {
	s := NewStore(5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.Append(ctx, "ROOM01", "ev", []byte(fmt.Sprintf("%d", i)))
	}

	entries, _ := s.Recent(ctx, "ROOM01", 0)
	if len(entries) != 5 {
		t.Fatalf("expected 5 retained entries, got %d", len(entries))
	}
	if string(entries[0].Data) != "9" {
		t.Errorf("newest entry should be retained, got %s", entries[0].Data)
	}
	if string(entries[4].Data) != "5" {
		t.Errorf("oldest retained entry should be 5, got %s", entries[4].Data)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.Append(ctx, "ROOM01", "ev", []byte("x"))
	}

	entries, _ := s.Recent(ctx, "ROOM01", 4)
	if len(entries) != 4 {
		t.Errorf("expected 4 entries with limit, got %d", len(entries))
	}
}

func TestStore_UnknownRoom(t *testing.T) {
	s := NewStore(0)

	entries, err := s.Recent(context.Background(), "NOPE", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("unknown room should have no history")
	}
}

func TestStore_TimestampFromClock(t *testing.T) {
	fixed := time.UnixMilli(99_000)
	s := NewStore(0).WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	s.Append(ctx, "ROOM01", "ev", []byte("x"))
	entries, _ := s.Recent(ctx, "ROOM01", 1)
	if entries[0].Timestamp != 99_000 {
		t.Errorf("expected clock timestamp, got %d", entries[0].Timestamp)
	}
}
