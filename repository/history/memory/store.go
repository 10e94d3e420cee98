package memory

import (
	"context"
	"sync"
	"time"

	"ironveil/repository/history"
)

// DefaultMaxPerRoom はルームあたりの保持件数の既定値です。
const DefaultMaxPerRoom = 100

// Store はインメモリの有界再生ログです。先頭が最新になるよう保持します。
type Store struct {
	mu         sync.RWMutex
	byRoom     map[string][]history.Entry
	maxPerRoom int
	clk        func() time.Time
}

func NewStore(maxPerRoom int) *Store {
	if maxPerRoom <= 0 {
		maxPerRoom = DefaultMaxPerRoom
	}
	return &Store{
		byRoom:     make(map[string][]history.Entry),
		maxPerRoom: maxPerRoom,
		clk:        time.Now,
	}
}

// WithClock はテスト用に時間ソースを差し替えます。
func (s *Store) WithClock(clock func() time.Time) *Store {
	if clock != nil {
		s.clk = clock
	}
	return s
}

func (s *Store) Append(ctx context.Context, roomCode, eventType string, payload []byte) error {
	if roomCode == "" {
		return nil
	}
	entry := history.Entry{
		EventType: eventType,
		Data:      append([]byte(nil), payload...),
		Timestamp: s.clk().UnixMilli(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]history.Entry{entry}, s.byRoom[roomCode]...)
	if len(entries) > s.maxPerRoom {
		entries = entries[:s.maxPerRoom]
	}
	s.byRoom[roomCode] = entries
	return nil
}

func (s *Store) Recent(ctx context.Context, roomCode string, limit int) ([]history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byRoom[roomCode]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]history.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

var _ history.Store = (*Store)(nil)
