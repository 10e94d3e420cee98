package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ironveil/repository/gamesession"
)

// Store はインメモリのセッションリポジトリです。開発・テスト用です。
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*gamesession.Session
	codeToID map[string]string
}

func NewStore() *Store {
	return &Store{
		byID:     make(map[string]*gamesession.Session),
		codeToID: make(map[string]string),
	}
}

// Create は新しいセッション記録を登録して返します。
func (s *Store) Create(name, code string, maxPlayers int, isPublic bool) *gamesession.Session {
	sess := &gamesession.Session{
		ID:         uuid.NewString(),
		Code:       code,
		Name:       name,
		MaxPlayers: maxPlayers,
		IsPublic:   isPublic,
		Status:     "Waiting",
		CreatedAt:  time.Now(),
	}
	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.codeToID[sess.Code] = sess.ID
	s.mu.Unlock()
	return sess
}

func (s *Store) GetByCode(ctx context.Context, code string) (*gamesession.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codeToID[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gamesession.ErrNotFound, code)
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", gamesession.ErrNotFound, id)
	}
	sess.Status = status
	return nil
}

var _ gamesession.Repository = (*Store)(nil)
