package domain

import (
	"errors"
	"sync"
)

// ErrNotInRoom はルームに紐付いていない接続からの呼び出しに返されるエラーです。
var ErrNotInRoom = errors.New("connection is not bound to a room")

// Binding は接続と(ルーム, ユーザー)の生きた対応関係です。
type Binding struct {
	SessionID SessionID
	RoomID    string
	RoomCode  string
	UserID    string
	Username  string
}

// Index は接続→Bindingの索引です。Bind/Lookup/UnbindはO(1)です。
type Index struct {
	mu         sync.RWMutex
	bySess     map[SessionID]Binding
	sessByUser map[string]SessionID // roomCode+"/"+userID → session
}

func NewIndex() *Index {
	return &Index{
		bySess:     make(map[SessionID]Binding),
		sessByUser: make(map[string]SessionID),
	}
}

func (ix *Index) Bind(b Binding) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.bySess[b.SessionID] = b
	ix.sessByUser[userKey(b.RoomCode, b.UserID)] = b.SessionID
}

func (ix *Index) Lookup(id SessionID) (Binding, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	b, ok := ix.bySess[id]
	if !ok {
		return Binding{}, ErrNotInRoom
	}
	return b, nil
}

// Unbind は削除したBindingを返します。未登録の場合はfalseです。
func (ix *Index) Unbind(id SessionID) (Binding, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	b, ok := ix.bySess[id]
	if !ok {
		return Binding{}, false
	}
	delete(ix.bySess, id)
	if cur, ok := ix.sessByUser[userKey(b.RoomCode, b.UserID)]; ok && cur == id {
		delete(ix.sessByUser, userKey(b.RoomCode, b.UserID))
	}
	return b, true
}

func (ix *Index) CountInRoom(roomCode string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, b := range ix.bySess {
		if b.RoomCode == roomCode {
			n++
		}
	}
	return n
}

// SessionsInRoom はルームに属する全セッションを返します。
func (ix *Index) SessionsInRoom(roomCode string) []SessionID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]SessionID, 0, len(ix.bySess))
	for id, b := range ix.bySess {
		if b.RoomCode == roomCode {
			out = append(out, id)
		}
	}
	return out
}

// SessionByUser はルーム内のユーザーに対応するセッションを返します。
func (ix *Index) SessionByUser(roomCode, userID string) (SessionID, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.sessByUser[userKey(roomCode, userID)]
	return id, ok
}

func userKey(roomCode, userID string) string {
	return roomCode + "/" + userID
}
