package history

import (
	"context"
	"encoding/json"
)

//go:generate go tool mockgen -destination=./mocks/store_mock.go -package=mocks . Store

// Entry は再生ログに記録された1件のイベントです。
type Entry struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Store はルーム別の有界な再生ログです。直近のイベントを新しい順で返します。
// 遅れて参加したクライアントへの補完配信に使います。
type Store interface {
	Append(ctx context.Context, roomCode, eventType string, payload []byte) error
	Recent(ctx context.Context, roomCode string, limit int) ([]Entry, error)
}
