package domain

import (
	"context"
)

//go:generate go tool mockgen -destination=./mocks/gateway_mock.go -package=mocks . Gateway

// Gateway はサーバー層からゲームロジックへの呼び出し境界です。
type Gateway interface {
	// Handle は受信した1フレーム（opの封筒）を処理します。
	Handle(ctx context.Context, sessionID SessionID, data []byte) error
	// Disconnect は切断時の暗黙的なleave処理を行います。エラーは飲み込みます。
	Disconnect(ctx context.Context, sessionID SessionID)
}
