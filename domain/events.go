package domain

import (
	"context"
	"encoding/json"
)

//go:generate go tool mockgen -destination=./mocks/eventbus_mock.go -package=mocks . EventBus

// クライアントへ配信されるイベント種別。
const (
	EventPlayerJoined   = "playerJoined"
	EventPlayerLeft     = "playerLeft"
	EventPlayerMoved    = "playerMoved"
	EventBulletSpawned  = "bulletSpawned"
	EventBulletDespawn  = "bulletDespawned"
	EventPlayerHit      = "playerHit"
	EventPlayerDied     = "playerDied"
	EventGameStarted    = "gameStarted"
	EventGameFinished   = "gameFinished"
	EventMatchResult    = "matchResult"
	EventCellDestroyed  = "cellDestroyed"
	EventPowerUpSpawned = "powerUpSpawned"
	EventPowerUpRemoved = "powerUpRemoved"
	EventChatMessage    = "chatMessage"
	EventMapState       = "mapState"
	EventPowerUpState   = "powerUpState"
	EventSpawnAssigned  = "spawnAssigned"
	EventRoomSnapshot   = "roomSnapshot"
	EventEventHistory   = "eventHistory"
	EventError          = "error"
)

// 弾の消滅理由。despawnは弾ごとに一度しか発生しません。
const (
	DespawnHit     = "hit"
	DespawnBlock   = "block"
	DespawnShield  = "shield"
	DespawnTimeout = "timeout"
)

// Event はクライアントへ送る1件のイベント封筒です。
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// EventBus は外部ブローカーへのfire-and-forget配信境界です。
// 配信失敗は呼び出し元の処理を失敗させてはなりません。
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// NopEventBus は何もしないEventBusです。ブローカー未設定時に使います。
type NopEventBus struct{}

func (NopEventBus) Publish(ctx context.Context, topic string, payload []byte) error { return nil }

var _ EventBus = NopEventBus{}
