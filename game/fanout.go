package game

import (
	"context"
	"encoding/json"
	"log/slog"

	"ironveil/domain"
	"ironveil/repository/history"
)

// Fanout はルームグループへのブロードキャストと、バス配信・履歴追記の
// ミラーを担当します。バス・履歴の失敗は必ず飲み込みます。権威的な状態
// 変更は既に完了しており、サイドチャネルの失敗で巻き戻してはなりません。
type Fanout struct {
	index   *domain.Index
	pubsub  domain.PubSub
	bus     domain.EventBus
	history history.Store
}

func NewFanout(index *domain.Index, pubsub domain.PubSub, bus domain.EventBus, hist history.Store) *Fanout {
	return &Fanout{
		index:   index,
		pubsub:  pubsub,
		bus:     bus,
		history: hist,
	}
}

// Broadcast はルーム内の全セッションへイベントを配送し、バスと履歴へミラーします。
func (f *Fanout) Broadcast(ctx context.Context, roomCode, eventType string, payload any) {
	data, err := domain.Event{Type: eventType, Data: payload}.Encode()
	if err != nil {
		slog.WarnContext(ctx, "fanout: encode failed", "event", eventType, "err", err)
		return
	}
	for _, sessionID := range f.index.SessionsInRoom(roomCode) {
		f.pubsub.Publish(ctx, domain.SessionTopic(sessionID), domain.Message{Data: data})
	}
	f.mirror(ctx, roomCode, eventType, payload)
}

// SendTo は単一セッションへのユニキャストです。バス・履歴へはミラーしません。
func (f *Fanout) SendTo(ctx context.Context, sessionID domain.SessionID, eventType string, payload any) {
	data, err := domain.Event{Type: eventType, Data: payload}.Encode()
	if err != nil {
		slog.WarnContext(ctx, "fanout: encode failed", "event", eventType, "err", err)
		return
	}
	f.pubsub.Publish(ctx, domain.SessionTopic(sessionID), domain.Message{Data: data})
}

// SendToUser はルーム内のユーザーを解決してユニキャストします。
// 接続が見つからない場合はno-opです。
func (f *Fanout) SendToUser(ctx context.Context, roomCode, userID, eventType string, payload any) {
	sessionID, ok := f.index.SessionByUser(roomCode, userID)
	if !ok {
		return
	}
	f.SendTo(ctx, sessionID, eventType, payload)
}

// mirror はバス配信と履歴追記を行います。失敗はログのみです。
func (f *Fanout) mirror(ctx context.Context, roomCode, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "fanout: marshal failed", "event", eventType, "err", err)
		return
	}
	topic := "room/" + roomCode + "/events/" + eventType
	if err := f.bus.Publish(ctx, topic, raw); err != nil {
		slog.WarnContext(ctx, "fanout: bus publish failed", "topic", topic, "err", err)
	}
	if err := f.history.Append(ctx, roomCode, eventType, raw); err != nil {
		slog.WarnContext(ctx, "fanout: history append failed", "room", roomCode, "err", err)
	}
}
