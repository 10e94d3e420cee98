package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ironveil/domain"
	"ironveil/repository/history"
	"ironveil/utils"
)

const (
	historyReplayLimit = 50
	speedBoostDuration = 10 * time.Second
)

// Gateway はクライアントの操作を受け付けるRPC層です。自身は状態を持たず、
// 全操作はまず接続のBindingを解決してから各コンポーネントへ委譲します。
//
// ヒット判定は射手クライアントの自己申告です。サーバーは弾の有効性・
// シールド・1弾1ダメージの不変条件のみを検証します（信頼境界に注意）。
type Gateway struct {
	index   *domain.Index
	rooms   *Registry
	combat  *Combat
	fanout  *Fanout
	history history.Store
	clk     func() time.Time
}

func NewGateway(index *domain.Index, rooms *Registry, combat *Combat, fanout *Fanout, hist history.Store) *Gateway {
	return &Gateway{
		index:   index,
		rooms:   rooms,
		combat:  combat,
		fanout:  fanout,
		history: hist,
		clk:     time.Now,
	}
}

// WithClock はテスト用に時間ソースを差し替えます。
func (g *Gateway) WithClock(clock func() time.Time) *Gateway {
	if clock != nil {
		g.clk = clock
	}
	return g
}

// Handle は1フレームを処理します。呼び出し側へ伝えるべき失敗は
// errorイベントとして返送します。
func (g *Gateway) Handle(ctx context.Context, sessionID domain.SessionID, data []byte) error {
	env, err := ParseEnvelope(data)
	if err != nil {
		return err
	}
	if err := g.dispatch(ctx, sessionID, env); err != nil {
		g.fanout.SendTo(ctx, sessionID, domain.EventError, errorCode(err))
		return err
	}
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, sessionID domain.SessionID, env *Envelope) error {
	switch env.Op {
	case OpJoin:
		var req JoinRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.Join(ctx, sessionID, req)
	case OpLeave:
		return g.Leave(ctx, sessionID)
	case OpUpdatePosition:
		var req PositionUpdate
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.UpdatePosition(ctx, sessionID, req)
	case OpSpawnBullet:
		var req SpawnBulletRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.SpawnBullet(ctx, sessionID, req)
	case OpReportHit:
		var req HitReport
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.ReportHit(ctx, sessionID, req)
	case OpReportObstacleHit:
		var req ObstacleHitReport
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.ReportObstacleHit(ctx, sessionID, req)
	case OpGetMap:
		return g.GetMap(ctx, sessionID)
	case OpDestroyCell:
		var req CellRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.DestroyCell(ctx, sessionID, req)
	case OpRequestSpawn:
		return g.RequestSpawn(ctx, sessionID)
	case OpSendChat:
		var req ChatRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.SendChat(ctx, sessionID, req)
	case OpSetReady:
		var req ReadyRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.SetReady(ctx, sessionID, req)
	case OpGetPowerUps:
		return g.GetPowerUps(ctx, sessionID)
	case OpCollectPowerUp:
		var req CollectRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ErrInvalidEnvelope
		}
		return g.CollectPowerUp(ctx, sessionID, req)
	default:
		return ErrUnknownOp
	}
}

// Join はルームへ参加させ、参加通知・スナップショット・初期位置・
// 直近イベントの補完を配信します。
func (g *Gateway) Join(ctx context.Context, sessionID domain.SessionID, req JoinRequest) error {
	userID := req.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = "Player-" + userID[:min(8, len(userID))]
	}

	result, err := g.rooms.Join(ctx, req.RoomCode, userID, username)
	if err != nil {
		return err
	}

	g.index.Bind(domain.Binding{
		SessionID: sessionID,
		RoomID:    result.Room.RoomID,
		RoomCode:  req.RoomCode,
		UserID:    userID,
		Username:  username,
	})

	g.fanout.Broadcast(ctx, req.RoomCode, domain.EventPlayerJoined, map[string]any{
		"userId":   userID,
		"username": username,
	})
	g.fanout.SendTo(ctx, sessionID, domain.EventRoomSnapshot, result.Room)
	g.fanout.Broadcast(ctx, req.RoomCode, domain.EventPlayerMoved, result.Player)

	entries, err := g.history.Recent(ctx, req.RoomCode, historyReplayLimit)
	if err != nil {
		slog.WarnContext(ctx, "gateway: history replay failed", "room", req.RoomCode, "err", err)
		return nil
	}
	if len(entries) > 0 {
		g.fanout.SendTo(ctx, sessionID, domain.EventEventHistory, entries)
	}
	return nil
}

// Leave は退室処理です。Bindingが無い場合もno-opで成功します（冪等）。
func (g *Gateway) Leave(ctx context.Context, sessionID domain.SessionID) error {
	binding, ok := g.index.Unbind(sessionID)
	if !ok {
		return nil
	}
	g.rooms.RemovePlayer(binding.RoomCode, binding.UserID)
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerLeft, binding.UserID)
	return nil
}

// Disconnect は切断時の暗黙的なleaveです。エラーは飲み込み、
// 接続の後始末を必ず完了させます。
func (g *Gateway) Disconnect(ctx context.Context, sessionID domain.SessionID) {
	if err := g.Leave(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "gateway: implicit leave failed", "sessionID", sessionID, "err", err)
	}
}

// PositionEvent はplayerMovedとして配信される位置更新です。
type PositionEvent struct {
	PlayerID  string  `json:"playerId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Timestamp int64   `json:"timestamp"`
}

func (g *Gateway) UpdatePosition(ctx context.Context, sessionID domain.SessionID, req PositionUpdate) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	if !utils.Finite(req.X) || !utils.Finite(req.Y) || !utils.Finite(req.Rotation) {
		return nil
	}
	if _, ok := g.rooms.SetPosition(binding.RoomCode, binding.UserID, req.X, req.Y, req.Rotation); !ok {
		// 死亡済みまたは未登録。黙って無視する。
		return nil
	}
	ts := req.Timestamp
	if ts <= 0 {
		ts = g.clk().UnixMilli()
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerMoved, PositionEvent{
		PlayerID:  binding.UserID,
		X:         req.X,
		Y:         req.Y,
		Rotation:  req.Rotation,
		Timestamp: ts,
	})
	return nil
}

// BulletDespawnEvent は弾の消滅通知です。reasonは hit/block/shield/timeout のいずれかです。
type BulletDespawnEvent struct {
	BulletID string `json:"bulletId"`
	Reason   string `json:"reason"`
}

func (g *Gateway) SpawnBullet(ctx context.Context, sessionID domain.SessionID, req SpawnBulletRequest) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	result := g.combat.SpawnBullet(binding.RoomID, binding.RoomCode, binding.UserID, req.X, req.Y, req.Rotation, req.Speed)
	// 掃除された弾のtimeout通知はスポーン可否に関係なく送る
	for _, id := range result.Expired {
		g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventBulletDespawn, BulletDespawnEvent{
			BulletID: id,
			Reason:   domain.DespawnTimeout,
		})
	}
	if result.BulletID == "" {
		return nil
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventBulletSpawned, result.Bullet)
	return nil
}

func (g *Gateway) ReportHit(ctx context.Context, sessionID domain.SessionID, req HitReport) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	result, ok := g.combat.ReportHit(ctx, binding.RoomCode, req.BulletID, req.TargetPlayerID)
	if !ok {
		// 失効済みの弾や未知のターゲット。検証no-op。
		return nil
	}

	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventBulletDespawn, BulletDespawnEvent{
		BulletID: req.BulletID,
		Reason:   result.Reason,
	})
	if result.Reason == domain.DespawnShield {
		// シールドが吸収。ライフは減らない。解除後の状態を再配信する。
		g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerMoved, result.Target)
		return nil
	}

	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerHit, result.Hit)
	if !result.TargetDied {
		return nil
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerDied, req.TargetPlayerID)

	if result.Finish.Finished {
		var winner any
		if result.Finish.WinnerID != "" {
			winner = result.Finish.WinnerID
		}
		g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventGameFinished, winner)
		for userID, didWin := range result.Finish.Verdicts {
			g.fanout.SendToUser(ctx, binding.RoomCode, userID, domain.EventMatchResult, didWin)
		}
	}
	return nil
}

func (g *Gateway) ReportObstacleHit(ctx context.Context, sessionID domain.SessionID, req ObstacleHitReport) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	if !g.combat.ReportObstacleHit(binding.RoomCode, req.BulletID) {
		return nil
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventBulletDespawn, BulletDespawnEvent{
		BulletID: req.BulletID,
		Reason:   domain.DespawnBlock,
	})
	return nil
}

func (g *Gateway) GetMap(ctx context.Context, sessionID domain.SessionID) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	g.fanout.SendTo(ctx, sessionID, domain.EventMapState, g.rooms.MapCells(binding.RoomID))
	return nil
}

func (g *Gateway) DestroyCell(ctx context.Context, sessionID domain.SessionID, req CellRequest) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	cell, ok := g.rooms.DestroyCell(binding.RoomID, req.X, req.Y)
	if !ok {
		// 破壊不能・破壊済みセルはno-op
		return nil
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventCellDestroyed, cell)
	return nil
}

func (g *Gateway) RequestSpawn(ctx context.Context, sessionID domain.SessionID) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	x, y, ok := g.rooms.AllocateSpawn(binding.RoomID, binding.UserID)
	if !ok {
		return nil
	}
	g.fanout.SendTo(ctx, sessionID, domain.EventSpawnAssigned, map[string]float64{"x": x, "y": y})
	return nil
}

// ChatMessage はルーム内チャットの1件です。
type ChatMessage struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Content  string `json:"content"`
	Role     string `json:"role"`
	SentAt   int64  `json:"sentAt"`
}

func (g *Gateway) SendChat(ctx context.Context, sessionID domain.SessionID, req ChatRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil
	}
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventChatMessage, ChatMessage{
		ID:       uuid.NewString(),
		UserID:   binding.UserID,
		Username: binding.Username,
		Content:  content,
		Role:     "User",
		SentAt:   g.clk().UnixMilli(),
	})
	return nil
}

func (g *Gateway) SetReady(ctx context.Context, sessionID domain.SessionID, req ReadyRequest) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	result, err := g.rooms.SetReady(ctx, binding.RoomCode, binding.UserID, req.Ready)
	if err != nil {
		return nil
	}
	if !result.Started {
		return nil
	}
	// 新しいマッチの開始。前マッチのワーキングテーブルを破棄する。
	g.combat.ClearRoom(binding.RoomCode)
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventGameStarted, result.Room)
	return nil
}

func (g *Gateway) GetPowerUps(ctx context.Context, sessionID domain.SessionID) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	g.fanout.SendTo(ctx, sessionID, domain.EventPowerUpState, g.rooms.PowerUps(binding.RoomID))
	return nil
}

func (g *Gateway) CollectPowerUp(ctx context.Context, sessionID domain.SessionID, req CollectRequest) error {
	binding, err := g.index.Lookup(sessionID)
	if err != nil {
		return err
	}
	removed, ok := g.rooms.RemovePowerUp(binding.RoomID, req.PowerUpID)
	if !ok {
		return nil
	}
	g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPowerUpRemoved, req.PowerUpID)

	switch removed.Type {
	case PowerUpShield:
		if state, ok := g.rooms.SetShield(binding.RoomCode, binding.UserID, true); ok {
			g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerMoved, state)
		}
	case PowerUpSpeed:
		if state, ok := g.rooms.SetSpeed(binding.RoomCode, binding.UserID, boostedSpeed); ok {
			g.fanout.Broadcast(ctx, binding.RoomCode, domain.EventPlayerMoved, state)
		}
		go g.resetSpeedLater(binding.RoomCode, binding.UserID)
	}
	return nil
}

// resetSpeedLater はブースト終了後に基準速度へ戻します。
// 途中で別のブーストを取った場合もlast-write-winsで上書きされるだけです。
func (g *Gateway) resetSpeedLater(roomCode, userID string) {
	time.Sleep(speedBoostDuration)
	ctx := context.Background()
	if state, ok := g.rooms.SetSpeed(roomCode, userID, baseSpeed); ok {
		g.fanout.Broadcast(ctx, roomCode, domain.EventPlayerMoved, state)
	}
}

// errorCode はクライアントへ返すエラーコードです。
func errorCode(err error) map[string]string {
	code := "bad_request"
	switch {
	case errors.Is(err, domain.ErrNotInRoom):
		code = "not_in_room"
	case errors.Is(err, ErrRoomNotFound):
		code = "room_not_found"
	case errors.Is(err, ErrRoomAlreadyStarted):
		code = "room_already_started"
	}
	return map[string]string{"code": code}
}

var _ domain.Gateway = (*Gateway)(nil)
