package game

import (
	"context"
	"errors"
	"testing"
	"time"

	sessionmemory "ironveil/repository/gamesession/memory"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	sessions := sessionmemory.NewStore()
	sess := sessions.Create("Test Room", "ROOM01", 4, true)
	reg := NewRegistry(sessions)
	return reg, sess.Code
}

func TestRegistry_JoinHydratesRoom(t *testing.T) {
	reg, code := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.Join(ctx, code, "u1", "alice")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if result.Player.Lives != 3 {
		t.Errorf("expected 3 lives, got %d", result.Player.Lives)
	}
	if !result.Player.IsAlive {
		t.Errorf("player should start alive")
	}
	if result.Player.Speed != 200 {
		t.Errorf("expected base speed 200, got %v", result.Player.Speed)
	}
	if result.Room.Status != StatusWaiting {
		t.Errorf("room should be waiting, got %v", result.Room.Status)
	}
	if len(result.Room.Players) != 1 {
		t.Errorf("expected 1 player in snapshot, got %d", len(result.Room.Players))
	}
}

func TestRegistry_JoinUnknownCode(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Join(context.Background(), "NOPE99", "u1", "alice"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

// 4人参加でスポーン地点が順番に割り当てられることを確認します。
func TestRegistry_JoinRoundRobinSpawn(t *testing.T) {
	reg, code := newTestRegistry(t)
	ctx := context.Background()

	want := [][2]float64{{60, 60}, {740, 60}, {380, 740}, {420, 740}}
	for i, userID := range []string{"u1", "u2", "u3", "u4"} {
		result, err := reg.Join(ctx, code, userID, userID)
		if err != nil {
			t.Fatalf("Join %s failed: %v", userID, err)
		}
		if result.Player.X != want[i][0] || result.Player.Y != want[i][1] {
			t.Errorf("player %d: spawn (%v, %v), want (%v, %v)",
				i, result.Player.X, result.Player.Y, want[i][0], want[i][1])
		}
	}
}

func TestRegistry_JoinStartedRoom(t *testing.T) {
	reg, code := newTestRegistry(t)
	ctx := context.Background()

	mustJoin(t, reg, code, "u1")
	mustJoin(t, reg, code, "u2")
	mustReady(t, reg, code, "u1")
	result := mustReady(t, reg, code, "u2")
	if !result.Started {
		t.Fatalf("game should have started")
	}

	if _, err := reg.Join(ctx, code, "u3", "late"); !errors.Is(err, ErrRoomAlreadyStarted) {
		t.Errorf("expected ErrRoomAlreadyStarted, got %v", err)
	}
}

// 開始遷移は全員準備完了の時に一度だけ発生します。
func TestRegistry_SetReadyStartsOnce(t *testing.T) {
	reg, code := newTestRegistry(t)

	mustJoin(t, reg, code, "u1")
	mustJoin(t, reg, code, "u2")

	r1 := mustReady(t, reg, code, "u1")
	if r1.Started {
		t.Errorf("game should not start with one ready player")
	}
	r2 := mustReady(t, reg, code, "u2")
	if !r2.Started {
		t.Errorf("game should start when all players are ready")
	}
	if r2.Room.Status != StatusInProgress {
		t.Errorf("room should be in progress, got %v", r2.Room.Status)
	}
	// 開始時にreadyフラグと戦闘状態がリセットされる
	for _, p := range r2.Room.Players {
		if p.IsReady {
			t.Errorf("ready flag should be reset on start")
		}
		if p.Lives != 3 || !p.IsAlive || p.Score != 0 {
			t.Errorf("player stats should be reset: %+v", p)
		}
	}

	// 再度の準備完了では開始しない（Waitingではないため）
	r3 := mustReady(t, reg, code, "u1")
	if r3.Started {
		t.Errorf("start transition must not fire twice")
	}
}

// 1人だけのルームは全員準備完了でも開始しません。
func TestRegistry_SetReadyRequiresTwoPlayers(t *testing.T) {
	reg, code := newTestRegistry(t)

	mustJoin(t, reg, code, "u1")
	if r := mustReady(t, reg, code, "u1"); r.Started {
		t.Errorf("single player room should not start")
	}
}

func TestRegistry_SetPositionRejectsDead(t *testing.T) {
	reg, code := newTestRegistry(t)
	mustJoin(t, reg, code, "u1")

	for i := 0; i < 3; i++ {
		if _, ok := reg.ApplyHit(code, "u1"); !ok {
			t.Fatalf("ApplyHit %d failed", i)
		}
	}
	if _, ok := reg.SetPosition(code, "u1", 10, 10, 0); ok {
		t.Errorf("dead player position update should be rejected")
	}
}

// ライフは0で下限です。
func TestRegistry_ApplyHitFloorsAtZero(t *testing.T) {
	reg, code := newTestRegistry(t)
	mustJoin(t, reg, code, "u1")

	var last HitOutcome
	for i := 0; i < 5; i++ {
		outcome, ok := reg.ApplyHit(code, "u1")
		if !ok {
			t.Fatalf("ApplyHit %d failed", i)
		}
		last = outcome
	}
	if last.LivesAfter != 0 {
		t.Errorf("lives should floor at 0, got %d", last.LivesAfter)
	}
	if last.AliveAfter {
		t.Errorf("player should be dead")
	}
}

func TestRegistry_DestroyCellIdempotent(t *testing.T) {
	reg, code := newTestRegistry(t)
	result := mustJoin(t, reg, code, "u1")
	roomID := result.Room.RoomID

	// (2,2)はテンプレート上の破壊可能セル
	cell, ok := reg.DestroyCell(roomID, 2, 2)
	if !ok {
		t.Fatalf("first destroy should succeed")
	}
	if !cell.IsDestroyed {
		t.Errorf("cell should be marked destroyed")
	}
	if _, ok := reg.DestroyCell(roomID, 2, 2); ok {
		t.Errorf("second destroy should be a no-op")
	}
	// 壁は破壊不能
	if _, ok := reg.DestroyCell(roomID, 0, 0); ok {
		t.Errorf("wall should not be destructible")
	}
}

func TestRegistry_FinishIfOverFiresOnce(t *testing.T) {
	reg, code := newTestRegistry(t)
	ctx := context.Background()

	mustJoin(t, reg, code, "u1")
	mustJoin(t, reg, code, "u2")
	mustReady(t, reg, code, "u1")
	mustReady(t, reg, code, "u2")

	for i := 0; i < 3; i++ {
		reg.ApplyHit(code, "u2")
	}

	first := reg.FinishIfOver(ctx, code)
	if !first.Finished {
		t.Fatalf("match should finish with one player alive")
	}
	if first.WinnerID != "u1" {
		t.Errorf("expected winner u1, got %q", first.WinnerID)
	}
	if !first.Verdicts["u1"] || first.Verdicts["u2"] {
		t.Errorf("unexpected verdicts: %v", first.Verdicts)
	}

	second := reg.FinishIfOver(ctx, code)
	if second.Finished {
		t.Errorf("finish transition must not fire twice")
	}
}

func TestRegistry_PowerUpExpiry(t *testing.T) {
	reg, code := newTestRegistry(t)
	now := time.UnixMilli(0)
	reg.WithClock(func() time.Time { return now })

	result := mustJoin(t, reg, code, "u1")
	roomID := result.Room.RoomID

	reg.AddPowerUp(roomID, PowerUp{ID: "p1", Type: PowerUpShield})

	if expired := reg.ExpirePowerUps(roomID, 10*time.Second); len(expired) != 0 {
		t.Errorf("power-up should not expire immediately: %v", expired)
	}

	now = now.Add(10 * time.Second)
	expired := reg.ExpirePowerUps(roomID, 10*time.Second)
	if len(expired) != 1 || expired[0] != "p1" {
		t.Errorf("expected p1 to expire, got %v", expired)
	}
	if reg.PowerUpCount(roomID) != 0 {
		t.Errorf("expired power-up should be removed")
	}
}

func mustJoin(t *testing.T, reg *Registry, code, userID string) JoinResult {
	t.Helper()
	result, err := reg.Join(context.Background(), code, userID, userID)
	if err != nil {
		t.Fatalf("Join %s failed: %v", userID, err)
	}
	return result
}

func mustReady(t *testing.T, reg *Registry, code, userID string) ReadyResult {
	t.Helper()
	result, err := reg.SetReady(context.Background(), code, userID, true)
	if err != nil {
		t.Fatalf("SetReady %s failed: %v", userID, err)
	}
	return result
}
