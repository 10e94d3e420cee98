package game

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"ironveil/domain"
	historymemory "ironveil/repository/history/memory"
)

func newTestScheduler(t *testing.T) (*Scheduler, *gatewayFixture, string) {
	t.Helper()
	f := newGatewayFixture(t)
	sid := domain.NewSessionID()
	f.join(t, sid, "u1")

	fanout := NewFanout(f.index, f.pubsub, domain.NopEventBus{}, historymemory.NewStore(0))
	s := NewScheduler(f.rooms, fanout).
		WithRand(rand.New(rand.NewPCG(1, 2)))

	snap, _ := f.rooms.GetByCode(f.code)
	return s, f, snap.RoomID
}

// 1巡回でパワーアップの無いルームにちょうど1つ補充されます。
func TestScheduler_TickSpawnsOne(t *testing.T) {
	s, f, roomID := newTestScheduler(t)
	ctx := context.Background()

	s.Tick(ctx)
	if n := f.rooms.PowerUpCount(roomID); n != 1 {
		t.Fatalf("expected 1 power-up after tick, got %d", n)
	}

	// 既にある場合は補充しない
	s.Tick(ctx)
	if n := f.rooms.PowerUpCount(roomID); n != 1 {
		t.Errorf("tick should not stack power-ups, got %d", n)
	}
}

// 期限切れのパワーアップは除去され、同じ巡回で補充されます。
func TestScheduler_TickExpiresAndRespawns(t *testing.T) {
	s, f, roomID := newTestScheduler(t)
	ctx := context.Background()

	now := time.UnixMilli(0)
	f.rooms.WithClock(func() time.Time { return now })

	f.rooms.AddPowerUp(roomID, PowerUp{ID: "old", Type: PowerUpShield})
	now = now.Add(PowerUpLifetime)

	s.Tick(ctx)

	if _, ok := f.rooms.RemovePowerUp(roomID, "old"); ok {
		t.Errorf("expired power-up should have been removed")
	}
	if n := f.rooms.PowerUpCount(roomID); n != 1 {
		t.Errorf("expected exactly one replacement, got %d", n)
	}
}

// 配置されるパワーアップは空白セルの中心に置かれます。
func TestScheduler_SpawnPlacement(t *testing.T) {
	s, f, roomID := newTestScheduler(t)

	s.Tick(context.Background())

	pus := f.rooms.PowerUps(roomID)
	if len(pus) != 1 {
		t.Fatalf("expected 1 power-up, got %d", len(pus))
	}
	pu := pus[0]
	if pu.ID == "" {
		t.Errorf("power-up should have an id")
	}
	if pu.Type != PowerUpShield && pu.Type != PowerUpSpeed {
		t.Errorf("unexpected type: %s", pu.Type)
	}
	// ピクセル中心はTileSizeの半整数倍
	cellX := int(pu.X / TileSize)
	cellY := int(pu.Y / TileSize)
	if pu.X != (float64(cellX)+0.5)*TileSize || pu.Y != (float64(cellY)+0.5)*TileSize {
		t.Errorf("power-up not centered on a cell: (%v, %v)", pu.X, pu.Y)
	}
}
