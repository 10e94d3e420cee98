package game

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"ironveil/domain"
)

const (
	// PowerUpLifetime はパワーアップの最大滞留時間です。
	PowerUpLifetime = 10 * time.Second
	// SchedulerInterval はスケジューラの巡回間隔です。
	SchedulerInterval = 15 * time.Second
	// placementAttempts は空白セル探索の試行上限です。
	placementAttempts = 30
)

// Scheduler はプロセスに1つの背景ループで、全ルームのパワーアップの
// 期限切れ除去と補充を行います。全処理はベストエフォートで、失敗は
// 黙って握り潰します。パワーアップは正しさを担う機能ではありません。
type Scheduler struct {
	rooms    *Registry
	fanout   *Fanout
	interval time.Duration
	lifetime time.Duration
	rng      *rand.Rand
}

func NewScheduler(rooms *Registry, fanout *Fanout) *Scheduler {
	return &Scheduler{
		rooms:    rooms,
		fanout:   fanout,
		interval: SchedulerInterval,
		lifetime: PowerUpLifetime,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithInterval はテスト用に巡回間隔を差し替えます。
func (s *Scheduler) WithInterval(interval time.Duration) *Scheduler {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithRand はテスト用に乱数源を差し替えます。
func (s *Scheduler) WithRand(rng *rand.Rand) *Scheduler {
	if rng != nil {
		s.rng = rng
	}
	return s
}

// Run はctxがキャンセルされるまで一定間隔で全ルームを巡回します。
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick は1巡回分の処理です。期限切れを除去し、空になったルームには
// ちょうど1つ補充を試みます。
func (s *Scheduler) Tick(ctx context.Context) {
	for _, code := range s.rooms.RoomCodes() {
		snap, ok := s.rooms.GetByCode(code)
		if !ok {
			continue
		}
		roomID := snap.RoomID

		for _, id := range s.rooms.ExpirePowerUps(roomID, s.lifetime) {
			s.fanout.Broadcast(ctx, code, domain.EventPowerUpRemoved, id)
		}

		if s.rooms.PowerUpCount(roomID) > 0 {
			continue
		}
		cell, ok := s.rooms.RandomEmptyCell(roomID, s.rng, placementAttempts)
		if !ok {
			// 空白セルが見つからないルームは諦める
			slog.DebugContext(ctx, "scheduler: no empty cell", "room", code)
			continue
		}
		x, y := cell.PixelCenter()
		pu := PowerUp{
			ID:   uuid.NewString(),
			Type: s.randomType(),
			X:    x,
			Y:    y,
		}
		if s.rooms.AddPowerUp(roomID, pu) {
			s.fanout.Broadcast(ctx, code, domain.EventPowerUpSpawned, pu)
		}
	}
}

func (s *Scheduler) randomType() PowerUpType {
	if s.rng.IntN(2) == 0 {
		return PowerUpShield
	}
	return PowerUpSpeed
}
