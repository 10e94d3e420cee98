package game

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"ironveil/domain"
)

const (
	// BulletLifetime は弾の最大生存時間です。超過分は次のスポーン試行時に掃除されます。
	BulletLifetime = 2000 * time.Millisecond

	bulletMinSpeed = 0.1
	bulletMaxSpeed = 100.0
)

// Bullet は1発の弾の状態です。IsActiveはtrue→falseの一方向にのみ遷移します。
type Bullet struct {
	ID             string  `json:"bulletId"`
	RoomID         string  `json:"roomId"`
	ShooterID      string  `json:"shooterId"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Rotation       float64 `json:"rotation"`
	Speed          float64 `json:"speed"`
	SpawnTimestamp int64   `json:"spawnTimestamp"`
	IsActive       bool    `json:"isActive"`
}

// Combat は弾とスコアのルーム別ワーキングテーブルを持つ戦闘リゾルバです。
// プレイヤーのライフ・生死はRegistryが持ち、ここからは1ヒットにつき
// 1回だけ適用されます（弾の一方向遷移が重複適用を防ぎます）。
type Combat struct {
	mu      sync.Mutex
	bullets map[string]map[string]*Bullet // roomCode → bulletID → bullet
	scores  map[string]map[string]int     // roomCode → userID → score

	rooms *Registry
	clk   func() time.Time
}

func NewCombat(rooms *Registry) *Combat {
	return &Combat{
		bullets: make(map[string]map[string]*Bullet),
		scores:  make(map[string]map[string]int),
		rooms:   rooms,
		clk:     time.Now,
	}
}

// WithClock はテスト用に時間ソースを差し替えます。
func (c *Combat) WithClock(clock func() time.Time) *Combat {
	if clock != nil {
		c.clk = clock
	}
	return c
}

// SpawnResult は弾のスポーン試行の結果です。拒否時はBulletIDが空になりますが、
// Expired（タイムアウト掃除された弾）は拒否時でも通知が必要です。
type SpawnResult struct {
	BulletID string
	Bullet   Bullet
	Expired  []string
}

// SpawnBullet は弾を生成します。死亡中の射手、または有効期限内の自弾が
// 既に存在する射手は黙って拒否されます。期限切れの弾は判定より先に掃除されます。
func (c *Combat) SpawnBullet(roomID, roomCode, shooterID string, x, y, rotation, speed float64) SpawnResult {
	shooter, ok := c.rooms.PlayerState(roomCode, shooterID)
	if !ok || shooter.Lives <= 0 {
		return SpawnResult{}
	}

	now := c.clk().UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()

	roomBullets := c.bullets[roomCode]
	expired := c.sweepLocked(roomBullets, now)

	for _, b := range roomBullets {
		if b.IsActive && b.ShooterID == shooterID {
			return SpawnResult{Expired: expired}
		}
	}

	bullet := &Bullet{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		ShooterID:      shooterID,
		X:              x,
		Y:              y,
		Rotation:       normalizeAngle(rotation),
		Speed:          clamp(speed, bulletMinSpeed, bulletMaxSpeed),
		SpawnTimestamp: now,
		IsActive:       true,
	}
	if roomBullets == nil {
		roomBullets = make(map[string]*Bullet)
		c.bullets[roomCode] = roomBullets
	}
	roomBullets[bullet.ID] = bullet
	return SpawnResult{BulletID: bullet.ID, Bullet: *bullet, Expired: expired}
}

// sweepLocked は期限切れの弾をテーブルから取り除き、そのIDを返します。
// 非アクティブな弾は既にdespawn通知済みなので、黙って破棄するだけです。
// despawnは弾ごとに一度しか発生しません。
func (c *Combat) sweepLocked(roomBullets map[string]*Bullet, nowMilli int64) []string {
	var expired []string
	for id, b := range roomBullets {
		if nowMilli-b.SpawnTimestamp < BulletLifetime.Milliseconds() {
			continue
		}
		delete(roomBullets, id)
		if b.IsActive {
			expired = append(expired, id)
		}
	}
	return expired
}

// PlayerHitEvent はヒット確定時にブロードキャストされるペイロードです。
type PlayerHitEvent struct {
	BulletID       string `json:"bulletId"`
	TargetPlayerID string `json:"targetPlayerId"`
	ShooterID      string `json:"shooterId"`
	Damage         int    `json:"damage"`
	LivesRemaining int    `json:"livesRemaining"`
	IsAlive        bool   `json:"isAlive"`
	ShooterScore   int    `json:"shooterScore"`
}

// HitResult はReportHitの結果です。Reasonはshieldまたはhitです。
type HitResult struct {
	Reason     string
	Target     PlayerState
	Hit        *PlayerHitEvent
	TargetDied bool
	Finish     FinishResult
}

// ReportHit はクライアント申告のヒットを検証して適用します。
// 弾が存在しない・非アクティブな場合はno-opです。シールドは1ヒットを
// 吸収して解除され、ライフは減りません。
func (c *Combat) ReportHit(ctx context.Context, roomCode string, bulletID, targetID string) (HitResult, bool) {
	c.mu.Lock()
	roomBullets := c.bullets[roomCode]
	bullet, ok := roomBullets[bulletID]
	if !ok || !bullet.IsActive {
		c.mu.Unlock()
		return HitResult{}, false
	}
	// 一方向遷移。この弾が二度目の効果を持つことはない。
	bullet.IsActive = false
	shooterID := bullet.ShooterID
	c.mu.Unlock()

	target, ok := c.rooms.PlayerState(roomCode, targetID)
	if ok && target.HasShield {
		updated, _ := c.rooms.SetShield(roomCode, targetID, false)
		c.mu.Lock()
		delete(roomBullets, bulletID)
		c.mu.Unlock()
		return HitResult{Reason: domain.DespawnShield, Target: updated}, true
	}

	outcome, ok := c.rooms.ApplyHit(roomCode, targetID)
	if !ok {
		return HitResult{}, false
	}

	c.mu.Lock()
	roomScores := c.scores[roomCode]
	if roomScores == nil {
		roomScores = make(map[string]int)
		c.scores[roomCode] = roomScores
	}
	if !outcome.AliveAfter {
		roomScores[shooterID]++
	}
	shooterScore := roomScores[shooterID]
	c.mu.Unlock()

	if !outcome.AliveAfter {
		c.rooms.SetScore(roomCode, shooterID, shooterScore)
	}

	result := HitResult{
		Reason: domain.DespawnHit,
		Target: outcome.Player,
		Hit: &PlayerHitEvent{
			BulletID:       bulletID,
			TargetPlayerID: targetID,
			ShooterID:      shooterID,
			Damage:         1,
			LivesRemaining: outcome.LivesAfter,
			IsAlive:        outcome.AliveAfter,
			ShooterScore:   shooterScore,
		},
		TargetDied: !outcome.AliveAfter,
	}

	if result.TargetDied {
		result.Finish = c.rooms.FinishIfOver(ctx, roomCode)
		if result.Finish.Finished {
			c.ClearRoom(roomCode)
		}
	}
	return result, true
}

// ReportObstacleHit は障害物衝突による弾の消滅を適用します。
// プレイヤー状態は変化しません。
func (c *Combat) ReportObstacleHit(roomCode, bulletID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomBullets := c.bullets[roomCode]
	bullet, ok := roomBullets[bulletID]
	if !ok || !bullet.IsActive {
		return false
	}
	bullet.IsActive = false
	delete(roomBullets, bulletID)
	return true
}

// ClearRoom はルームのワーキングテーブルを破棄します。マッチ終了時に呼ばれます。
func (c *Combat) ClearRoom(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bullets, roomCode)
	delete(c.scores, roomCode)
}

// Score は現在のスコアを返します。
func (c *Combat) Score(roomCode, userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scores[roomCode][userID]
}

// normalizeAngle は角度を[0, 2π)に正規化します。非有限値は0になります。
func normalizeAngle(radians float64) float64 {
	if math.IsNaN(radians) || math.IsInf(radians, 0) {
		return 0
	}
	r := math.Mod(radians, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
