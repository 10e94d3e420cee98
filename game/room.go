package game

import (
	"sync"
	"time"
)

// Status はルームのライフサイクル状態です。
// Waiting → InProgress → Finished の順にのみ遷移します。
type Status string

const (
	StatusWaiting    Status = "Waiting"
	StatusInProgress Status = "InProgress"
	StatusFinished   Status = "Finished"
)

const (
	initialLives = 3
	baseSpeed    = 200.0
	boostedSpeed = 400.0
)

// PlayerState はルーム内の1プレイヤーの状態です。
type PlayerState struct {
	PlayerID  string  `json:"playerId"`
	Username  string  `json:"username"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Lives     int     `json:"lives"`
	IsAlive   bool    `json:"isAlive"`
	Score     int     `json:"score"`
	HasShield bool    `json:"hasShield"`
	Speed     float64 `json:"speed"`
	IsReady   bool    `json:"isReady"`
}

// PowerUpType はパワーアップの種別です。
type PowerUpType string

const (
	PowerUpShield PowerUpType = "shield"
	PowerUpSpeed  PowerUpType = "speed"
)

// PowerUp はマップ上の収集アイテムです。
type PowerUp struct {
	ID   string      `json:"id"`
	Type PowerUpType `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
}

type powerUpEntry struct {
	powerUp   PowerUp
	spawnedAt time.Time
}

// Room は1マッチ分の権威的な状態です。全フィールドはmu保護下で変更されます。
type Room struct {
	mu sync.Mutex

	ID         string
	Code       string
	Name       string
	MaxPlayers int
	IsPublic   bool
	Status     Status

	Players        map[string]*PlayerState
	Cells          map[CellKey]*Cell
	SpawnPoints    []CellKey
	NextSpawnIndex int

	powerUps map[string]*powerUpEntry
}

func newRoom(id, code, name string, maxPlayers int, isPublic bool, status Status) *Room {
	return &Room{
		ID:          id,
		Code:        code,
		Name:        name,
		MaxPlayers:  maxPlayers,
		IsPublic:    isPublic,
		Status:      status,
		Players:     make(map[string]*PlayerState),
		Cells:       make(map[CellKey]*Cell),
		SpawnPoints: append([]CellKey(nil), defaultSpawnPoints...),
		powerUps:    make(map[string]*powerUpEntry),
	}
}

// ensureMapLocked は未生成の場合のみ地形を初期化します。冪等です。
func (r *Room) ensureMapLocked() {
	if len(r.Cells) > 0 {
		return
	}
	r.Cells = buildCells()
	r.SpawnPoints = append([]CellKey(nil), defaultSpawnPoints...)
	r.NextSpawnIndex = 0
}

// resetMapLocked は地形をテンプレートから再生成します。
func (r *Room) resetMapLocked() {
	r.Cells = buildCells()
	r.NextSpawnIndex = 0
}

// allocateSpawnLocked は共有カウンタによるラウンドロビンで次の地点を返します。
// 呼び出し元が誰であっても順番は共有です。
func (r *Room) allocateSpawnLocked() CellKey {
	if len(r.SpawnPoints) == 0 {
		return CellKey{}
	}
	idx := r.NextSpawnIndex % len(r.SpawnPoints)
	r.NextSpawnIndex = (idx + 1) % len(r.SpawnPoints)
	return r.SpawnPoints[idx]
}

// RoomSnapshot はロック外で安全に読めるルームのコピーです。
type RoomSnapshot struct {
	RoomID     string        `json:"roomId"`
	RoomCode   string        `json:"roomCode"`
	Name       string        `json:"name"`
	MaxPlayers int           `json:"maxPlayers"`
	IsPublic   bool          `json:"isPublic"`
	Status     Status        `json:"status"`
	Players    []PlayerState `json:"players"`
}

func (r *Room) snapshotLocked() RoomSnapshot {
	players := make([]PlayerState, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, *p)
	}
	return RoomSnapshot{
		RoomID:     r.ID,
		RoomCode:   r.Code,
		Name:       r.Name,
		MaxPlayers: r.MaxPlayers,
		IsPublic:   r.IsPublic,
		Status:     r.Status,
		Players:    players,
	}
}
