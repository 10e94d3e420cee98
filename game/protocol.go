package game

import (
	"encoding/json"
	"errors"
)

// クライアントから受け付ける操作。
const (
	OpJoin              = "joinRoom"
	OpLeave             = "leaveRoom"
	OpUpdatePosition    = "updatePosition"
	OpSpawnBullet       = "spawnBullet"
	OpReportHit         = "reportHit"
	OpReportObstacleHit = "reportObstacleHit"
	OpGetMap            = "getMap"
	OpDestroyCell       = "destroyCell"
	OpRequestSpawn      = "requestSpawn"
	OpSendChat          = "sendChat"
	OpSetReady          = "setReady"
	OpGetPowerUps       = "getPowerUps"
	OpCollectPowerUp    = "collectPowerUp"
)

var (
	ErrInvalidEnvelope = errors.New("invalid message envelope")
	ErrUnknownOp       = errors.New("unknown op")
)

// Envelope は受信フレームの封筒です。
type Envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if env.Op == "" {
		return nil, ErrInvalidEnvelope
	}
	return &env, nil
}

type JoinRequest struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type PositionUpdate struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Timestamp int64   `json:"timestamp"`
}

type SpawnBulletRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Speed    float64 `json:"speed"`
}

type HitReport struct {
	BulletID       string  `json:"bulletId"`
	TargetPlayerID string  `json:"targetPlayerId"`
	HitX           float64 `json:"hitX"`
	HitY           float64 `json:"hitY"`
	Timestamp      int64   `json:"timestamp"`
}

type ObstacleHitReport struct {
	BulletID string `json:"bulletId"`
}

type CellRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ChatRequest struct {
	Content string `json:"content"`
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

type CollectRequest struct {
	PowerUpID string `json:"powerUpId"`
}
