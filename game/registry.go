package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"ironveil/repository/gamesession"
)

var (
	// ErrRoomNotFound は永続層からルームをハイドレートできない場合に返されるエラーです。
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomAlreadyStarted は開始済みルームへの参加時に返されるエラーです。
	ErrRoomAlreadyStarted = errors.New("room already started")
)

// Registry はルーム状態の唯一の権威ストアです。
// ルーム単位の変更はすべて各Roomのロック下で行われます。
// TODO: ルームは初回参照時に作られた後回収されない。終了済みルームの退避処理を入れる。
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	codeToID map[string]string

	sessions gamesession.Repository
	clk      func() time.Time
}

func NewRegistry(sessions gamesession.Repository) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		codeToID: make(map[string]string),
		sessions: sessions,
		clk:      time.Now,
	}
}

// WithClock はテスト用に時間ソースを差し替えます。
func (g *Registry) WithClock(clock func() time.Time) *Registry {
	if clock != nil {
		g.clk = clock
	}
	return g
}

// UpsertRoom はルームを作成または更新します。地形は未生成の場合のみ初期化します。
func (g *Registry) UpsertRoom(id, code, name string, maxPlayers int, isPublic bool, status Status) {
	g.mu.Lock()
	room, ok := g.rooms[id]
	if !ok {
		room = newRoom(id, code, name, maxPlayers, isPublic, status)
		g.rooms[id] = room
	}
	g.codeToID[code] = id
	g.mu.Unlock()

	room.mu.Lock()
	if ok {
		room.Name = name
		room.MaxPlayers = maxPlayers
		room.IsPublic = isPublic
		room.Status = status
	}
	room.ensureMapLocked()
	room.mu.Unlock()
}

func (g *Registry) GetByID(roomID string) (RoomSnapshot, bool) {
	g.mu.RLock()
	room := g.rooms[roomID]
	g.mu.RUnlock()
	if room == nil {
		return RoomSnapshot{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshotLocked(), true
}

func (g *Registry) GetByCode(roomCode string) (RoomSnapshot, bool) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return RoomSnapshot{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshotLocked(), true
}

// RoomCodes は既知の全ルームコードを返します。スケジューラの巡回用です。
func (g *Registry) RoomCodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	codes := make([]string, 0, len(g.codeToID))
	for code := range g.codeToID {
		codes = append(codes, code)
	}
	return codes
}

// JoinResult はJoin成功時のルームと参加者の状態です。
type JoinResult struct {
	Room   RoomSnapshot
	Player PlayerState
}

// Join はルームへプレイヤーを追加します。ルームが未知の場合は永続層から
// ハイドレートします。Waiting以外のルームには参加できません。
func (g *Registry) Join(ctx context.Context, roomCode, userID, username string) (JoinResult, error) {
	room := g.roomByCode(roomCode)
	if room == nil {
		var err error
		room, err = g.hydrate(ctx, roomCode)
		if err != nil {
			return JoinResult{}, err
		}
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.ensureMapLocked()
	if room.Status != StatusWaiting {
		return JoinResult{}, ErrRoomAlreadyStarted
	}

	spawn := room.allocateSpawnLocked()
	x, y := spawn.PixelCenter()
	player := &PlayerState{
		PlayerID: userID,
		Username: username,
		X:        x,
		Y:        y,
		Lives:    initialLives,
		IsAlive:  true,
		Speed:    baseSpeed,
	}
	room.Players[userID] = player
	return JoinResult{Room: room.snapshotLocked(), Player: *player}, nil
}

// hydrate は永続層の記録からルームを生成します。
func (g *Registry) hydrate(ctx context.Context, roomCode string) (*Room, error) {
	sess, err := g.sessions.GetByCode(ctx, roomCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomCode)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.codeToID[roomCode]; ok {
		if room, ok := g.rooms[id]; ok {
			return room, nil
		}
	}
	status := Status(sess.Status)
	if status == "" {
		status = StatusWaiting
	}
	room := newRoom(sess.ID, sess.Code, sess.Name, sess.MaxPlayers, sess.IsPublic, status)
	g.rooms[sess.ID] = room
	g.codeToID[sess.Code] = sess.ID
	return room, nil
}

// RemovePlayer はロスターからプレイヤーを外します。二重呼び出しはno-opです。
func (g *Registry) RemovePlayer(roomCode, userID string) bool {
	room := g.roomByCode(roomCode)
	if room == nil {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if _, ok := room.Players[userID]; !ok {
		return false
	}
	delete(room.Players, userID)
	return true
}

// SetPosition は位置更新を反映します。死亡済みプレイヤーは受け付けません。
func (g *Registry) SetPosition(roomCode, userID string, x, y, rotation float64) (PlayerState, bool) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return PlayerState{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p, ok := room.Players[userID]
	if !ok || !p.IsAlive {
		return PlayerState{}, false
	}
	p.X, p.Y, p.Rotation = x, y, rotation
	return *p, true
}

func (g *Registry) PlayerState(roomCode, userID string) (PlayerState, bool) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return PlayerState{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p, ok := room.Players[userID]
	if !ok {
		return PlayerState{}, false
	}
	return *p, true
}

// SetShield はシールドの有無を更新します。
func (g *Registry) SetShield(roomCode, userID string, hasShield bool) (PlayerState, bool) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return PlayerState{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p, ok := room.Players[userID]
	if !ok {
		return PlayerState{}, false
	}
	p.HasShield = hasShield
	return *p, true
}

// SetSpeed は移動速度を更新します。
func (g *Registry) SetSpeed(roomCode, userID string, speed float64) (PlayerState, bool) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return PlayerState{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p, ok := room.Players[userID]
	if !ok {
		return PlayerState{}, false
	}
	p.Speed = speed
	return *p, true
}

// HitOutcome は1ヒット適用後のターゲットの状態です。
type HitOutcome struct {
	LivesAfter int
	AliveAfter bool
	Player     PlayerState
}

// ApplyHit はターゲットのライフを1減らします。0で下限、0になるとisAlive=falseです。
func (g *Registry) ApplyHit(roomCode, targetID string) (HitOutcome, bool) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return HitOutcome{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p, ok := room.Players[targetID]
	if !ok {
		return HitOutcome{}, false
	}
	if p.Lives > 0 {
		p.Lives--
	}
	if p.Lives == 0 {
		p.IsAlive = false
	}
	return HitOutcome{LivesAfter: p.Lives, AliveAfter: p.IsAlive, Player: *p}, true
}

// SetScore はスコアテーブルの値をプレイヤー状態へミラーします。
func (g *Registry) SetScore(roomCode, userID string, score int) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if p, ok := room.Players[userID]; ok {
		p.Score = score
	}
}

// ReadyResult はSetReadyの結果です。Startedは全員準備完了で
// Waiting→InProgress遷移が発生した場合のみtrueです。
type ReadyResult struct {
	Started bool
	Room    RoomSnapshot
}

// SetReady は準備フラグを更新し、開始条件（Waiting・2人以上・全員準備完了）を
// 同一クリティカルセクション内で再確認してからステータスを遷移させます。
// 遷移は1マッチにつき一度しか発生しません。
func (g *Registry) SetReady(ctx context.Context, roomCode, userID string, ready bool) (ReadyResult, error) {
	room := g.roomByCode(roomCode)
	if room == nil {
		return ReadyResult{}, ErrRoomNotFound
	}

	room.mu.Lock()
	p, ok := room.Players[userID]
	if !ok {
		room.mu.Unlock()
		return ReadyResult{}, ErrRoomNotFound
	}
	p.IsReady = ready

	started := false
	if room.Status == StatusWaiting && len(room.Players) >= 2 && allReadyLocked(room) {
		room.Status = StatusInProgress
		room.resetMapLocked()
		for _, pl := range room.Players {
			spawn := room.allocateSpawnLocked()
			x, y := spawn.PixelCenter()
			pl.X, pl.Y, pl.Rotation = x, y, 0
			pl.Lives = initialLives
			pl.IsAlive = true
			pl.Score = 0
			pl.HasShield = false
			pl.Speed = baseSpeed
			pl.IsReady = false
		}
		started = true
	}
	snap := room.snapshotLocked()
	roomID := room.ID
	room.mu.Unlock()

	if started {
		// 永続層へのミラーはロック外。失敗しても開始は取り消さない。
		_ = g.sessions.UpdateStatus(ctx, roomID, string(StatusInProgress))
	}
	return ReadyResult{Started: started, Room: snap}, nil
}

func allReadyLocked(room *Room) bool {
	for _, p := range room.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// DestroyCell は破壊可能かつ未破壊のセルのみ遷移させます。
// それ以外はno-opで、二重呼び出しは安全です。
func (g *Registry) DestroyCell(roomID string, x, y int) (Cell, bool) {
	room := g.roomByID(roomID)
	if room == nil {
		return Cell{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	cell, ok := room.Cells[CellKey{X: x, Y: y}]
	if !ok || !cell.IsDestructible || cell.IsDestroyed {
		return Cell{}, false
	}
	cell.IsDestroyed = true
	return *cell, true
}

// MapCells はルームの全セルのコピーを返します。未生成なら初期化します。
func (g *Registry) MapCells(roomID string) []Cell {
	room := g.roomByID(roomID)
	if room == nil {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	room.ensureMapLocked()
	cells := make([]Cell, 0, len(room.Cells))
	for _, c := range room.Cells {
		cells = append(cells, *c)
	}
	return cells
}

// AllocateSpawn は次のスポーン地点のピクセル中心を返します。
func (g *Registry) AllocateSpawn(roomID, userID string) (float64, float64, bool) {
	room := g.roomByID(roomID)
	if room == nil {
		return 0, 0, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	_ = userID // 割り当ては共有カウンタ。呼び出し元ごとの固有性は保証しない。
	spawn := room.allocateSpawnLocked()
	x, y := spawn.PixelCenter()
	return x, y, true
}

// AddPowerUp はパワーアップを配置します。
func (g *Registry) AddPowerUp(roomID string, pu PowerUp) bool {
	room := g.roomByID(roomID)
	if room == nil {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	room.powerUps[pu.ID] = &powerUpEntry{powerUp: pu, spawnedAt: g.clk()}
	return true
}

// RemovePowerUp は指定パワーアップを除去します。存在しない場合はno-opです。
func (g *Registry) RemovePowerUp(roomID, powerUpID string) (PowerUp, bool) {
	room := g.roomByID(roomID)
	if room == nil {
		return PowerUp{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	entry, ok := room.powerUps[powerUpID]
	if !ok {
		return PowerUp{}, false
	}
	delete(room.powerUps, powerUpID)
	return entry.powerUp, true
}

// PowerUps はルームの現在のパワーアップ一覧を返します。
func (g *Registry) PowerUps(roomID string) []PowerUp {
	room := g.roomByID(roomID)
	if room == nil {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	out := make([]PowerUp, 0, len(room.powerUps))
	for _, e := range room.powerUps {
		out = append(out, e.powerUp)
	}
	return out
}

// ExpirePowerUps はlifetimeを超えたパワーアップを除去し、そのIDを返します。
func (g *Registry) ExpirePowerUps(roomID string, lifetime time.Duration) []string {
	room := g.roomByID(roomID)
	if room == nil {
		return nil
	}
	now := g.clk()
	room.mu.Lock()
	defer room.mu.Unlock()
	var expired []string
	for id, e := range room.powerUps {
		if now.Sub(e.spawnedAt) >= lifetime {
			delete(room.powerUps, id)
			expired = append(expired, id)
		}
	}
	return expired
}

func (g *Registry) PowerUpCount(roomID string) int {
	room := g.roomByID(roomID)
	if room == nil {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.powerUps)
}

// RandomEmptyCell は空白セルを有限回の試行で探します。見つからなければfalseです。
func (g *Registry) RandomEmptyCell(roomID string, rng *rand.Rand, attempts int) (CellKey, bool) {
	room := g.roomByID(roomID)
	if room == nil {
		return CellKey{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	for i := 0; i < attempts; i++ {
		key := CellKey{X: rng.IntN(GridSize), Y: rng.IntN(GridSize)}
		cell, ok := room.Cells[key]
		if ok && cell.Type == CellEmpty {
			return key, true
		}
	}
	return CellKey{}, false
}

// FinishResult はマッチ終了判定の結果です。
type FinishResult struct {
	Finished bool
	WinnerID string          // 全滅時は空
	Verdicts map[string]bool // userID → didWin
}

// FinishIfOver は生存者が1人以下かつInProgressの場合に限り、同一ロック内で
// Finishedへ遷移させます。先に遷移を観測した呼び出しだけが通知責務を持ちます。
func (g *Registry) FinishIfOver(ctx context.Context, roomCode string) FinishResult {
	room := g.roomByCode(roomCode)
	if room == nil {
		return FinishResult{}
	}

	room.mu.Lock()
	alive := make([]string, 0, len(room.Players))
	for id, p := range room.Players {
		if p.Lives > 0 {
			alive = append(alive, id)
		}
	}
	if len(alive) > 1 || room.Status != StatusInProgress {
		room.mu.Unlock()
		return FinishResult{}
	}
	room.Status = StatusFinished
	verdicts := make(map[string]bool, len(room.Players))
	for id, p := range room.Players {
		verdicts[id] = p.Lives > 0
	}
	winnerID := ""
	if len(alive) == 1 {
		winnerID = alive[0]
	}
	roomID := room.ID
	room.mu.Unlock()

	// 永続層へのミラーはロック外。失敗は飲み込む。
	_ = g.sessions.UpdateStatus(ctx, roomID, string(StatusFinished))

	return FinishResult{Finished: true, WinnerID: winnerID, Verdicts: verdicts}
}

func (g *Registry) roomByCode(roomCode string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.codeToID[roomCode]
	if !ok {
		return nil
	}
	return g.rooms[id]
}

func (g *Registry) roomByID(roomID string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[roomID]
}
