package game

// CellType はマップセルの地形種別です。
type CellType int

const (
	CellEmpty        CellType = 0
	CellDestructible CellType = 1
	CellWall         CellType = 2
	CellBase         CellType = 3
)

const (
	// GridSize はマップの一辺のセル数です。
	GridSize = 20
	// TileSize は1セルのピクセル幅です。
	TileSize = 40.0
)

// CellKey はセル座標のマップキーです。
type CellKey struct {
	X, Y int
}

// Cell は1マスの地形状態です。IsDestroyedだけが遷移し、一度きりです。
type Cell struct {
	X              int      `json:"x"`
	Y              int      `json:"y"`
	Type           CellType `json:"type"`
	IsDestructible bool     `json:"isDestructible"`
	IsDestroyed    bool     `json:"isDestroyed"`
}

// defaultLayout は固定のマップテンプレートです。乱数を含まないため
// どのルームも同一の初期地形になります。0=空白 1=破壊可能 2=壁 3=拠点
var defaultLayout = [GridSize][GridSize]int{
	{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
	{2, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 2},
	{2, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0, 1, 0, 2},
	{2, 0, 1, 0, 1, 0, 1, 0, 0, 2, 2, 0, 0, 1, 0, 1, 0, 1, 0, 2},
	{2, 0, 1, 0, 1, 0, 1, 0, 0, 2, 2, 0, 0, 1, 0, 1, 0, 1, 0, 2},
	{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	{2, 0, 0, 1, 1, 1, 0, 0, 1, 1, 1, 1, 0, 0, 1, 1, 1, 0, 0, 2},
	{2, 0, 0, 1, 2, 1, 0, 0, 1, 2, 2, 1, 0, 0, 1, 2, 1, 0, 0, 2},
	{2, 0, 0, 1, 2, 1, 0, 0, 1, 2, 2, 1, 0, 0, 1, 2, 1, 0, 0, 2},
	{2, 0, 0, 1, 1, 1, 0, 0, 1, 1, 1, 1, 0, 0, 1, 1, 1, 0, 0, 2},
	{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	{2, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0, 1, 0, 2},
	{2, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0, 1, 0, 2},
	{2, 0, 1, 0, 1, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, 1, 0, 1, 0, 2},
	{2, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 2},
	{2, 0, 0, 1, 1, 1, 0, 0, 0, 1, 1, 0, 0, 0, 1, 1, 1, 0, 0, 2},
	{2, 0, 0, 1, 3, 1, 0, 0, 0, 1, 1, 0, 0, 0, 1, 3, 1, 0, 0, 2},
	{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
}

// defaultSpawnPoints は固定の4スポーン地点です。
var defaultSpawnPoints = []CellKey{
	{X: 1, Y: 1},
	{X: 18, Y: 1},
	{X: 9, Y: 18},
	{X: 10, Y: 18},
}

// buildCells はテンプレートから地形を生成します。純粋関数です。
func buildCells() map[CellKey]*Cell {
	cells := make(map[CellKey]*Cell, GridSize*GridSize)
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			t := CellType(defaultLayout[y][x])
			cells[CellKey{X: x, Y: y}] = &Cell{
				X:              x,
				Y:              y,
				Type:           t,
				IsDestructible: t == CellDestructible || t == CellBase,
			}
		}
	}
	return cells
}

// PixelCenter はセル中心のピクセル座標を返します。
func (k CellKey) PixelCenter() (float64, float64) {
	return (float64(k.X) + 0.5) * TileSize, (float64(k.Y) + 0.5) * TileSize
}
