package game

import "testing"

func TestBuildCells_Dimensions(t *testing.T) {
	cells := buildCells()

	if len(cells) != GridSize*GridSize {
		t.Fatalf("expected %d cells, got %d", GridSize*GridSize, len(cells))
	}
}

// 外周は全て壁です。
func TestBuildCells_BorderIsWall(t *testing.T) {
	cells := buildCells()

	for i := 0; i < GridSize; i++ {
		for _, key := range []CellKey{
			{X: i, Y: 0}, {X: i, Y: GridSize - 1},
			{X: 0, Y: i}, {X: GridSize - 1, Y: i},
		} {
			if cells[key].Type != CellWall {
				t.Errorf("cell %v should be wall, got %v", key, cells[key].Type)
			}
		}
	}
}

// 破壊可能なのはDestructibleとBaseのみです。
func TestBuildCells_DestructibleFlags(t *testing.T) {
	cells := buildCells()

	for key, cell := range cells {
		want := cell.Type == CellDestructible || cell.Type == CellBase
		if cell.IsDestructible != want {
			t.Errorf("cell %v type %v: IsDestructible=%v, want %v", key, cell.Type, cell.IsDestructible, want)
		}
		if cell.IsDestroyed {
			t.Errorf("cell %v should start intact", key)
		}
	}
}

func TestBuildCells_SpawnPointsAreEmpty(t *testing.T) {
	cells := buildCells()

	for _, sp := range defaultSpawnPoints {
		if cells[sp].Type == CellWall {
			t.Errorf("spawn point %v is a wall", sp)
		}
	}
}

func TestPixelCenter(t *testing.T) {
	x, y := CellKey{X: 1, Y: 18}.PixelCenter()
	if x != 60 || y != 740 {
		t.Errorf("unexpected pixel center: (%v, %v)", x, y)
	}
}
