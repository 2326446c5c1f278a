package asylum

import (
	"fmt"

	"asylum-lite/card"

	"github.com/zyedidia/generic/mapset"
)

type Coord struct {
	Row int
	Col int
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < BoardSize && c.Col >= 0 && c.Col < BoardSize
}

func (c Coord) Step(d Direction) Coord {
	dr, dc := d.delta()
	return Coord{Row: c.Row + dr, Col: c.Col + dc}
}

// DirectionTo returns the direction of an orthogonally adjacent cell.
func (c Coord) DirectionTo(to Coord) (Direction, bool) {
	for _, d := range Directions {
		if c.Step(d) == to {
			return d, true
		}
	}
	return 0, false
}

// chebyshev 切比雪夫距离
func chebyshev(a, b Coord) int {
	dr, dc := a.Row-b.Row, a.Col-b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	if dr > dc {
		return dr
	}
	return dc
}

type Mark struct {
	Kind  MarkKind
	Color string
}

type Cell struct {
	Pos   Coord
	Edges [4]EdgeKind
	Marks []Mark
}

// Board 18x18 棋盘，每格含四边状态和标记
type Board struct {
	cells    [BoardSize][BoardSize]Cell
	explored mapset.Set[Coord]
}

func NewBoard() *Board {
	b := &Board{explored: mapset.New[Coord]()}
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			b.cells[row][col].Pos = Coord{Row: row, Col: col}
		}
	}
	return b
}

func (b *Board) cell(at Coord) *Cell {
	if !at.InBounds() {
		return nil
	}
	return &b.cells[at.Row][at.Col]
}

// Cell returns a copy of the cell at the coordinate.
func (b *Board) Cell(at Coord) (Cell, error) {
	c := b.cell(at)
	if c == nil {
		return Cell{}, fmt.Errorf("%w: %s is off the board", ErrBlockedMove, at)
	}
	out := *c
	out.Marks = append([]Mark(nil), c.Marks...)
	return out, nil
}

func (b *Board) Edge(at Coord, dir Direction) EdgeKind {
	c := b.cell(at)
	if c == nil {
		return EdgeOpen
	}
	return c.Edges[dir]
}

func (b *Board) Explored(at Coord) bool { return b.explored.Has(at) }

func (b *Board) ExploredCount() int { return b.explored.Size() }

func (b *Board) markExplored(at Coord) { b.explored.Put(at) }

// IsBlocked 检查两格之间是否有墙体阻挡；暗道不阻挡
func (b *Board) IsBlocked(from, to Coord) bool {
	dir, ok := from.DirectionTo(to)
	if !ok || !from.InBounds() {
		return false
	}
	return b.cells[from.Row][from.Col].Edges[dir] == EdgeWall
}

// MarkCell appends a mark; the same mark may be appended repeatedly.
func (b *Board) MarkCell(at Coord, m Mark) error {
	c := b.cell(at)
	if c == nil {
		return fmt.Errorf("%w: %s is off the board", ErrBlockedMove, at)
	}
	c.Marks = append(c.Marks, m)
	return nil
}

// CheckEdge validates a placement without applying it.
func (b *Board) CheckEdge(at Coord, dir Direction, kind EdgeKind) error {
	c := b.cell(at)
	if c == nil {
		return fmt.Errorf("%w: %s is off the board", ErrEdgeConflict, at)
	}
	switch kind {
	case EdgeWall:
		if c.Edges[dir] == EdgeWall {
			return fmt.Errorf("%w: 该边已存在墙体，无法重复放置", ErrEdgeConflict)
		}
		if c.Edges[dir] == EdgeSecret {
			return fmt.Errorf("%w: 该边已有暗道，无法放置墙体", ErrEdgeConflict)
		}
		if far := b.cell(at.Step(dir)); far != nil && far.Edges[dir.Opposite()] == EdgeSecret {
			return fmt.Errorf("%w: 对面边已有暗道，无法放置墙体", ErrEdgeConflict)
		}
	case EdgeSecret:
		if c.Edges[dir] == EdgeSecret {
			return fmt.Errorf("%w: 该边已存在暗道，无法重复放置", ErrEdgeConflict)
		}
	default:
		return fmt.Errorf("%w: cannot place %s edge", ErrEdgeConflict, kind)
	}
	return nil
}

// PlaceEdge 放置墙体/暗道并同步对面格；from 为触发的探索牌，密室不留玩家标记
func (b *Board) PlaceEdge(at Coord, dir Direction, kind EdgeKind, from card.Card, color string) error {
	if err := b.CheckEdge(at, dir, kind); err != nil {
		return err
	}
	if kind == EdgeWall {
		b.cells[at.Row][at.Col].Edges[dir] = EdgeWall
		if far := b.cell(at.Step(dir)); far != nil {
			far.Edges[dir.Opposite()] = EdgeWall
		}
	} else {
		b.placeSecret(at, dir)
	}
	if from != card.CardVault {
		b.cells[at.Row][at.Col].Marks = append(b.cells[at.Row][at.Col].Marks, Mark{Kind: MarkCircle, Color: color})
	}
	return nil
}

// placeSecret 暗道取代墙体；对面格原本已是暗道时，对面格的暗道被去掉
func (b *Board) placeSecret(at Coord, dir Direction) {
	b.cells[at.Row][at.Col].Edges[dir] = EdgeSecret
	far := b.cell(at.Step(dir))
	if far == nil {
		return
	}
	opp := dir.Opposite()
	if far.Edges[opp] == EdgeSecret {
		far.Edges[opp] = EdgeOpen
		return
	}
	far.Edges[opp] = EdgeSecret
}

// ApplyVaultReveal 密室：本格四边全部放置暗道，已有暗道的边跳过，再留下中性标记
func (b *Board) ApplyVaultReveal(at Coord) error {
	c := b.cell(at)
	if c == nil {
		return fmt.Errorf("%w: %s is off the board", ErrEdgeConflict, at)
	}
	for _, dir := range Directions {
		if c.Edges[dir] == EdgeSecret {
			continue
		}
		b.placeSecret(at, dir)
	}
	c.Marks = append(c.Marks, Mark{Kind: MarkCircle, Color: NeutralColor})
	return nil
}
