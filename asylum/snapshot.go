package asylum

import (
	"sort"

	"asylum-lite/card"
)

type PlayerSnapshot struct {
	ID     int
	Name   string
	Role   Role
	Color  string
	Robot  bool
	Placed bool
	Pos    Coord
	Speed  int

	Sanity    int
	Pain      int
	Endurance int
	Status    Status

	Items   []card.Card
	Disease []card.Card

	SkipNextMove bool
	StepPenalty  int
}

type CellSnapshot struct {
	Edges [4]EdgeKind
	Marks []Mark
}

type Snapshot struct {
	Started bool
	Ended   bool
	Winner  Role
	Turn    uint32
	Phase   Phase

	CurrentPlayer int
	Budget        int

	Board    [BoardSize][BoardSize]CellSnapshot
	Explored []Coord
	Players  []PlayerSnapshot
	Dialog   Dialog

	DoctorCard *DoctorCard
	Events     []Event
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Started: g.started,
		Ended:   g.ended,
		Winner:  g.winner,
		Turn:    g.turn,
		Phase:   g.phase,
		Budget:  g.budget,
		Dialog:  g.dialogLocked(),
		Events:  append([]Event{}, g.events...),
	}
	if g.curNode != nil {
		s.CurrentPlayer = g.curNode.Player.ID
	}
	if g.doctorCard != nil {
		dc := *g.doctorCard
		dc.Tags = append([]string(nil), dc.Tags...)
		s.DoctorCard = &dc
	}

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			c := &g.board.cells[row][col]
			s.Board[row][col] = CellSnapshot{
				Edges: c.Edges,
				Marks: append([]Mark(nil), c.Marks...),
			}
		}
	}
	g.board.explored.Each(func(c Coord) {
		s.Explored = append(s.Explored, c)
	})
	sort.Slice(s.Explored, func(i, j int) bool {
		if s.Explored[i].Row != s.Explored[j].Row {
			return s.Explored[i].Row < s.Explored[j].Row
		}
		return s.Explored[i].Col < s.Explored[j].Col
	})

	for _, p := range g.order {
		s.Players = append(s.Players, PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Role:         p.Role,
			Color:        p.Color,
			Robot:        p.Robot,
			Placed:       p.placed,
			Pos:          p.pos,
			Speed:        g.speedLocked(p),
			Sanity:       p.sanity,
			Pain:         p.pain,
			Endurance:    p.endurance,
			Status:       p.status,
			Items:        append([]card.Card{}, p.items...),
			Disease:      append([]card.Card{}, p.disease...),
			SkipNextMove: p.skipNextMove,
			StepPenalty:  p.stepPenalty,
		})
	}
	return s
}

func (p PlayerSnapshot) Alive() bool { return p.Status != StatusDead }

// Player finds a player snapshot by id.
func (s Snapshot) Player(id int) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// Doctor returns the doctor's snapshot.
func (s Snapshot) Doctor() (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.Role == RoleDoctor {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// IsBlocked mirrors Board.IsBlocked on the snapshot.
func (s Snapshot) IsBlocked(from, to Coord) bool {
	dir, ok := from.DirectionTo(to)
	if !ok || !from.InBounds() {
		return false
	}
	return s.Board[from.Row][from.Col].Edges[dir] == EdgeWall
}

// IsExplored reports whether the coordinate is in the explored list.
func (s Snapshot) IsExplored(c Coord) bool {
	i := sort.Search(len(s.Explored), func(i int) bool {
		e := s.Explored[i]
		return e.Row > c.Row || (e.Row == c.Row && e.Col >= c.Col)
	})
	return i < len(s.Explored) && s.Explored[i] == c
}
