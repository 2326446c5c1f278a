package asylum

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"asylum-lite/card"
)

type Game struct {
	cfg  Config
	rng  Source
	dice Dice
	deck *card.Sampler

	mu sync.Mutex

	board *Board

	// seats
	playersByID map[int]*Player
	order       []*Player
	nodes       map[int]*PlayerNode
	doctor      *Player
	doctorCard  *DoctorCard

	// turn state
	started bool
	ended   bool
	winner  Role
	phase   Phase
	turn    uint32
	curNode *PlayerNode
	budget  int

	// dialogs
	edge         *EdgeChoice
	tunnel       *TunnelBattle
	judgments    []DiceJudgment
	nextJudgment int
	pending      []PendingDamage

	// narration
	seq    uint64
	events []Event
}

func NewGame(cfg Config) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	src := cfg.Source
	if src == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		src = rand.New(rand.NewSource(seed))
	}
	deck := card.NewExplorationSampler()
	if cfg.ExploreWeights != nil {
		var err error
		if deck, err = card.NewSampler(cfg.ExploreWeights); err != nil {
			return nil, err
		}
	}
	return &Game{
		cfg:         cfg,
		rng:         src,
		dice:        NewDice(src),
		deck:        deck,
		board:       NewBoard(),
		playersByID: make(map[int]*Player),
		nodes:       make(map[int]*PlayerNode),
		phase:       PhaseLobby,
	}, nil
}

func validateRoster(r Roster) error {
	if len(r.Seats) < 2 {
		return ErrInvalidState("need at least two players")
	}
	seen := make(map[int]bool, len(r.Seats))
	doctors := 0
	for _, s := range r.Seats {
		if s.ID == NoPlayer || seen[s.ID] {
			return ErrInvalidState(fmt.Sprintf("invalid or duplicate player id %d", s.ID))
		}
		seen[s.ID] = true
		switch s.Role {
		case RoleDoctor:
			doctors++
		case RolePatient:
		default:
			return ErrInvalidState(fmt.Sprintf("player %d has no role", s.ID))
		}
	}
	if doctors != 1 {
		return ErrInvalidState("roster needs exactly one doctor")
	}
	return nil
}

// Start seats the roster, rolls spawn points and opens the first turn.
func (g *Game) Start(r Roster) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return ErrInvalidState("session already started")
	}
	if err := validateRoster(r); err != nil {
		return err
	}
	if r.DoctorCard != nil {
		dc := *r.DoctorCard
		g.doctorCard = &dc
	}

	var first, last *PlayerNode
	for i, s := range r.Seats {
		p := &Player{ID: s.ID, Name: s.Name, Role: s.Role, Color: s.Color, Robot: s.Robot}
		if p.Name == "" {
			p.Name = fmt.Sprintf("玩家%d", s.ID)
		}
		if p.Color == "" {
			p.Color = DefaultPalette[i%len(DefaultPalette)]
		}
		if p.IsPatient() {
			p.sanity = g.cfg.InitialSanity
			p.pain = g.cfg.InitialPain
		} else {
			p.endurance = g.cfg.DefaultEndurance
			if g.doctorCard != nil && g.doctorCard.Endurance > 0 {
				p.endurance = g.doctorCard.Endurance
			}
			g.doctor = p
		}
		g.playersByID[p.ID] = p
		g.order = append(g.order, p)

		node := &PlayerNode{Player: p}
		g.nodes[p.ID] = node
		if first == nil {
			first = node
		}
		if last != nil {
			last.Next = node
		}
		last = node
	}
	last.Next = first

	g.narrateLocked(EventSystem, NoPlayer, "游戏开始")
	if g.doctorCard != nil {
		g.narrateLocked(EventSystem, g.doctor.ID, "医生选择角色卡：%s", g.doctorCard.Name)
	}
	for _, p := range g.order {
		g.spawnLocked(p)
	}

	g.started = true
	g.curNode = first
	g.beginTurnLocked()
	return nil
}

// spawnLocked 掷骰决定出生点：行列各掷三颗骰子，点数和减一作为坐标
func (g *Game) spawnLocked(p *Player) {
	if pos, ok := g.cfg.Spawns[p.ID]; ok {
		p.moveTo(pos)
		g.narrateLocked(EventMove, p.ID, "%s出生于%s", p.Name, pos)
		return
	}
	rowSum, rowRolls := g.dice.Roll3d6()
	colSum, colRolls := g.dice.Roll3d6()
	pos := Coord{Row: rowSum - 1, Col: colSum - 1}
	p.moveTo(pos)
	g.narrateLocked(EventMove, p.ID, "%s掷骰%v/%v，出生于%s", p.Name, rowRolls, colRolls, pos)
}

func (g *Game) activeLocked() error {
	if !g.started {
		return ErrInvalidState("session not started")
	}
	if g.ended {
		return ErrSessionEnded
	}
	return nil
}

// turnHolderLocked returns the actor if it holds the current turn.
func (g *Game) turnHolderLocked(actor int) (*Player, error) {
	if err := g.activeLocked(); err != nil {
		return nil, err
	}
	p := g.playersByID[actor]
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if g.curNode.getPlayer() != p {
		return nil, ErrOutOfTurn
	}
	return p, nil
}

func (g *Game) doctorIDLocked() int {
	if g.doctor == nil {
		return NoPlayer
	}
	return g.doctor.ID
}

func (g *Game) speedLocked(p *Player) int {
	if p.IsDoctor() {
		speed := g.cfg.DoctorSpeed
		if g.doctorCard.SpeedBonus() {
			speed += g.cfg.SpeedBonus
		}
		return speed
	}
	return g.cfg.PatientSpeed
}

// Speed returns the maximum step budget a player may choose.
func (g *Game) Speed(id int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playersByID[id]
	if p == nil {
		return 0, ErrUnknownPlayer
	}
	return g.speedLocked(p), nil
}

// ChooseSteps sets the step budget for the current turn.
func (g *Game) ChooseSteps(actor int, n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.turnHolderLocked(actor)
	if err != nil {
		return err
	}
	if g.dialogOpenLocked() {
		return ErrUnresolvedDialog
	}
	if g.phase != PhaseChoosingSteps {
		return ErrInvalidState("steps already chosen")
	}
	speed := g.speedLocked(p)
	if n < 1 || n > speed {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidStepCount, n, speed)
	}

	g.budget = n
	g.phase = PhaseMoving
	g.narrateLocked(EventTurn, p.ID, "%s选择移动%d格", p.Name, n)
	switch {
	case p.skipNextMove:
		p.skipNextMove = false
		p.stepPenalty = 0
		g.budget = 0
		g.narrateLocked(EventTurn, p.ID, "%s跳过移动阶段", p.Name)
	case p.stepPenalty > 0:
		g.budget = max(0, g.budget-p.stepPenalty)
		g.narrateLocked(EventTurn, p.ID, "%s移动减少%d格", p.Name, p.stepPenalty)
		p.stepPenalty = 0
	}
	g.maybeEndTurnLocked()
	return nil
}

// Move attempts one orthogonal step.
func (g *Game) Move(actor int, dir Direction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moveLocked(actor, dir)
}

// MoveTo moves to an orthogonally adjacent target cell.
func (g *Game) MoveTo(actor int, target Coord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playersByID[actor]
	if p == nil {
		return ErrUnknownPlayer
	}
	dir, ok := p.pos.DirectionTo(target)
	if !ok {
		return fmt.Errorf("%w: %s is not adjacent to %s", ErrBlockedMove, target, p.pos)
	}
	return g.moveLocked(actor, dir)
}

func (g *Game) moveLocked(actor int, dir Direction) error {
	p, err := g.turnHolderLocked(actor)
	if err != nil {
		return err
	}
	if g.dialogOpenLocked() {
		return ErrUnresolvedDialog
	}
	if g.phase != PhaseMoving {
		return ErrInvalidState("choose steps first")
	}
	if dir > West {
		return ErrInvalidState("invalid direction")
	}
	from := p.pos
	to := from.Step(dir)
	if !to.InBounds() {
		return fmt.Errorf("%w: %s is off the board", ErrBlockedMove, to)
	}
	if g.board.IsBlocked(from, to) {
		return fmt.Errorf("%w: 有墙体阻挡，无法移动", ErrBlockedMove)
	}
	if g.board.Edge(from, dir) == EdgeSecret {
		if opp := g.tunnelOpponentLocked(p, to); opp != nil {
			g.tunnel = &TunnelBattle{
				From:     from,
				To:       to,
				Dir:      dir,
				Mover:    p.ID,
				Opponent: opp.ID,
				Phase:    TunnelChoose,
			}
			g.narrateLocked(EventTunnel, p.ID, "%s穿越暗道时遭遇%s，进入博弈", p.Name, opp.Name)
			return nil
		}
	}
	g.completeStepLocked(p, dir, to)
	return nil
}

// completeStepLocked 移动一格：扣步数，未探索格先探索，再判断袭击
func (g *Game) completeStepLocked(p *Player, dir Direction, to Coord) {
	p.moveTo(to)
	g.budget--
	g.narrateLocked(EventMove, p.ID, "%s移动到%s", p.Name, to)
	if !g.board.Explored(to) {
		if !g.exploreLocked(p, to, dir) {
			return
		}
	}
	g.afterStepLocked()
}

func (g *Game) afterStepLocked() {
	g.autoAttackLocked()
	g.maybeEndTurnLocked()
}

func (g *Game) maybeEndTurnLocked() {
	if g.ended || g.phase != PhaseMoving || g.dialogOpenLocked() {
		return
	}
	cur := g.curNode.getPlayer()
	if g.budget <= 0 || (cur != nil && !cur.Alive()) {
		g.endTurnLocked()
	}
}

// EndTurn ends the current turn early.
func (g *Game) EndTurn(actor int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.turnHolderLocked(actor); err != nil {
		return err
	}
	if g.dialogOpenLocked() {
		return ErrUnresolvedDialog
	}
	g.endTurnLocked()
	return nil
}

// endTurnLocked 轮到下一个存活玩家
func (g *Game) endTurnLocked() {
	g.budget = 0
	// 惩罚只作用于下一个移动阶段，没选步数就结束也算用掉
	if cur := g.curNode.getPlayer(); cur != nil {
		cur.skipNextMove = false
		cur.stepPenalty = 0
	}
	next := g.curNode.Next.WalkOnce(func(n *PlayerNode) bool {
		return n.Player.Alive()
	})
	if next != nil {
		g.curNode = next
	}
	g.beginTurnLocked()
}

func (g *Game) beginTurnLocked() {
	g.turn++
	g.phase = PhaseChoosingSteps
	p := g.curNode.getPlayer()
	g.narrateLocked(EventTurn, p.ID, "轮到%s（%s）行动", p.Name, p.Role.Title())
}

func (g *Game) Ended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ended
}

// Current returns the id of the turn holder.
func (g *Game) Current() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.curNode == nil {
		return NoPlayer
	}
	return g.curNode.Player.ID
}

// Cell returns a copy of a cell; the board itself is never handed out.
func (g *Game) Cell(at Coord) (Cell, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Cell(at)
}

func (g *Game) IsBlocked(from, to Coord) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.IsBlocked(from, to)
}
