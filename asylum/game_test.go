package asylum

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"asylum-lite/card"
)

// 探索牌库抽牌序号（按 ExplorationWeights 顺序累加）
const (
	drawDoor     = 0
	drawSecret   = 1
	drawVault    = 3
	drawWall     = 4
	drawCorpse   = 19
	drawAccident = 21
)

func face(n int) int { return n - 1 }

func testRoster() Roster {
	return Roster{Seats: []Seat{
		{ID: 1, Name: "医生", Role: RoleDoctor, Color: "#4A90E2"},
		{ID: 2, Name: "玩家2", Role: RolePatient, Color: "#E94E77"},
		{ID: 3, Name: "玩家3", Role: RolePatient, Color: "#F5A623"},
	}}
}

func newTestGame(t *testing.T, src Source, spawns map[int]Coord, mutate ...func(*Config)) *Game {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Source = src
	cfg.Spawns = spawns
	for _, m := range mutate {
		m(&cfg)
	}
	g, err := NewGame(cfg)
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.Start(testRoster()); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	return g
}

func mustPlayer(t *testing.T, s Snapshot, id int) PlayerSnapshot {
	t.Helper()
	p, ok := s.Player(id)
	if !ok {
		t.Fatalf("player %d missing from snapshot", id)
	}
	return p
}

func hasEvent(s Snapshot, text string) bool {
	for _, e := range s.Events {
		if strings.Contains(e.Text, text) {
			return true
		}
	}
	return false
}

func TestStartValidatesRoster(t *testing.T) {
	g, err := NewGame(DefaultConfig())
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	r := testRoster()
	r.Seats[1].Role = RoleDoctor
	if err := g.Start(r); err == nil {
		t.Fatalf("expected error for two doctors")
	}
	if err := g.Start(testRoster()); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if err := g.Start(testRoster()); err == nil {
		t.Fatalf("expected error on second start")
	}
}

func TestSpawnRollsStayOnBoard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = DiceSequence(6, 6, 6, 1, 1, 1, 3, 4, 5, 2, 2, 2, 6, 5, 4, 1, 2, 3)
	g, err := NewGame(cfg)
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if err := g.Start(testRoster()); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	s := g.Snapshot()
	if p := mustPlayer(t, s, 1); p.Pos != (Coord{Row: 17, Col: 2}) {
		t.Fatalf("doctor spawn = %s", p.Pos)
	}
	if p := mustPlayer(t, s, 2); p.Pos != (Coord{Row: 11, Col: 5}) {
		t.Fatalf("patient spawn = %s", p.Pos)
	}
	if s.CurrentPlayer != 1 || s.Phase != PhaseChoosingSteps {
		t.Fatalf("expected doctor to choose steps first, got %d/%v", s.CurrentPlayer, s.Phase)
	}
}

func TestChooseStepsBounds(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 0, Col: 0}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)

	if err := g.ChooseSteps(2, 1); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if err := g.ChooseSteps(99, 1); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
	for _, n := range []int{0, 7} {
		if err := g.ChooseSteps(1, n); !errors.Is(err, ErrInvalidStepCount) {
			t.Fatalf("ChooseSteps(%d) expected ErrInvalidStepCount, got %v", n, err)
		}
	}
	if err := g.ChooseSteps(1, 6); err != nil {
		t.Fatalf("ChooseSteps err: %v", err)
	}
	if err := g.EndTurn(1); err != nil {
		t.Fatalf("EndTurn err: %v", err)
	}
	if err := g.ChooseSteps(2, 5); !errors.Is(err, ErrInvalidStepCount) {
		t.Fatalf("patient speed is 4, got %v", err)
	}
}

func TestSpeedCardAddsTwo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = NewSequenceSource()
	cfg.Spawns = map[int]Coord{1: {Row: 0, Col: 0}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g, _ := NewGame(cfg)
	r := testRoster()
	dc, _ := FindDoctorCard(DefaultDoctorCards, "speed")
	r.DoctorCard = &dc
	if err := g.Start(r); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if speed, _ := g.Speed(1); speed != 8 {
		t.Fatalf("speed=%d want 8", speed)
	}
	if err := g.ChooseSteps(1, 8); err != nil {
		t.Fatalf("ChooseSteps err: %v", err)
	}
}

func TestWallBlocksWithoutConsumingBudget(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 4, Col: 4}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)
	_ = g.board.PlaceEdge(Coord{Row: 4, Col: 4}, East, EdgeWall, card.CardWall, "#fff")

	_ = g.ChooseSteps(1, 2)
	if err := g.Move(1, East); !errors.Is(err, ErrBlockedMove) {
		t.Fatalf("expected ErrBlockedMove, got %v", err)
	}
	if err := g.MoveTo(1, Coord{Row: 6, Col: 4}); !errors.Is(err, ErrBlockedMove) {
		t.Fatalf("expected ErrBlockedMove for non-adjacent target, got %v", err)
	}
	if s := g.Snapshot(); s.Budget != 2 {
		t.Fatalf("budget=%d want 2", s.Budget)
	}
	if err := g.MoveTo(0, Coord{}); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestExploredCellNeverRedraws(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 4, Col: 4}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	src := NewSequenceSource(drawDoor)
	g := newTestGame(t, src, spawns)
	g.board.markExplored(Coord{Row: 4, Col: 4})

	_ = g.ChooseSteps(1, 3)
	if err := g.Move(1, South); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	if err := g.Move(1, North); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	// 回到已探索格：不再抽牌（序列已耗尽，若抽牌会 panic）
	if err := g.Move(1, South); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	if src.Remaining() != 0 {
		t.Fatalf("unexpected remaining draws")
	}
	c, _ := g.Cell(Coord{Row: 5, Col: 4})
	if len(c.Marks) != 1 || c.Marks[0].Kind != MarkDoor {
		t.Fatalf("door mark applied %d times", len(c.Marks))
	}
	if s := g.Snapshot(); s.CurrentPlayer != 2 {
		t.Fatalf("turn should pass when budget runs out, current=%d", s.CurrentPlayer)
	}
}

// 医生与病患同格探索到墙体：选边后两侧同步为墙，留下标记并排队袭击判定
func TestWallExplorationWithCoLocatedPatient(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 5, Col: 4}, 2: {Row: 5, Col: 5}, 3: {Row: 12, Col: 12}}
	src := NewSequenceSource(drawWall)
	g := newTestGame(t, src, spawns)

	_ = g.ChooseSteps(1, 2)
	if err := g.Move(1, East); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	d := g.Dialog()
	if d.Kind != DialogExploreEdge || d.Edge.Card != card.CardWall || d.Edge.Forbidden != West {
		t.Fatalf("expected wall edge dialog, got %+v", d)
	}
	if err := g.Move(1, East); !errors.Is(err, ErrUnresolvedDialog) {
		t.Fatalf("expected ErrUnresolvedDialog, got %v", err)
	}
	if err := g.PlaceEdge(2, card.CardWall, North); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if err := g.PlaceEdge(1, card.CardSecret, North); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
	if err := g.PlaceEdge(1, card.CardWall, West); !errors.Is(err, ErrEdgeConflict) {
		t.Fatalf("expected ErrEdgeConflict for the entry edge, got %v", err)
	}
	if err := g.PlaceEdge(1, card.CardWall, North); err != nil {
		t.Fatalf("PlaceEdge err: %v", err)
	}

	s := g.Snapshot()
	if s.Board[5][5].Edges[North] != EdgeWall || s.Board[4][5].Edges[South] != EdgeWall {
		t.Fatalf("wall not mirrored on placement")
	}
	marks := s.Board[5][5].Marks
	if len(marks) != 1 || marks[0].Color != "#4A90E2" {
		t.Fatalf("expected doctor circle, got %+v", marks)
	}
	if s.Dialog.Kind != DialogDice || len(s.Dialog.Dice) != 1 || s.Dialog.Dice[0].Target != 2 {
		t.Fatalf("expected one attack judgment on patient 2, got %+v", s.Dialog)
	}

	src.Push(face(6))
	roll, err := g.RollDice(1, DiceAttack)
	if err != nil || roll != 6 {
		t.Fatalf("RollDice roll=%d err=%v", roll, err)
	}
	if p := mustPlayer(t, g.Snapshot(), 2); p.Pain != 4 {
		t.Fatalf("pain=%d want 4", p.Pain)
	}
	if _, err := g.RollDice(1, DiceAttack); err == nil {
		t.Fatalf("second roll must fail")
	}
}

// 病患穿越暗道遭遇医生：伺击+逃跑 => 医生下次移动被跳过
func TestTunnelAmbushFleeSkipsDoctorMove(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 3, Col: 3}, 2: {Row: 3, Col: 5}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)
	_ = g.board.PlaceEdge(Coord{Row: 3, Col: 5}, West, EdgeSecret, card.CardSecret, "#fff")
	g.board.markExplored(Coord{Row: 3, Col: 4})

	_ = g.EndTurn(1)
	_ = g.ChooseSteps(2, 2)
	if err := g.Move(2, West); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	s := g.Snapshot()
	if s.Dialog.Kind != DialogTunnelBattle || s.Dialog.Tunnel.Phase != TunnelChoose || s.Dialog.Tunnel.Opponent != 1 {
		t.Fatalf("expected tunnel battle, got %+v", s.Dialog)
	}
	if p := mustPlayer(t, s, 2); p.Pos != (Coord{Row: 3, Col: 5}) || s.Budget != 2 {
		t.Fatalf("move must be suspended, pos=%s budget=%d", p.Pos, s.Budget)
	}
	if err := g.ChooseTunnelAction(2, RoleDoctor, TunnelAmbush); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if err := g.ChooseTunnelAction(1, RoleDoctor, TunnelFlee); err == nil {
		t.Fatalf("doctor cannot flee")
	}
	if err := g.ChooseTunnelAction(1, RoleDoctor, TunnelAmbush); err != nil {
		t.Fatalf("doctor choice err: %v", err)
	}
	if err := g.DismissTunnel(2, TunnelPenalty{}); !errors.Is(err, ErrUnresolvedDialog) {
		t.Fatalf("dismiss before result: %v", err)
	}
	if err := g.ChooseTunnelAction(2, RolePatient, TunnelFlee); err != nil {
		t.Fatalf("patient choice err: %v", err)
	}
	d := g.Dialog()
	if d.Tunnel.Phase != TunnelResult || d.Tunnel.Result != TunnelTextAmbushFails {
		t.Fatalf("unexpected result %+v", d.Tunnel)
	}
	if err := g.DismissTunnel(2, TunnelPenalty{}); err != nil {
		t.Fatalf("DismissTunnel err: %v", err)
	}
	s = g.Snapshot()
	if p := mustPlayer(t, s, 2); p.Pos != (Coord{Row: 3, Col: 4}) || s.Budget != 1 {
		t.Fatalf("move should complete, pos=%s budget=%d", p.Pos, s.Budget)
	}
	if !mustPlayer(t, s, 1).SkipNextMove {
		t.Fatalf("doctor should skip next move")
	}

	_ = g.EndTurn(2)
	_ = g.EndTurn(3)
	if err := g.ChooseSteps(1, 4); err != nil {
		t.Fatalf("ChooseSteps err: %v", err)
	}
	s = g.Snapshot()
	if s.CurrentPlayer != 2 || !hasEvent(s, "跳过移动阶段") {
		t.Fatalf("doctor's movement should be forced to 0, current=%d", s.CurrentPlayer)
	}
}

// 被罚跳过移动的医生没选步数直接结束回合，惩罚同样用掉
func TestTunnelSkipSpentByEarlyEndTurn(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 3, Col: 3}, 2: {Row: 3, Col: 5}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)
	_ = g.board.PlaceEdge(Coord{Row: 3, Col: 5}, West, EdgeSecret, card.CardSecret, "#fff")
	g.board.markExplored(Coord{Row: 3, Col: 4})

	_ = g.EndTurn(1)
	_ = g.ChooseSteps(2, 2)
	_ = g.Move(2, West)
	_ = g.ChooseTunnelAction(1, RoleDoctor, TunnelAmbush)
	_ = g.ChooseTunnelAction(2, RolePatient, TunnelFlee)
	if err := g.DismissTunnel(2, TunnelPenalty{}); err != nil {
		t.Fatalf("DismissTunnel err: %v", err)
	}
	if !mustPlayer(t, g.Snapshot(), 1).SkipNextMove {
		t.Fatalf("doctor should skip next move")
	}

	_ = g.EndTurn(2)
	_ = g.EndTurn(3)
	if err := g.EndTurn(1); err != nil {
		t.Fatalf("EndTurn err: %v", err)
	}
	if d := mustPlayer(t, g.Snapshot(), 1); d.SkipNextMove || d.StepPenalty != 0 {
		t.Fatalf("penalty should be spent, skip=%v penalty=%d", d.SkipNextMove, d.StepPenalty)
	}

	_ = g.EndTurn(2)
	_ = g.EndTurn(3)
	if err := g.ChooseSteps(1, 3); err != nil {
		t.Fatalf("ChooseSteps err: %v", err)
	}
	s := g.Snapshot()
	if s.CurrentPlayer != 1 || s.Budget != 3 {
		t.Fatalf("doctor should get full budget, current=%d budget=%d", s.CurrentPlayer, s.Budget)
	}
}

// 消除后只剩一侧暗道：从暗道一侧穿越才会触发博弈，从开放一侧走过去是普通移动
func TestOneSidedSecretOnlyTriggersFromSecretSide(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 2, Col: 5}, 2: {Row: 3, Col: 4}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)
	g.board.cells[3][4].Edges[East] = EdgeSecret
	_ = g.board.PlaceEdge(Coord{Row: 3, Col: 5}, West, EdgeSecret, card.CardSecret, "#fff")
	if g.board.Edge(Coord{Row: 3, Col: 4}, East) != EdgeOpen {
		t.Fatalf("far side should be cancelled")
	}
	g.board.markExplored(Coord{Row: 3, Col: 5})

	_ = g.EndTurn(1)
	_ = g.ChooseSteps(2, 2)
	if err := g.MoveTo(1, Coord{Row: 3, Col: 5}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if err := g.MoveTo(2, Coord{Row: 3, Col: 5}); err != nil {
		t.Fatalf("MoveTo err: %v", err)
	}
	s := g.Snapshot()
	if s.Dialog.Kind == DialogTunnelBattle || mustPlayer(t, s, 2).Pos != (Coord{Row: 3, Col: 5}) {
		t.Fatalf("open side crossing should be a plain move, dialog=%+v", s.Dialog)
	}

	if err := g.MoveTo(2, Coord{Row: 3, Col: 4}); err != nil {
		t.Fatalf("MoveTo err: %v", err)
	}
	s = g.Snapshot()
	if s.Dialog.Kind != DialogTunnelBattle || s.Dialog.Tunnel.Opponent != 1 {
		t.Fatalf("secret side crossing should open a tunnel battle, got %+v", s.Dialog)
	}
}

func TestTunnelPursueSneakHitsDoctor(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 3, Col: 3}, 2: {Row: 3, Col: 5}, 3: {Row: 12, Col: 12}}
	src := NewSequenceSource()
	g := newTestGame(t, src, spawns)
	_ = g.board.PlaceEdge(Coord{Row: 3, Col: 5}, West, EdgeSecret, card.CardSecret, "#fff")
	g.board.markExplored(Coord{Row: 3, Col: 4})

	_ = g.EndTurn(1)
	_ = g.ChooseSteps(2, 1)
	_ = g.Move(2, West)
	_ = g.ChooseTunnelAction(2, RolePatient, TunnelSneak)
	_ = g.ChooseTunnelAction(1, RoleDoctor, TunnelPursue)
	if r := g.Dialog().Tunnel.Result; r != TunnelTextDoctorHit {
		t.Fatalf("result=%q", r)
	}
	if err := g.DismissTunnel(2, TunnelPenalty{}); err != nil {
		t.Fatalf("DismissTunnel err: %v", err)
	}
	d := g.Dialog()
	if d.Kind != DialogDice || d.Dice[0].Target != 1 {
		t.Fatalf("expected attack judgment on doctor, got %+v", d)
	}
	src.Push(face(6))
	if _, err := g.RollDice(2, DiceAttack); err != nil {
		t.Fatalf("RollDice err: %v", err)
	}
	s := g.Snapshot()
	if doc := mustPlayer(t, s, 1); doc.Endurance != 4 || doc.StepPenalty != 1 {
		t.Fatalf("doctor endurance=%d penalty=%d", doc.Endurance, doc.StepPenalty)
	}
	if s.CurrentPlayer != 3 {
		t.Fatalf("turn should pass after budget and dice are done, current=%d", s.CurrentPlayer)
	}
	_ = g.EndTurn(3)
	_ = g.ChooseSteps(1, 3)
	if s := g.Snapshot(); s.Budget != 2 {
		t.Fatalf("budget=%d want 2", s.Budget)
	}
}

func TestTunnelAmbushSneakDiscardOrAttack(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 3, Col: 3}, 2: {Row: 3, Col: 5}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)
	_ = g.board.PlaceEdge(Coord{Row: 3, Col: 5}, West, EdgeSecret, card.CardSecret, "#fff")
	g.board.markExplored(Coord{Row: 3, Col: 4})
	g.playersByID[2].items.Add(card.CardItemTool)

	_ = g.EndTurn(1)
	_ = g.ChooseSteps(2, 2)
	_ = g.Move(2, West)
	_ = g.ChooseTunnelAction(1, RoleDoctor, TunnelAmbush)
	_ = g.ChooseTunnelAction(2, RolePatient, TunnelSneak)
	if r := g.Dialog().Tunnel.Result; r != TunnelTextPatientHit {
		t.Fatalf("result=%q", r)
	}
	if err := g.DismissTunnel(2, TunnelPenalty{}); err == nil {
		t.Fatalf("a penalty choice is required")
	}
	if err := g.DismissTunnel(2, TunnelPenalty{Kind: PenaltyDiscard, ItemIndex: 3}); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
	if err := g.DismissTunnel(1, TunnelPenalty{Kind: PenaltyAttack}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("only the mover dismisses, got %v", err)
	}
	if err := g.DismissTunnel(2, TunnelPenalty{Kind: PenaltyDiscard, ItemIndex: 0}); err != nil {
		t.Fatalf("DismissTunnel err: %v", err)
	}
	s := g.Snapshot()
	p := mustPlayer(t, s, 2)
	if len(p.Items) != 0 || p.Pos != (Coord{Row: 3, Col: 4}) {
		t.Fatalf("items=%v pos=%s", p.Items, p.Pos)
	}
	if s.Dialog.Kind != DialogNone {
		t.Fatalf("no dialog expected, got %v", s.Dialog.Kind)
	}
}

// 疼痛从3经三次1点袭击降到0：不为负数，状态变为死亡
func TestPainExhaustionKillsPatient(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 2, Col: 2}, 2: {Row: 2, Col: 3}, 3: {Row: 12, Col: 12}}
	src := DiceSequence(2, 3, 4)
	g := newTestGame(t, src, spawns, func(c *Config) { c.InitialPain = 3 })
	g.board.markExplored(Coord{Row: 2, Col: 2})
	g.board.markExplored(Coord{Row: 2, Col: 3})

	_ = g.ChooseSteps(1, 5)
	for i := 0; i < 3; i++ {
		if err := g.Move(1, East); err != nil {
			t.Fatalf("Move east #%d err: %v", i, err)
		}
		if _, err := g.RollDice(1, DiceAttack); err != nil {
			t.Fatalf("RollDice #%d err: %v", i, err)
		}
		want := 2 - i
		if p := mustPlayer(t, g.Snapshot(), 2); p.Pain != want {
			t.Fatalf("pain=%d want %d", p.Pain, want)
		}
		if i < 2 {
			if err := g.Move(1, West); err != nil {
				t.Fatalf("Move west #%d err: %v", i, err)
			}
		}
	}
	s := g.Snapshot()
	p := mustPlayer(t, s, 2)
	if p.Status != StatusDead || p.Pain != 0 {
		t.Fatalf("status=%v pain=%d", p.Status, p.Pain)
	}
	if s.Ended {
		t.Fatalf("session should continue while patient 3 lives")
	}
	if s.CurrentPlayer != 3 {
		t.Fatalf("dead patient must be skipped, current=%d", s.CurrentPlayer)
	}
	_ = g.EndTurn(3)
	_ = g.EndTurn(1)
	if cur := g.Current(); cur != 3 {
		t.Fatalf("dead patient must stay skipped, current=%d", cur)
	}
}

func TestAttackFloorsAtZero(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 2, Col: 2}, 2: {Row: 2, Col: 3}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, DiceSequence(6), spawns, func(c *Config) { c.InitialPain = 1 })
	g.board.markExplored(Coord{Row: 2, Col: 3})
	_ = g.ChooseSteps(1, 1)
	_ = g.Move(1, East)
	if _, err := g.RollDice(1, DiceAttack); err != nil {
		t.Fatalf("RollDice err: %v", err)
	}
	if p := mustPlayer(t, g.Snapshot(), 2); p.Pain != 0 || p.Status != StatusDead {
		t.Fatalf("pain=%d status=%v", p.Pain, p.Status)
	}
}

// 理智归零发狂后仍参与轮转，之后疼痛归零才倒下
func TestSanityExhaustionDrivesPatientCrazy(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 4, Col: 4}, 2: {Row: 4, Col: 5}, 3: {Row: 12, Col: 12}}
	src := NewSequenceSource(drawAccident, face(1), face(5), face(6))
	g := newTestGame(t, src, spawns, func(c *Config) {
		c.InitialSanity = 1
		c.InitialPain = 1
	})
	g.board.markExplored(Coord{Row: 4, Col: 6})

	_ = g.ChooseSteps(1, 1)
	if err := g.Move(1, East); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	_, _ = g.RollDice(1, DiceAttack)
	_, _ = g.RollDice(1, DiceEvent)
	if err := g.ResolvePendingDamage(2, StatSanity); err != nil {
		t.Fatalf("ResolvePendingDamage err: %v", err)
	}
	s := g.Snapshot()
	p := mustPlayer(t, s, 2)
	if p.Sanity != 0 || p.Status != StatusCrazy || p.Pain != 1 {
		t.Fatalf("sanity=%d pain=%d status=%v", p.Sanity, p.Pain, p.Status)
	}
	if !hasEvent(s, "陷入疯狂") || s.Ended {
		t.Fatalf("crazy patient should be narrated and the session continues")
	}
	if s.CurrentPlayer != 2 {
		t.Fatalf("crazy patient keeps its turn, current=%d", s.CurrentPlayer)
	}

	_ = g.ChooseSteps(2, 1)
	if err := g.Move(2, East); err != nil {
		t.Fatalf("crazy patient Move err: %v", err)
	}
	_ = g.EndTurn(3)
	_ = g.ChooseSteps(1, 1)
	if err := g.Move(1, East); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	if _, err := g.RollDice(1, DiceAttack); err != nil {
		t.Fatalf("RollDice err: %v", err)
	}
	s = g.Snapshot()
	if p := mustPlayer(t, s, 2); p.Pain != 0 || p.Status != StatusDead {
		t.Fatalf("pain=%d status=%v", p.Pain, p.Status)
	}
	if s.CurrentPlayer != 3 {
		t.Fatalf("dead patient must leave the rotation, current=%d", s.CurrentPlayer)
	}
}

func TestDoctorAccidentQueuesEventAndAttack(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 4, Col: 4}, 2: {Row: 4, Col: 5}, 3: {Row: 12, Col: 12}}
	src := NewSequenceSource(drawAccident, face(1), face(5))
	g := newTestGame(t, src, spawns)

	_ = g.ChooseSteps(1, 1)
	if err := g.Move(1, East); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	d := g.Dialog()
	if d.Kind != DialogDice || len(d.Dice) != 2 {
		t.Fatalf("expected event + attack judgments, got %+v", d)
	}
	if err := g.EndTurn(1); !errors.Is(err, ErrUnresolvedDialog) {
		t.Fatalf("expected ErrUnresolvedDialog, got %v", err)
	}
	if _, err := g.RollDice(2, DiceAttack); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if _, err := g.RollDice(1, DiceAttack); err != nil {
		t.Fatalf("attack roll err: %v", err)
	}
	if _, err := g.RollDice(1, DiceEvent); err != nil {
		t.Fatalf("event roll err: %v", err)
	}
	s := g.Snapshot()
	if s.Dialog.Kind != DialogPendingDamage || len(s.Dialog.Pending) != 1 || s.Dialog.Pending[0].Patient != 2 {
		t.Fatalf("expected pending damage for patient 2, got %+v", s.Dialog)
	}
	if mustPlayer(t, s, 2).Pain != 6 {
		t.Fatalf("roll of 1 should not hurt")
	}
	if err := g.ResolvePendingDamage(3, StatSanity); err == nil {
		t.Fatalf("patient 3 has nothing pending")
	}
	if err := g.ResolvePendingDamage(2, StatSanity); err != nil {
		t.Fatalf("ResolvePendingDamage err: %v", err)
	}
	if err := g.ResolvePendingDamage(2, StatSanity); err == nil {
		t.Fatalf("pending damage must resolve exactly once")
	}
	s = g.Snapshot()
	if mustPlayer(t, s, 2).Sanity != 5 {
		t.Fatalf("sanity=%d want 5", mustPlayer(t, s, 2).Sanity)
	}
	if s.CurrentPlayer != 2 {
		t.Fatalf("turn should pass once every dialog resolves, current=%d", s.CurrentPlayer)
	}
}

func TestCorpseEffects(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 0, Col: 0}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	src := NewSequenceSource(drawCorpse, drawCorpse, 0)
	g := newTestGame(t, src, spawns)

	_ = g.ChooseSteps(1, 1)
	if err := g.Move(1, East); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	s := g.Snapshot()
	if s.CurrentPlayer != 1 || s.Budget != 2 || s.Phase != PhaseMoving {
		t.Fatalf("doctor should keep moving with 2 steps, current=%d budget=%d", s.CurrentPlayer, s.Budget)
	}
	if m := s.Board[0][1].Marks; len(m) != 1 || m[0].Kind != MarkCorpse {
		t.Fatalf("expected corpse mark, got %+v", m)
	}

	_ = g.EndTurn(1)
	_ = g.ChooseSteps(2, 1)
	if err := g.Move(2, South); err != nil {
		t.Fatalf("Move err: %v", err)
	}
	p := mustPlayer(t, g.Snapshot(), 2)
	if len(p.Items) != 1 || p.Items[0] != card.CardItemMedicine {
		t.Fatalf("patient should draw an item, got %v", p.Items)
	}
}

func TestVaultExplorationUsesNeutralMark(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 7, Col: 7}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(drawVault), spawns)
	_ = g.ChooseSteps(1, 1)
	_ = g.Move(1, North)
	s := g.Snapshot()
	cell := s.Board[6][7]
	for _, d := range Directions {
		if cell.Edges[d] != EdgeSecret {
			t.Fatalf("vault edge %s = %v", d, cell.Edges[d])
		}
	}
	if len(cell.Marks) != 1 || cell.Marks[0].Color != NeutralColor {
		t.Fatalf("marks=%+v", cell.Marks)
	}
}

func TestSecretCardRejectsDuplicateAndPlaces(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 7, Col: 7}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(drawSecret), spawns)
	_ = g.board.PlaceEdge(Coord{Row: 7, Col: 8}, North, EdgeSecret, card.CardSecret, "#fff")
	_ = g.ChooseSteps(1, 1)
	_ = g.Move(1, East)
	if got := g.PlaceableEdges(); !reflect.DeepEqual(got, []Direction{East, South}) {
		t.Fatalf("placeable=%v", got)
	}
	_ = g.PlaceEdge(1, card.CardSecret, East)
	s := g.Snapshot()
	if s.Board[7][8].Edges[East] != EdgeSecret || s.Board[7][9].Edges[West] != EdgeSecret {
		t.Fatalf("secret not mirrored")
	}
	if s.CurrentPlayer != 2 {
		t.Fatalf("turn should pass, current=%d", s.CurrentPlayer)
	}
}

func TestExchangeObstaclesForCritical(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 0, Col: 0}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(), spawns)
	p := g.playersByID[2]
	p.disease = card.CardList{card.CardObstacleVirus, card.CardObstacleLockdown, card.CardCriticalRescue, card.CardObstacleVirus}

	if err := g.ExchangeObstaclesForCritical(2, []int{0, 1}); err == nil {
		t.Fatalf("exactly three cards are required")
	}
	if err := g.ExchangeObstaclesForCritical(2, []int{0, 1, 2}); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
	if err := g.ExchangeObstaclesForCritical(2, []int{0, 0, 1}); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard for duplicates, got %v", err)
	}
	if p.disease.Count() != 4 {
		t.Fatalf("rejected exchange changed the hand")
	}
	g.playersByID[1].disease = card.CardList{card.CardObstacleVirus, card.CardObstacleLockdown, card.CardObstacleVirus}
	var stateErr InvalidStateError
	if err := g.ExchangeObstaclesForCritical(1, []int{0, 1, 2}); !errors.As(err, &stateErr) {
		t.Fatalf("doctor exchange should be rejected, got %v", err)
	}
	if g.playersByID[1].disease.Count() != 3 {
		t.Fatalf("rejected doctor exchange changed the hand")
	}
	if err := g.ExchangeObstaclesForCritical(2, []int{3, 0, 1}); err != nil {
		t.Fatalf("exchange err: %v", err)
	}
	want := card.CardList{card.CardCriticalRescue, card.CardCriticalWorsen}
	if !reflect.DeepEqual(p.disease, want) {
		t.Fatalf("disease=%v want %v", p.disease, want)
	}
}

func TestDrawAuxiliary(t *testing.T) {
	spawns := map[int]Coord{1: {Row: 0, Col: 0}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g := newTestGame(t, NewSequenceSource(1, 0), spawns)
	if _, err := g.DrawAuxiliary(2, card.DeckObstacle); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("expected ErrOutOfTurn, got %v", err)
	}
	if _, err := g.DrawAuxiliary(1, card.DeckExplore); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
	c, err := g.DrawAuxiliary(1, card.DeckObstacle)
	if err != nil || c != card.CardObstacleLockdown {
		t.Fatalf("draw=%v err=%v", c, err)
	}
	c, _ = g.DrawAuxiliary(1, card.DeckCritical)
	if d := mustPlayer(t, g.Snapshot(), 1).Disease; len(d) != 2 || d[1] != c {
		t.Fatalf("disease hand=%v", d)
	}
}

func TestShieldAbsorbsFirstObstacle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = NewSequenceSource(0, 0)
	cfg.Spawns = map[int]Coord{1: {Row: 0, Col: 0}, 2: {Row: 9, Col: 9}, 3: {Row: 12, Col: 12}}
	g, _ := NewGame(cfg)
	r := testRoster()
	dc, _ := FindDoctorCard(DefaultDoctorCards, "shield")
	r.DoctorCard = &dc
	_ = g.Start(r)
	_, _ = g.DrawAuxiliary(1, card.DeckObstacle)
	_, _ = g.DrawAuxiliary(1, card.DeckObstacle)
	if d := mustPlayer(t, g.Snapshot(), 1).Disease; len(d) != 1 {
		t.Fatalf("shield should absorb exactly one obstacle, hand=%v", d)
	}
}

func TestSameSeedSameSession(t *testing.T) {
	run := func() Snapshot {
		cfg := DefaultConfig()
		cfg.Seed = 42
		g, err := NewGame(cfg)
		if err != nil {
			t.Fatalf("NewGame err: %v", err)
		}
		if err := g.Start(testRoster()); err != nil {
			t.Fatalf("Start err: %v", err)
		}
		_ = g.ChooseSteps(1, 1)
		_ = g.Move(1, North)
		return g.Snapshot()
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different sessions")
	}
}
