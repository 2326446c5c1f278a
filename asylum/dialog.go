package asylum

import "asylum-lite/card"

// DialogKind 当前等待玩家决定的子流程
type DialogKind byte

const (
	DialogNone          DialogKind = 0
	DialogExploreEdge   DialogKind = 1 // 探索墙体/暗道时选择边
	DialogDice          DialogKind = 2 // 掷骰判定
	DialogTunnelBattle  DialogKind = 3 // 暗道博弈
	DialogPendingDamage DialogKind = 4 // 病患选择伤害类型
)

var DialogKindDictionary = map[DialogKind]string{
	DialogNone:          "none",
	DialogExploreEdge:   "exploreEdge",
	DialogDice:          "dice",
	DialogTunnelBattle:  "tunnelBattle",
	DialogPendingDamage: "pendingDamage",
}

func (k DialogKind) String() string { return DialogKindDictionary[k] }

type EdgeChoice struct {
	Player int
	At     Coord
	Card   card.Card
	// the edge the mover came through
	Forbidden    Direction
	HasForbidden bool
}

type DiceJudgment struct {
	ID     int
	Kind   DiceKind
	Target int // NoPlayer for event judgments
}

type PendingDamage struct {
	Patient int
	Class   DamageClass
	Amount  int
}

// Dialog is the tagged view of what the session waits for. Only the field
// matching Kind is set.
type Dialog struct {
	Kind    DialogKind
	Edge    *EdgeChoice
	Dice    []DiceJudgment
	Tunnel  *TunnelBattle
	Pending []PendingDamage
}

// blockingLocked reports whether a dialog that must be answered before anything else is open.
func (g *Game) blockingLocked() bool {
	return g.edge != nil || g.tunnel != nil
}

func (g *Game) dialogOpenLocked() bool {
	return g.blockingLocked() || len(g.judgments) > 0 || len(g.pending) > 0
}

func (g *Game) dialogLocked() Dialog {
	switch {
	case g.edge != nil:
		e := *g.edge
		return Dialog{Kind: DialogExploreEdge, Edge: &e}
	case g.tunnel != nil:
		t := *g.tunnel
		return Dialog{Kind: DialogTunnelBattle, Tunnel: &t}
	case len(g.judgments) > 0:
		return Dialog{Kind: DialogDice, Dice: append([]DiceJudgment(nil), g.judgments...)}
	case len(g.pending) > 0:
		return Dialog{Kind: DialogPendingDamage, Pending: append([]PendingDamage(nil), g.pending...)}
	}
	return Dialog{Kind: DialogNone}
}

func (g *Game) Dialog() Dialog {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dialogLocked()
}
