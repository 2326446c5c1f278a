package npc

import (
	"asylum-lite/asylum"
	"asylum-lite/card"
)

// GameView is the part of the session a bot reads before acting.
type GameView struct {
	Self int
	Snap asylum.Snapshot
}

func (v GameView) Me() (asylum.PlayerSnapshot, bool) { return v.Snap.Player(v.Self) }

// ActionKind 机器人可执行的指令
type ActionKind byte

const (
	ActionNone          ActionKind = 0
	ActionChooseSteps   ActionKind = 1
	ActionMove          ActionKind = 2
	ActionPlaceEdge     ActionKind = 3
	ActionRollDice      ActionKind = 4
	ActionResolveDamage ActionKind = 5
	ActionTunnelChoice  ActionKind = 6
	ActionDismissTunnel ActionKind = 7
	ActionEndTurn       ActionKind = 8
)

var ActionKindDictionary = map[ActionKind]string{
	ActionNone:          "none",
	ActionChooseSteps:   "chooseSteps",
	ActionMove:          "move",
	ActionPlaceEdge:     "placeEdge",
	ActionRollDice:      "rollDice",
	ActionResolveDamage: "resolveDamage",
	ActionTunnelChoice:  "tunnelChoice",
	ActionDismissTunnel: "dismissTunnel",
	ActionEndTurn:       "endTurn",
}

func (k ActionKind) String() string { return ActionKindDictionary[k] }

// Decision is what a BrainDecider returns. Dirs is a preference order; the
// manager tries each until the engine accepts one.
type Decision struct {
	Action  ActionKind
	Steps   int
	Dirs    []asylum.Direction
	Card    card.Card
	Dice    asylum.DiceKind
	Stat    asylum.Stat
	Role    asylum.Role
	Tunnel  asylum.TunnelAction
	Penalty asylum.TunnelPenalty
}

// BrainDecider is the core interface all bot types implement.
type BrainDecider interface {
	// Decide returns ActionNone when the bot has nothing to answer.
	Decide(view GameView) Decision
	Name() string
}
