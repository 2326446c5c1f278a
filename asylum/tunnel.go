package asylum

import "fmt"

// TunnelAction 暗道博弈选项
type TunnelAction byte

const (
	TunnelNone   TunnelAction = 0
	TunnelPursue TunnelAction = 1 // 追杀（医生）
	TunnelAmbush TunnelAction = 2 // 伺击（医生）
	TunnelFlee   TunnelAction = 3 // 逃跑（病患）
	TunnelSneak  TunnelAction = 4 // 偷袭（病患）
)

var TunnelActionDictionary = map[TunnelAction]string{
	TunnelNone:   "none",
	TunnelPursue: "pursue",
	TunnelAmbush: "ambush",
	TunnelFlee:   "flee",
	TunnelSneak:  "sneak",
}

func (a TunnelAction) String() string { return TunnelActionDictionary[a] }

func (a TunnelAction) Title() string {
	switch a {
	case TunnelPursue:
		return "追杀"
	case TunnelAmbush:
		return "伺击"
	case TunnelFlee:
		return "逃跑"
	case TunnelSneak:
		return "偷袭"
	}
	return ""
}

// Role returns the role allowed to pick the action.
func (a TunnelAction) Role() Role {
	switch a {
	case TunnelPursue, TunnelAmbush:
		return RoleDoctor
	case TunnelFlee, TunnelSneak:
		return RolePatient
	}
	return RoleNone
}

func ParseTunnelAction(s string) (TunnelAction, bool) {
	for a, name := range TunnelActionDictionary {
		if a != TunnelNone && (name == s || a.Title() == s) {
			return a, true
		}
	}
	return TunnelNone, false
}

type TunnelPhase byte

const (
	TunnelChoose TunnelPhase = 1
	TunnelResult TunnelPhase = 2
)

var TunnelPhaseDictionary = map[TunnelPhase]string{
	TunnelChoose: "choose",
	TunnelResult: "result",
}

func (p TunnelPhase) String() string { return TunnelPhaseDictionary[p] }

type TunnelBattle struct {
	From     Coord
	To       Coord
	Dir      Direction
	Mover    int
	Opponent int
	Phase    TunnelPhase

	DoctorChoice  TunnelAction
	PatientChoice TunnelAction
	Result        string
}

// 博弈结果文本
const (
	TunnelTextNeutralized = "密道形同虚设，博弈结束"
	TunnelTextDoctorHit   = "医生受到一次袭击判定，下一次移动减少1格，博弈结束"
	TunnelTextAmbushFails = "医生伺击未生效，跳过移动阶段，博弈结束"
	TunnelTextPatientHit  = "病患受到一次袭击判定或丢弃一个道具，博弈结束"
)

// TunnelOutcome returns the result text for a pair of choices.
func TunnelOutcome(doctor, patient TunnelAction) string {
	switch {
	case doctor == TunnelPursue && patient == TunnelFlee:
		return TunnelTextNeutralized
	case doctor == TunnelPursue && patient == TunnelSneak:
		return TunnelTextDoctorHit
	case doctor == TunnelAmbush && patient == TunnelFlee:
		return TunnelTextAmbushFails
	case doctor == TunnelAmbush && patient == TunnelSneak:
		return TunnelTextPatientHit
	}
	return ""
}

// PenaltyKind 伺击+偷袭时病患承受的代价
type PenaltyKind byte

const (
	PenaltyNone    PenaltyKind = 0
	PenaltyAttack  PenaltyKind = 1 // 受到一次袭击判定
	PenaltyDiscard PenaltyKind = 2 // 丢弃一个道具
)

var PenaltyKindDictionary = map[PenaltyKind]string{
	PenaltyNone:    "none",
	PenaltyAttack:  "attack",
	PenaltyDiscard: "discard",
}

func (k PenaltyKind) String() string { return PenaltyKindDictionary[k] }

func ParsePenaltyKind(s string) (PenaltyKind, bool) {
	for k, name := range PenaltyKindDictionary {
		if name == s {
			return k, true
		}
	}
	return PenaltyNone, false
}

type TunnelPenalty struct {
	Kind      PenaltyKind
	ItemIndex int
}

// tunnelOpponentLocked 目标格周围一格内的医生
func (g *Game) tunnelOpponentLocked(mover *Player, to Coord) *Player {
	if !mover.IsPatient() {
		return nil
	}
	for _, p := range g.order {
		if p.ID == mover.ID || p.Role == mover.Role || !p.placed || !p.Alive() {
			continue
		}
		if chebyshev(p.pos, to) <= 1 {
			return p
		}
	}
	return nil
}

// ChooseTunnelAction records one side's choice; the battle resolves once both sides chose.
func (g *Game) ChooseTunnelAction(actor int, role Role, action TunnelAction) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.activeLocked(); err != nil {
		return err
	}
	if g.playersByID[actor] == nil {
		return ErrUnknownPlayer
	}
	t := g.tunnel
	if t == nil {
		if g.dialogOpenLocked() {
			return ErrUnresolvedDialog
		}
		return ErrInvalidState("no tunnel battle")
	}
	if t.Phase != TunnelChoose {
		return ErrInvalidState("tunnel battle already resolved")
	}
	if action.Role() != role {
		return ErrInvalidState(fmt.Sprintf("%s cannot choose %s", role, action))
	}
	switch role {
	case RoleDoctor:
		if actor != t.Opponent {
			return ErrOutOfTurn
		}
		if t.DoctorChoice != TunnelNone {
			return ErrInvalidState("doctor already chose")
		}
		t.DoctorChoice = action
	case RolePatient:
		if actor != t.Mover {
			return ErrOutOfTurn
		}
		if t.PatientChoice != TunnelNone {
			return ErrInvalidState("patient already chose")
		}
		t.PatientChoice = action
	default:
		return ErrInvalidState("invalid role")
	}
	g.narrateLocked(EventTunnel, actor, "%s已做出选择", g.playersByID[actor].Name)

	if t.DoctorChoice != TunnelNone && t.PatientChoice != TunnelNone {
		t.Phase = TunnelResult
		t.Result = TunnelOutcome(t.DoctorChoice, t.PatientChoice)
		g.narrateLocked(EventTunnel, t.Mover, "医生%s，病患%s：%s", t.DoctorChoice.Title(), t.PatientChoice.Title(), t.Result)
	}
	return nil
}

// DismissTunnel applies the outcome and finishes the suspended move.
func (g *Game) DismissTunnel(actor int, penalty TunnelPenalty) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.activeLocked(); err != nil {
		return err
	}
	if g.playersByID[actor] == nil {
		return ErrUnknownPlayer
	}
	t := g.tunnel
	if t == nil {
		return ErrInvalidState("no tunnel battle")
	}
	if t.Phase != TunnelResult {
		return ErrUnresolvedDialog
	}
	if actor != t.Mover {
		return ErrOutOfTurn
	}
	mover := g.playersByID[t.Mover]
	doc := g.playersByID[t.Opponent]

	// 先校验，再落地
	if t.DoctorChoice == TunnelAmbush && t.PatientChoice == TunnelSneak {
		switch penalty.Kind {
		case PenaltyAttack:
		case PenaltyDiscard:
			if penalty.ItemIndex < 0 || penalty.ItemIndex >= mover.items.Count() {
				return fmt.Errorf("%w: no item at index %d", ErrUnknownCard, penalty.ItemIndex)
			}
		default:
			return ErrInvalidState("choose attack or discard")
		}
	}

	switch {
	case t.DoctorChoice == TunnelPursue && t.PatientChoice == TunnelSneak:
		g.queueJudgmentLocked(DiceAttack, doc.ID)
		doc.stepPenalty++
	case t.DoctorChoice == TunnelAmbush && t.PatientChoice == TunnelFlee:
		doc.skipNextMove = true
	case t.DoctorChoice == TunnelAmbush && t.PatientChoice == TunnelSneak:
		if penalty.Kind == PenaltyAttack {
			g.queueJudgmentLocked(DiceAttack, mover.ID)
		} else {
			c, _ := mover.items.RemoveAt(penalty.ItemIndex)
			g.narrateLocked(EventCard, mover.ID, "已丢弃道具“%s”到当前位置", c).Card = c
		}
	}

	g.tunnel = nil
	g.completeStepLocked(mover, t.Dir, t.To)
	return nil
}
