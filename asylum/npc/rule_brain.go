package npc

import (
	"math"
	"math/rand"
	"sort"

	"asylum-lite/asylum"
)

// RuleBrain makes decisions based on a PersonalityProfile with tunable parameters.
type RuleBrain struct {
	Persona *NPCPersona
	rng     *rand.Rand
}

// NewRuleBrain creates a RuleBrain from a persona definition.
func NewRuleBrain(persona *NPCPersona, seed int64) *RuleBrain {
	if persona == nil {
		persona = &NPCPersona{ID: "default", Name: "机器人", Brain: PersonalityProfile{
			Aggression: 0.5, Caution: 0.5, Exploration: 0.5, Randomness: 0.3,
		}}
	}
	return &RuleBrain{
		Persona: persona,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *RuleBrain) Name() string { return b.Persona.Name }

// Decide implements BrainDecider. Open dialogs come first, then the bot's own turn.
func (b *RuleBrain) Decide(view GameView) Decision {
	snap := view.Snap
	me, ok := view.Me()
	if !ok || !snap.Started || snap.Ended {
		return Decision{}
	}

	d := snap.Dialog
	switch d.Kind {
	case asylum.DialogExploreEdge:
		if d.Edge.Player != view.Self {
			return Decision{}
		}
		return Decision{Action: ActionPlaceEdge, Card: d.Edge.Card, Dirs: b.edgePreference(d.Edge)}
	case asylum.DialogTunnelBattle:
		return b.decideTunnel(view.Self, me, d.Tunnel)
	case asylum.DialogDice:
		if snap.CurrentPlayer != view.Self || len(d.Dice) == 0 {
			return Decision{}
		}
		return Decision{Action: ActionRollDice, Dice: d.Dice[0].Kind}
	case asylum.DialogPendingDamage:
		for _, pd := range d.Pending {
			if pd.Patient == view.Self {
				return Decision{Action: ActionResolveDamage, Stat: b.absorbingStat(me)}
			}
		}
		return Decision{}
	}

	if snap.CurrentPlayer != view.Self || !me.Alive() {
		return Decision{}
	}
	switch snap.Phase {
	case asylum.PhaseChoosingSteps:
		return Decision{Action: ActionChooseSteps, Steps: b.chooseSteps(me)}
	case asylum.PhaseMoving:
		dirs := b.movePreference(snap, me)
		if len(dirs) == 0 {
			return Decision{Action: ActionEndTurn}
		}
		return Decision{Action: ActionMove, Dirs: dirs}
	}
	return Decision{}
}

func (b *RuleBrain) noise() float64 {
	return (b.rng.Float64() - 0.5) * b.Persona.Brain.Randomness
}

func (b *RuleBrain) chooseSteps(me asylum.PlayerSnapshot) int {
	p := b.Persona.Brain
	eager := p.Exploration
	if me.Role == asylum.RoleDoctor {
		eager = p.Aggression
	}
	frac := clamp01(0.5 + 0.5*eager + b.noise())
	n := int(math.Round(float64(me.Speed) * frac))
	if n < 1 {
		n = 1
	}
	if n > me.Speed {
		n = me.Speed
	}
	return n
}

// absorbingStat 受伤时扣较高的属性，同分扣理智（疼痛归零即死亡）
func (b *RuleBrain) absorbingStat(me asylum.PlayerSnapshot) asylum.Stat {
	if me.Pain > me.Sanity {
		return asylum.StatPain
	}
	return asylum.StatSanity
}

func (b *RuleBrain) edgePreference(e *asylum.EdgeChoice) []asylum.Direction {
	var dirs []asylum.Direction
	for _, d := range asylum.Directions {
		if e.HasForbidden && d == e.Forbidden {
			continue
		}
		dirs = append(dirs, d)
	}
	b.rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	return dirs
}

func (b *RuleBrain) decideTunnel(self int, me asylum.PlayerSnapshot, t *asylum.TunnelBattle) Decision {
	if t == nil {
		return Decision{}
	}
	aggressive := b.rng.Float64() < clamp01(b.Persona.Brain.Aggression+b.noise())
	switch t.Phase {
	case asylum.TunnelChoose:
		if self == t.Opponent && t.DoctorChoice == asylum.TunnelNone {
			action := asylum.TunnelAmbush
			if aggressive {
				action = asylum.TunnelPursue
			}
			return Decision{Action: ActionTunnelChoice, Role: asylum.RoleDoctor, Tunnel: action}
		}
		if self == t.Mover && t.PatientChoice == asylum.TunnelNone {
			action := asylum.TunnelFlee
			if aggressive {
				action = asylum.TunnelSneak
			}
			return Decision{Action: ActionTunnelChoice, Role: asylum.RolePatient, Tunnel: action}
		}
	case asylum.TunnelResult:
		if self != t.Mover {
			return Decision{}
		}
		penalty := asylum.TunnelPenalty{}
		if t.DoctorChoice == asylum.TunnelAmbush && t.PatientChoice == asylum.TunnelSneak {
			penalty.Kind = asylum.PenaltyAttack
			if len(me.Items) > 0 {
				penalty = asylum.TunnelPenalty{Kind: asylum.PenaltyDiscard, ItemIndex: b.rng.Intn(len(me.Items))}
			}
		}
		return Decision{Action: ActionDismissTunnel, Penalty: penalty}
	}
	return Decision{}
}

// movePreference 按人格给四个方向打分：医生追最近的病患，病患远离医生，都偏好未探索格
func (b *RuleBrain) movePreference(snap asylum.Snapshot, me asylum.PlayerSnapshot) []asylum.Direction {
	p := b.Persona.Brain
	target, hasTarget := b.target(snap, me)

	type scored struct {
		dir   asylum.Direction
		score float64
	}
	var options []scored
	for _, d := range asylum.Directions {
		to := me.Pos.Step(d)
		if !to.InBounds() || snap.IsBlocked(me.Pos, to) {
			continue
		}
		score := b.noise()
		if !snap.IsExplored(to) {
			score += p.Exploration
		}
		if hasTarget {
			gain := float64(manhattan(me.Pos, target) - manhattan(to, target))
			if me.Role == asylum.RoleDoctor {
				score += gain * p.Aggression
			} else {
				score -= gain * p.Caution
			}
		}
		options = append(options, scored{dir: d, score: score})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].score > options[j].score })
	out := make([]asylum.Direction, len(options))
	for i, o := range options {
		out[i] = o.dir
	}
	return out
}

// target 医生的目标是最近的存活病患；病患关心医生的位置
func (b *RuleBrain) target(snap asylum.Snapshot, me asylum.PlayerSnapshot) (asylum.Coord, bool) {
	if me.Role == asylum.RolePatient {
		doc, ok := snap.Doctor()
		if !ok || !doc.Placed {
			return asylum.Coord{}, false
		}
		return doc.Pos, true
	}
	best, found := asylum.Coord{}, false
	bestDist := 0
	for _, ps := range snap.Players {
		if ps.Role != asylum.RolePatient || !ps.Placed || !ps.Alive() {
			continue
		}
		if dist := manhattan(me.Pos, ps.Pos); !found || dist < bestDist {
			best, bestDist, found = ps.Pos, dist, true
		}
	}
	return best, found
}

func manhattan(a, b asylum.Coord) int {
	dr, dc := a.Row-b.Row, a.Col-b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
