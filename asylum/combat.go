package asylum

import "fmt"

// judgedLocked 同一触发类型已有未结算的判定时不再重复判定
func (g *Game) judgedLocked(target int, class DamageClass) bool {
	if class == DamageAttack {
		for _, j := range g.judgments {
			if j.Kind == DiceAttack && j.Target == target {
				return true
			}
		}
	}
	for _, p := range g.pending {
		if p.Patient == target && p.Class == class {
			return true
		}
	}
	return false
}

func (g *Game) queueJudgmentLocked(kind DiceKind, target int) {
	g.nextJudgment++
	g.judgments = append(g.judgments, DiceJudgment{ID: g.nextJudgment, Kind: kind, Target: target})
}

// coLocatedPatientsLocked 与医生同格的存活病患
func (g *Game) coLocatedPatientsLocked() []*Player {
	doc := g.doctor
	if doc == nil || !doc.placed {
		return nil
	}
	var out []*Player
	for _, p := range g.order {
		if p.IsPatient() && p.Alive() && p.at(doc.pos) {
			out = append(out, p)
		}
	}
	return out
}

// autoAttackLocked 医生与病患同格时，对每名病患排队一次袭击判定
func (g *Game) autoAttackLocked() {
	for _, p := range g.coLocatedPatientsLocked() {
		if g.judgedLocked(p.ID, DamageAttack) {
			continue
		}
		g.queueJudgmentLocked(DiceAttack, p.ID)
		g.narrateLocked(EventAttack, p.ID, "医生自动袭击病患（%s），判定中...", p.Name)
	}
}

// RollDice resolves the first queued judgment of the given kind.
func (g *Game) RollDice(actor int, kind DiceKind) (roll int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.turnHolderLocked(actor); err != nil {
		return 0, err
	}
	if g.blockingLocked() {
		return 0, ErrUnresolvedDialog
	}
	idx := -1
	for i, j := range g.judgments {
		if j.Kind == kind {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, ErrInvalidState(fmt.Sprintf("no %s judgment pending", kind))
	}
	j := g.judgments[idx]
	g.judgments = append(g.judgments[:idx:idx], g.judgments[idx+1:]...)

	switch kind {
	case DiceAttack:
		roll = g.resolveAttackLocked(j.Target)
	case DiceEvent:
		roll = g.resolveEventLocked()
	}
	g.maybeEndTurnLocked()
	return roll, nil
}

func (g *Game) resolveAttackLocked(target int) int {
	roll, dmg := g.dice.RollAttack()
	p := g.playersByID[target]
	if p == nil {
		return roll
	}
	if p.IsDoctor() {
		if dmg > 0 {
			p.damage(StatPain, dmg)
			g.narrateLocked(EventDice, p.ID, "医生袭击判定结果：%d，医生受到%d点伤害", roll, dmg).Roll = roll
		} else {
			g.narrateLocked(EventDice, p.ID, "医生袭击判定结果：%d，医生未受伤害", roll).Roll = roll
		}
		return roll
	}
	if dmg > 0 {
		p.damage(StatPain, dmg)
		g.narrateLocked(EventDice, p.ID, "医生袭击判定结果：%d，%s直接受到%d点疼痛伤害", roll, p.Name, dmg).Roll = roll
	} else {
		g.narrateLocked(EventDice, p.ID, "医生袭击判定结果：%d，%s未受伤害", roll, p.Name).Roll = roll
	}
	g.afterDamageLocked(p)
	return roll
}

// resolveEventLocked 医生意外判定：4-6 时与医生同格的病患需选择承受1点伤害
func (g *Game) resolveEventLocked() int {
	roll, hit := g.dice.RollEvent()
	g.narrateLocked(EventDice, g.doctorIDLocked(), "医生意外判定结果：%d", roll).Roll = roll
	if !hit {
		return roll
	}
	for _, p := range g.coLocatedPatientsLocked() {
		if g.judgedLocked(p.ID, DamageDoctorEvent) {
			continue
		}
		g.pending = append(g.pending, PendingDamage{Patient: p.ID, Class: DamageDoctorEvent, Amount: 1})
		g.narrateLocked(EventAttack, p.ID, "%s需选择承受1点伤害类型", p.Name)
	}
	return roll
}

// ResolvePendingDamage lets a patient pick the stat that absorbs a queued damage.
func (g *Game) ResolvePendingDamage(patient int, stat Stat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.activeLocked(); err != nil {
		return err
	}
	p := g.playersByID[patient]
	if p == nil {
		return ErrUnknownPlayer
	}
	if g.blockingLocked() {
		return ErrUnresolvedDialog
	}
	if stat != StatSanity && stat != StatPain {
		return ErrInvalidState("invalid stat")
	}
	idx := -1
	for i, pd := range g.pending {
		if pd.Patient == patient {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrInvalidState("no pending damage")
	}
	pd := g.pending[idx]
	g.pending = append(g.pending[:idx:idx], g.pending[idx+1:]...)

	p.damage(stat, pd.Amount)
	label := "理智"
	if stat == StatPain {
		label = "疼痛"
	}
	g.narrateLocked(EventAttack, p.ID, "%s选择%s -%d", p.Name, label, pd.Amount)
	g.afterDamageLocked(p)
	g.maybeEndTurnLocked()
	return nil
}

// afterDamageLocked 属性归零时切换状态，所有病患倒下则医生获胜
func (g *Game) afterDamageLocked(p *Player) {
	if !p.refreshStatus() {
		return
	}
	switch p.status {
	case StatusDead:
		g.narrateLocked(EventStatus, p.ID, "%s疼痛耗尽，已倒下", p.Name)
		g.dropQueuedForLocked(p.ID)
	case StatusCrazy:
		g.narrateLocked(EventStatus, p.ID, "%s理智耗尽，陷入疯狂", p.Name)
	}
	for _, other := range g.order {
		if other.IsPatient() && other.Alive() {
			return
		}
	}
	g.ended = true
	g.phase = PhaseEnded
	g.winner = RoleDoctor
	g.narrateLocked(EventSystem, g.doctorIDLocked(), "所有病患均已倒下，医生获胜")
}

// dropQueuedForLocked 倒下的病患不再承受后续判定
func (g *Game) dropQueuedForLocked(id int) {
	judgments := g.judgments[:0]
	for _, j := range g.judgments {
		if j.Target != id {
			judgments = append(judgments, j)
		}
	}
	g.judgments = judgments
	pending := g.pending[:0]
	for _, pd := range g.pending {
		if pd.Patient != id {
			pending = append(pending, pd)
		}
	}
	g.pending = pending
}
