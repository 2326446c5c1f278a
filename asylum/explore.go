package asylum

import (
	"fmt"

	"asylum-lite/card"
)

// exploreLocked 进入未探索格：抽探索牌并结算效果。
// 返回 false 表示需要等待玩家选边。
func (g *Game) exploreLocked(p *Player, at Coord, came Direction) bool {
	c := g.deck.Draw(g.rng)
	g.board.markExplored(at)
	g.narrateLocked(EventExplore, p.ID, "探索牌：%s", c).Card = c

	switch c {
	case card.CardWall, card.CardSecret:
		choice := &EdgeChoice{Player: p.ID, At: at, Card: c, Forbidden: came.Opposite(), HasForbidden: true}
		if len(g.placeableEdgesLocked(choice)) == 0 {
			g.narrateLocked(EventExplore, p.ID, "无可放置%s的边，探索牌作废", c)
			return true
		}
		g.edge = choice
		return false
	case card.CardDoor:
		_ = g.board.MarkCell(at, Mark{Kind: MarkDoor})
	case card.CardCorpse:
		_ = g.board.MarkCell(at, Mark{Kind: MarkCorpse})
		if p.IsDoctor() {
			// 步数归零时直接获得2步并继续行动
			g.budget += 2
			g.narrateLocked(EventExplore, p.ID, "医生发现尸体，移动步数+2")
		} else {
			g.drawAuxiliaryLocked(p, card.DeckItem)
		}
	case card.CardAccident:
		_ = g.board.MarkCell(at, Mark{Kind: MarkCircle, Color: p.Color})
		if p.IsDoctor() {
			g.narrateLocked(EventExplore, p.ID, "医生遭遇意外，需进行意外判定")
			g.queueJudgmentLocked(DiceEvent, NoPlayer)
			for _, patient := range g.coLocatedPatientsLocked() {
				if !g.judgedLocked(patient.ID, DamageAttack) {
					g.queueJudgmentLocked(DiceAttack, patient.ID)
				}
			}
		} else {
			g.drawAuxiliaryLocked(p, card.DeckEvent)
		}
	case card.CardVault:
		_ = g.board.ApplyVaultReveal(at)
	}
	return true
}

func edgeKindFor(c card.Card) (EdgeKind, bool) {
	switch c {
	case card.CardWall:
		return EdgeWall, true
	case card.CardSecret:
		return EdgeSecret, true
	}
	return EdgeOpen, false
}

func (g *Game) placeableEdgesLocked(choice *EdgeChoice) []Direction {
	kind, _ := edgeKindFor(choice.Card)
	var out []Direction
	for _, d := range Directions {
		if choice.HasForbidden && d == choice.Forbidden {
			continue
		}
		if g.board.CheckEdge(choice.At, d, kind) == nil {
			out = append(out, d)
		}
	}
	return out
}

// PlaceEdge resolves the edge choice opened by a wall or secret exploration card.
func (g *Game) PlaceEdge(actor int, c card.Card, dir Direction) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.activeLocked(); err != nil {
		return err
	}
	p := g.playersByID[actor]
	if p == nil {
		return ErrUnknownPlayer
	}
	choice := g.edge
	if choice == nil {
		if g.dialogOpenLocked() {
			return ErrUnresolvedDialog
		}
		return ErrInvalidState("no edge to place")
	}
	if actor != choice.Player {
		return ErrOutOfTurn
	}
	kind, ok := edgeKindFor(c)
	if !ok || c != choice.Card {
		return fmt.Errorf("%w: expected %s", ErrUnknownCard, choice.Card)
	}
	if choice.HasForbidden && dir == choice.Forbidden {
		return fmt.Errorf("%w: 不能放置在来时的边", ErrEdgeConflict)
	}
	if err := g.board.PlaceEdge(choice.At, dir, kind, c, p.Color); err != nil {
		return err
	}
	g.edge = nil
	g.narrateLocked(EventExplore, p.ID, "%s在%s的%s边放置了%s", p.Name, choice.At, dir, c).Card = c
	g.afterStepLocked()
	return nil
}

// PlaceableEdges lists the directions the pending edge choice accepts.
func (g *Game) PlaceableEdges() []Direction {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.edge == nil {
		return nil
	}
	return g.placeableEdgesLocked(g.edge)
}

// drawAuxiliaryLocked 从道具/意外/障碍/重症牌库抽一张
func (g *Game) drawAuxiliaryLocked(p *Player, d card.Deck) card.Card {
	c, ok := card.DrawUniform(d, g.rng)
	if !ok {
		return card.CardInvalid
	}
	switch d {
	case card.DeckItem:
		p.items.Add(c)
		g.narrateLocked(EventCard, p.ID, "获得道具牌：%s", c).Card = c
	case card.DeckEvent:
		g.narrateLocked(EventCard, p.ID, "%s", c).Card = c
	case card.DeckObstacle, card.DeckCritical:
		if d == card.DeckObstacle && p.IsDoctor() && g.doctorCard.Shield() && !p.shieldUsed {
			p.shieldUsed = true
			g.narrateLocked(EventCard, p.ID, "防护者免疫了障碍牌：%s", c).Card = c
			return c
		}
		p.disease.Add(c)
		g.narrateLocked(EventCard, p.ID, "获得病牌：%s", c).Card = c
	}
	return c
}

// DrawAuxiliary draws from one of the uniform decks for the turn holder.
func (g *Game) DrawAuxiliary(actor int, d card.Deck) (card.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.turnHolderLocked(actor)
	if err != nil {
		return card.CardInvalid, err
	}
	if !d.Auxiliary() {
		return card.CardInvalid, fmt.Errorf("%w: %s is not drawn by hand", ErrUnknownCard, d)
	}
	if g.dialogOpenLocked() {
		return card.CardInvalid, ErrUnresolvedDialog
	}
	return g.drawAuxiliaryLocked(p, d), nil
}

// ExchangeObstaclesForCritical 用三张障碍牌换一张重症牌
func (g *Game) ExchangeObstaclesForCritical(actor int, indices []int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.activeLocked(); err != nil {
		return err
	}
	p := g.playersByID[actor]
	if p == nil {
		return ErrUnknownPlayer
	}
	if !p.IsPatient() {
		return ErrInvalidState("只有病患可以兑换重症牌")
	}
	if g.dialogOpenLocked() {
		return ErrUnresolvedDialog
	}
	if len(indices) != 3 {
		return ErrInvalidState("请选择三张障碍牌")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= p.disease.Count() || !p.disease[idx].IsObstacle() {
			return fmt.Errorf("%w: index %d is not an obstacle card", ErrUnknownCard, idx)
		}
	}
	if _, ok := p.disease.RemoveIndices(indices); !ok {
		return fmt.Errorf("%w: duplicate card index", ErrUnknownCard)
	}
	p.disease.Add(card.CardCriticalWorsen)
	g.narrateLocked(EventCard, p.ID, "%s已用三张障碍牌换一张重症牌", p.Name).Card = card.CardCriticalWorsen
	return nil
}

// DiscardItem 丢弃道具
func (g *Game) DiscardItem(actor int, idx int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.activeLocked(); err != nil {
		return err
	}
	p := g.playersByID[actor]
	if p == nil {
		return ErrUnknownPlayer
	}
	if g.dialogOpenLocked() {
		return ErrUnresolvedDialog
	}
	c, ok := p.items.RemoveAt(idx)
	if !ok {
		return fmt.Errorf("%w: no item at index %d", ErrUnknownCard, idx)
	}
	g.narrateLocked(EventCard, p.ID, "已丢弃道具“%s”到当前位置", c).Card = c
	return nil
}
