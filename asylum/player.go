package asylum

import "asylum-lite/card"

// Seat is one roster entry supplied at session start.
type Seat struct {
	ID    int
	Name  string
	Role  Role
	Color string
	Robot bool
}

type Roster struct {
	Seats      []Seat
	DoctorCard *DoctorCard
}

type Player struct {
	ID    int
	Name  string
	Role  Role
	Color string
	Robot bool

	pos    Coord
	placed bool

	// 病患属性
	sanity int
	pain   int
	status Status

	// 医生耐痛
	endurance int

	items   card.CardList
	disease card.CardList

	// 密道博弈带来的下回合移动修正
	skipNextMove bool
	stepPenalty  int
	shieldUsed   bool
}

func (p *Player) Position() (Coord, bool) { return p.pos, p.placed }
func (p *Player) Sanity() int             { return p.sanity }
func (p *Player) Pain() int               { return p.pain }
func (p *Player) Status() Status          { return p.status }
func (p *Player) Endurance() int          { return p.endurance }
func (p *Player) Items() card.CardList    { return append(card.CardList(nil), p.items...) }
func (p *Player) Disease() card.CardList  { return append(card.CardList(nil), p.disease...) }

func (p *Player) IsDoctor() bool  { return p.Role == RoleDoctor }
func (p *Player) IsPatient() bool { return p.Role == RolePatient }
func (p *Player) Alive() bool     { return p.status != StatusDead }

func (p *Player) at(c Coord) bool { return p.placed && p.pos == c }

func (p *Player) moveTo(c Coord) {
	p.pos = c
	p.placed = true
}

// refreshStatus 疼痛归零即死亡，理智归零即发狂
func (p *Player) refreshStatus() (changed bool) {
	if !p.IsPatient() || p.status == StatusDead {
		return false
	}
	next := p.status
	switch {
	case p.pain == 0:
		next = StatusDead
	case p.sanity == 0:
		next = StatusCrazy
	}
	if next == p.status {
		return false
	}
	p.status = next
	return true
}

func (p *Player) damage(stat Stat, amount int) {
	switch stat {
	case StatSanity:
		p.sanity = max(0, p.sanity-amount)
	case StatPain:
		if p.IsDoctor() {
			p.endurance = max(0, p.endurance-amount)
			return
		}
		p.pain = max(0, p.pain-amount)
	}
}

type PlayerNode struct {
	Player *Player
	Next   *PlayerNode
}

func (n *PlayerNode) getPlayer() *Player {
	if n == nil {
		return nil
	}
	return n.Player
}

// WalkOnce 遍历链表一圈（可从任意 start 开始），支持 break。
// fn 返回 true 表示“找到/停止”，false 表示继续。
func (n *PlayerNode) WalkOnce(fn func(*PlayerNode) bool) *PlayerNode {
	if n == nil {
		return nil
	}
	cur := n
	for {
		if fn(cur) {
			return cur
		}
		cur = cur.Next
		if cur == nil || cur == n {
			break
		}
	}
	return nil
}

// WalkAll 遍历一圈，不中断
func (n *PlayerNode) WalkAll(fn func(cur *PlayerNode)) {
	n.WalkOnce(func(cur *PlayerNode) bool {
		fn(cur)
		return false
	})
}
