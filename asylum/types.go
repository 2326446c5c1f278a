package asylum

import "strings"

const BoardSize = 18

const NoPlayer = 0

// Role 玩家身份
type Role byte

const (
	RoleNone    Role = 0
	RoleDoctor  Role = 1 // 医生
	RolePatient Role = 2 // 病患
)

var RoleDictionary = map[Role]string{
	RoleNone:    "none",
	RoleDoctor:  "doctor",
	RolePatient: "patient",
}

func (r Role) String() string { return RoleDictionary[r] }

// Title 身份中文名
func (r Role) Title() string {
	switch r {
	case RoleDoctor:
		return "医生"
	case RolePatient:
		return "病患"
	}
	return ""
}

func ParseRole(s string) (Role, bool) {
	for r, name := range RoleDictionary {
		if r != RoleNone && (name == s || r.Title() == s) {
			return r, true
		}
	}
	return RoleNone, false
}

// Direction 格子的四条边
type Direction byte

const (
	North Direction = 0
	East  Direction = 1
	South Direction = 2
	West  Direction = 3
)

var Directions = [4]Direction{North, East, South, West}

var DirectionDictionary = map[Direction]string{
	North: "N",
	East:  "E",
	South: "S",
	West:  "W",
}

func (d Direction) String() string { return DirectionDictionary[d] }

func (d Direction) Opposite() Direction { return (d + 2) % 4 }

func (d Direction) delta() (dRow, dCol int) {
	switch d {
	case North:
		return -1, 0
	case South:
		return 1, 0
	case East:
		return 0, 1
	default:
		return 0, -1
	}
}

func ParseDirection(s string) (Direction, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for d, name := range DirectionDictionary {
		if name == s {
			return d, true
		}
	}
	return 0, false
}

// EdgeKind 边的状态
type EdgeKind byte

const (
	EdgeOpen   EdgeKind = 0
	EdgeWall   EdgeKind = 1
	EdgeSecret EdgeKind = 2
)

var EdgeKindDictionary = map[EdgeKind]string{
	EdgeOpen:   "open",
	EdgeWall:   "wall",
	EdgeSecret: "secret",
}

func (k EdgeKind) String() string { return EdgeKindDictionary[k] }

// MarkKind 格子标记
type MarkKind byte

const (
	MarkCircle MarkKind = 1 // 空心圆
	MarkDoor   MarkKind = 2 // 大门
	MarkCorpse MarkKind = 3 // 尸体
)

var MarkKindDictionary = map[MarkKind]string{
	MarkCircle: "circle",
	MarkDoor:   "door",
	MarkCorpse: "corpse",
}

func (k MarkKind) String() string { return MarkKindDictionary[k] }

// NeutralColor marks cells revealed by the vault card.
const NeutralColor = "#333"

// Status 病患状态
type Status byte

const (
	StatusNormal Status = 0
	StatusCrazy  Status = 1
	StatusDead   Status = 2
)

var StatusDictionary = map[Status]string{
	StatusNormal: "normal",
	StatusCrazy:  "crazy",
	StatusDead:   "dead",
}

func (s Status) String() string { return StatusDictionary[s] }

// Stat 可承受伤害的属性
type Stat byte

const (
	StatSanity Stat = 1 // 理智
	StatPain   Stat = 2 // 耐痛
)

var StatDictionary = map[Stat]string{
	StatSanity: "sanity",
	StatPain:   "pain",
}

func (s Stat) String() string { return StatDictionary[s] }

func ParseStat(s string) (Stat, bool) {
	for st, name := range StatDictionary {
		if name == s {
			return st, true
		}
	}
	return 0, false
}

// DiceKind 掷骰判定类型
type DiceKind byte

const (
	DiceAttack DiceKind = 1 // 袭击判定
	DiceEvent  DiceKind = 2 // 意外判定
)

var DiceKindDictionary = map[DiceKind]string{
	DiceAttack: "attack",
	DiceEvent:  "event",
}

func (k DiceKind) String() string { return DiceKindDictionary[k] }

func ParseDiceKind(s string) (DiceKind, bool) {
	for k, name := range DiceKindDictionary {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// DamageClass 待选伤害的来源
type DamageClass byte

const (
	DamageAttack      DamageClass = 1
	DamageDoctorEvent DamageClass = 2
)

var DamageClassDictionary = map[DamageClass]string{
	DamageAttack:      "attack",
	DamageDoctorEvent: "doctorEvent",
}

func (c DamageClass) String() string { return DamageClassDictionary[c] }

// Phase 回合阶段
type Phase byte

const (
	PhaseLobby         Phase = 0
	PhaseChoosingSteps Phase = 1
	PhaseMoving        Phase = 2
	PhaseEnded         Phase = 3
)

var PhaseDictionary = map[Phase]string{
	PhaseLobby:         "lobby",
	PhaseChoosingSteps: "choosing-steps",
	PhaseMoving:        "moving",
	PhaseEnded:         "ended",
}

func (p Phase) String() string { return PhaseDictionary[p] }

// DefaultPalette 玩家颜色分配
var DefaultPalette = []string{"#4A90E2", "#E94E77", "#F5A623", "#7ED321", "#B8E986", "#50E3C2", "#9013FE", "#D0021B"}
