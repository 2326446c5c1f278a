package asylum

import (
	"fmt"
	"sync"
)

// Source is the injectable randomness behind dice and card draws. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// SequenceSource replays fixed values; each value is reduced modulo n.
// It panics when exhausted.
type SequenceSource struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequenceSource(values ...int) *SequenceSource {
	return &SequenceSource{values: append([]int(nil), values...)}
}

// DiceSequence returns a source whose rolls come out as the given d6 faces.
func DiceSequence(faces ...int) *SequenceSource {
	values := make([]int, len(faces))
	for i, f := range faces {
		values[i] = f - 1
	}
	return NewSequenceSource(values...)
}

func (s *SequenceSource) Push(values ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, values...)
}

func (s *SequenceSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values) - s.next
}

func (s *SequenceSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.values) {
		panic(fmt.Sprintf("sequence source exhausted after %d values", len(s.values)))
	}
	v := s.values[s.next] % n
	if v < 0 {
		v += n
	}
	s.next++
	return v
}

type Dice struct {
	src Source
}

func NewDice(src Source) Dice { return Dice{src: src} }

func (d Dice) RollD6() int { return d.src.Intn(6) + 1 }

// AttackDamage 袭击判定：1点无伤害，6点2点伤害，其余1点
func AttackDamage(roll int) int {
	switch roll {
	case 1:
		return 0
	case 6:
		return 2
	}
	return 1
}

// EventHit 意外判定：4-6 触发
func EventHit(roll int) bool { return roll >= 4 && roll <= 6 }

func (d Dice) RollAttack() (roll, damage int) {
	roll = d.RollD6()
	return roll, AttackDamage(roll)
}

func (d Dice) RollEvent() (roll int, hit bool) {
	roll = d.RollD6()
	return roll, EventHit(roll)
}

// Roll3d6 掷三颗骰子
func (d Dice) Roll3d6() (sum int, rolls [3]int) {
	for i := range rolls {
		rolls[i] = d.RollD6()
		sum += rolls[i]
	}
	return sum, rolls
}
