package asylum

import (
	"fmt"

	"asylum-lite/card"
)

// EventKind 信息栏条目类型
type EventKind byte

const (
	EventSystem  EventKind = 0
	EventTurn    EventKind = 1
	EventMove    EventKind = 2
	EventExplore EventKind = 3
	EventCard    EventKind = 4
	EventDice    EventKind = 5
	EventAttack  EventKind = 6
	EventTunnel  EventKind = 7
	EventStatus  EventKind = 8
)

var EventKindDictionary = map[EventKind]string{
	EventSystem:  "system",
	EventTurn:    "turn",
	EventMove:    "move",
	EventExplore: "explore",
	EventCard:    "card",
	EventDice:    "dice",
	EventAttack:  "attack",
	EventTunnel:  "tunnel",
	EventStatus:  "status",
}

func (k EventKind) String() string { return EventKindDictionary[k] }

type Event struct {
	Seq    uint64
	Kind   EventKind
	Player int
	Text   string
	Card   card.Card
	Roll   int
}

func (g *Game) narrateLocked(kind EventKind, player int, format string, args ...any) *Event {
	g.seq++
	g.events = append(g.events, Event{
		Seq:    g.seq,
		Kind:   kind,
		Player: player,
		Text:   fmt.Sprintf(format, args...),
	})
	if g.cfg.MaxEvents > 0 && len(g.events) > g.cfg.MaxEvents {
		g.events = append([]Event(nil), g.events[len(g.events)-g.cfg.MaxEvents:]...)
	}
	return &g.events[len(g.events)-1]
}

// EventsSince returns narration entries with Seq > seq.
func (g *Game) EventsSince(seq uint64) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, e := range g.events {
		if e.Seq > seq {
			return append([]Event(nil), g.events[i:]...)
		}
	}
	return nil
}

func (g *Game) LastSeq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
