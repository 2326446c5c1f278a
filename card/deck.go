package card

import "strings"

// Deck identifies the pile a card comes from; it is stored in the high nibble of a Card.
type Deck byte

const (
	DeckExplore  Deck = iota // 探索牌库
	DeckItem                 // 道具牌库
	DeckEvent                // 意外牌库
	DeckObstacle             // 障碍牌库
	DeckCritical             // 重症牌库
)

var DeckDictionary = map[Deck]string{
	DeckExplore:  "explore",
	DeckItem:     "item",
	DeckEvent:    "event",
	DeckObstacle: "obstacle",
	DeckCritical: "critical",
}

func (d Deck) String() string {
	if s, ok := DeckDictionary[d]; ok {
		return s
	}
	return "?"
}

// Title 牌库中文名
func (d Deck) Title() string {
	switch d {
	case DeckExplore:
		return "探索牌库"
	case DeckItem:
		return "道具牌库"
	case DeckEvent:
		return "意外牌库"
	case DeckObstacle:
		return "障碍牌库"
	case DeckCritical:
		return "重症牌库"
	}
	return "?"
}

// Auxiliary reports whether the deck is a uniform pool rather than the exploration deck.
func (d Deck) Auxiliary() bool {
	return d >= DeckItem && d <= DeckCritical
}

// IsDisease reports whether cards of this deck go to the disease hand.
func (d Deck) IsDisease() bool {
	return d == DeckObstacle || d == DeckCritical
}

func ParseDeck(s string) (Deck, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d, name := range DeckDictionary {
		if name == key || d.Title() == strings.TrimSpace(s) {
			return d, true
		}
	}
	return 0, false
}
