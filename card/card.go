package card

import "strings"

// Card 牌枚举
//
// 编码规则:
// - 高4位: 牌库 (0:探索, 1:道具, 2:意外, 3:障碍, 4:重症)
// - 低4位: 牌面序号 (从1开始)
type Card byte

func (c Card) String() string {
	if c == CardInvalid {
		return "Invalid"
	}
	if c == CardRear {
		return "Rear"
	}
	if f, ok := faces[c]; ok {
		return f.text
	}
	return "?"
}

// Key is the stable ascii name used on the wire and in scripts.
func (c Card) Key() string {
	if f, ok := faces[c]; ok {
		return f.key
	}
	return ""
}

// Deck 所属牌库
func (c Card) Deck() Deck {
	return Deck(c >> 4)
}

// Face 牌面序号 1..n
func (c Card) Face() byte {
	if c == CardInvalid || c == CardRear {
		return 0
	}
	return byte(c & 0x0F)
}

func (c Card) Valid() bool {
	_, ok := faces[c]
	return ok
}

func (c Card) IsExploration() bool { return c.Valid() && c.Deck() == DeckExplore }
func (c Card) IsObstacle() bool    { return c.Valid() && c.Deck() == DeckObstacle }
func (c Card) IsItem() bool        { return c.Valid() && c.Deck() == DeckItem }

// Parse 将 key（如 "wall"）或牌面文字（如 "墙体"）转换为 Card
func Parse(s string) (Card, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CardInvalid, false
	}
	lower := strings.ToLower(s)
	for c, f := range faces {
		if f.key == lower || f.text == s {
			return c, true
		}
	}
	return CardInvalid, false
}
