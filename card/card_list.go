package card

type CardList []Card

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) CardsBytes() []byte {
	return Cards2bytes(ds)
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

// CountWhere 统计满足条件的牌数
func (ds CardList) CountWhere(fn func(Card) bool) int {
	n := 0
	for _, c := range ds {
		if fn(c) {
			n++
		}
	}
	return n
}

// Strings 牌面文字列表
func (ds CardList) Strings() []string {
	out := make([]string, 0, len(ds))
	for _, c := range ds {
		out = append(out, c.String())
	}
	return out
}

// RemoveAt removes the card at idx. ok is false if idx is out of range.
func (ds *CardList) RemoveAt(idx int) (Card, bool) {
	if idx < 0 || idx >= ds.Count() {
		return CardInvalid, false
	}
	c := (*ds)[idx]
	*ds = append((*ds)[:idx:idx], (*ds)[idx+1:]...)
	return c, true
}

// RemoveIndices removes every listed index at once. Indices must be distinct and in range;
// otherwise the list is left untouched and ok is false.
func (ds *CardList) RemoveIndices(indices []int) (removed []Card, ok bool) {
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= ds.Count() || seen[idx] {
			return nil, false
		}
		seen[idx] = true
	}
	kept := make([]Card, 0, ds.Count()-len(indices))
	for i, c := range *ds {
		if seen[i] {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	*ds = kept
	return removed, true
}
