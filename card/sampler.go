package card

import "fmt"

// Source is the random source consumed by draws. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

type Weight struct {
	Card  Card
	Count int
}

// Sampler draws from a deck whose drawn card is returned to the supply immediately,
// so every draw is an independent sample proportional to the multiplicities.
type Sampler struct {
	weights []Weight
	total   int
}

func NewSampler(weights []Weight) (*Sampler, error) {
	s := &Sampler{weights: make([]Weight, 0, len(weights))}
	for _, w := range weights {
		if !w.Card.Valid() {
			return nil, fmt.Errorf("invalid card %d in deck", w.Card)
		}
		if w.Count < 0 {
			return nil, fmt.Errorf("negative count for %s", w.Card)
		}
		if w.Count == 0 {
			continue
		}
		s.weights = append(s.weights, w)
		s.total += w.Count
	}
	if s.total == 0 {
		return nil, fmt.Errorf("empty deck")
	}
	return s, nil
}

// NewExplorationSampler builds the standard exploration deck.
func NewExplorationSampler() *Sampler {
	s, err := NewSampler(ExplorationWeights)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Sampler) Total() int { return s.total }

// Count 当前牌库中某张牌的张数
func (s *Sampler) Count(c Card) int {
	for _, w := range s.weights {
		if w.Card == c {
			return w.Count
		}
	}
	return 0
}

// Draw 抽一张牌并立即洗回牌库（探索牌永不为空）
func (s *Sampler) Draw(src Source) Card {
	n := src.Intn(s.total)
	for _, w := range s.weights {
		if n < w.Count {
			return w.Card
		}
		n -= w.Count
	}
	return s.weights[len(s.weights)-1].Card
}

// DrawUniform picks one card from an auxiliary deck's pool.
func DrawUniform(d Deck, src Source) (Card, bool) {
	pool := auxiliaryPools[d]
	if len(pool) == 0 {
		return CardInvalid, false
	}
	return pool[src.Intn(len(pool))], true
}
