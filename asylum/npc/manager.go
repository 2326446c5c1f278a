package npc

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"asylum-lite/asylum"
	"asylum-lite/card"
)

// Actor is the slice of *asylum.Game a bot drives.
type Actor interface {
	Snapshot() asylum.Snapshot
	ChooseSteps(actor int, n int) error
	Move(actor int, dir asylum.Direction) error
	PlaceEdge(actor int, c card.Card, dir asylum.Direction) error
	RollDice(actor int, kind asylum.DiceKind) (int, error)
	ResolvePendingDamage(patient int, stat asylum.Stat) error
	ChooseTunnelAction(actor int, role asylum.Role, action asylum.TunnelAction) error
	DismissTunnel(actor int, penalty asylum.TunnelPenalty) error
	EndTurn(actor int) error
}

// NPCInstance represents an active bot seated in a session.
type NPCInstance struct {
	PlayerID   int
	Persona    *NPCPersona
	Brain      BrainDecider
	ThinkDelay time.Duration
}

// Manager manages bot lifecycle and decision-making for one table.
type Manager struct {
	registry  *PersonaRegistry
	instances map[int]*NPCInstance // keyed by PlayerID
	mu        sync.RWMutex
	rng       *rand.Rand
	nextID    int
}

// NewManager creates a bot manager; seed 0 means time based.
func NewManager(registry *PersonaRegistry, seed int64) *Manager {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		registry:  registry,
		instances: make(map[int]*NPCInstance),
		rng:       rand.New(rand.NewSource(seed)),
		nextID:    9_000_000, // bot ids start from 9M to avoid collision with real seats
	}
}

func (m *Manager) Registry() *PersonaRegistry {
	return m.registry
}

// NextID hands out a fresh player id for a bot seat.
func (m *Manager) NextID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

// Spawn registers a bot for playerID. A nil persona is picked from the registry
// by role: tier 1 for the doctor, tier 2 for patients.
func (m *Manager) Spawn(playerID int, role asylum.Role, persona *NPCPersona) *NPCInstance {
	m.mu.Lock()
	if persona == nil {
		tier := 2
		if role == asylum.RoleDoctor {
			tier = 1
		}
		persona = m.registry.Pick(m.rng, tier)
	}
	seed := m.rng.Int63()
	jitterMs := m.rng.Intn(500)
	m.mu.Unlock()

	brain := NewRuleBrain(persona, seed)
	baseMs := 400 + int(brain.Persona.Brain.Randomness*800)
	inst := &NPCInstance{
		PlayerID:   playerID,
		Persona:    brain.Persona,
		Brain:      brain,
		ThinkDelay: time.Duration(baseMs+jitterMs) * time.Millisecond,
	}

	m.mu.Lock()
	m.instances[playerID] = inst
	m.mu.Unlock()

	log.Infof("[NPC] Spawned %s (ID=%d) as %s", inst.Persona.Name, playerID, role)
	return inst
}

func (m *Manager) GetInstance(playerID int) *NPCInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[playerID]
}

func (m *Manager) IsNPC(playerID int) bool {
	return m.GetInstance(playerID) != nil
}

// Despawn removes a bot from tracking.
func (m *Manager) Despawn(playerID int) {
	m.mu.Lock()
	inst := m.instances[playerID]
	delete(m.instances, playerID)
	m.mu.Unlock()

	if inst != nil {
		log.Infof("[NPC] Despawned %s (ID=%d)", inst.Persona.Name, playerID)
	}
}

// GetThinkDelay returns the simulated thinking delay for a bot.
func (m *Manager) GetThinkDelay(playerID int) time.Duration {
	if inst := m.GetInstance(playerID); inst != nil {
		return inst.ThinkDelay
	}
	return time.Second
}

func (m *Manager) ids() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Pending returns the first bot that has something to answer, if any.
func (m *Manager) Pending(snap asylum.Snapshot) (int, Decision, bool) {
	for _, id := range m.ids() {
		inst := m.GetInstance(id)
		if inst == nil {
			continue
		}
		d := inst.Brain.Decide(GameView{Self: id, Snap: snap})
		if d.Action != ActionNone {
			return id, d, true
		}
	}
	return 0, Decision{}, false
}

// Step lets at most one bot act. It reports whether an action was applied.
func (m *Manager) Step(g Actor) (bool, error) {
	id, d, ok := m.Pending(g.Snapshot())
	if !ok {
		return false, nil
	}
	if err := m.Apply(g, id, d); err != nil {
		return false, err
	}
	return true, nil
}

// Apply executes a decision for playerID against the session.
func (m *Manager) Apply(g Actor, playerID int, d Decision) error {
	name := fmt.Sprintf("%d", playerID)
	if inst := m.GetInstance(playerID); inst != nil {
		name = inst.Persona.Name
	}
	log.WithFields(log.Fields{"player": playerID, "action": d.Action.String()}).Debugf("[NPC] %s acts", name)

	switch d.Action {
	case ActionChooseSteps:
		return g.ChooseSteps(playerID, d.Steps)
	case ActionMove:
		for _, dir := range d.Dirs {
			err := g.Move(playerID, dir)
			if err == nil {
				return nil
			}
			if !errors.Is(err, asylum.ErrBlockedMove) {
				return err
			}
		}
		return g.EndTurn(playerID)
	case ActionPlaceEdge:
		var last error = asylum.ErrEdgeConflict
		for _, dir := range d.Dirs {
			last = g.PlaceEdge(playerID, d.Card, dir)
			if last == nil {
				return nil
			}
			if !errors.Is(last, asylum.ErrEdgeConflict) {
				return last
			}
		}
		return last
	case ActionRollDice:
		_, err := g.RollDice(playerID, d.Dice)
		return err
	case ActionResolveDamage:
		return g.ResolvePendingDamage(playerID, d.Stat)
	case ActionTunnelChoice:
		return g.ChooseTunnelAction(playerID, d.Role, d.Tunnel)
	case ActionDismissTunnel:
		return g.DismissTunnel(playerID, d.Penalty)
	case ActionEndTurn:
		return g.EndTurn(playerID)
	}
	return nil
}
