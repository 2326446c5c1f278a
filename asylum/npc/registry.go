package npc

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var defaultPersonasYAML []byte

// PersonaRegistry holds all bot persona definitions.
type PersonaRegistry struct {
	mu       sync.RWMutex
	personas map[string]*NPCPersona
}

// NewRegistry creates an empty registry.
func NewRegistry() *PersonaRegistry {
	return &PersonaRegistry{
		personas: make(map[string]*NPCPersona),
	}
}

// DefaultRegistry returns a registry loaded with the built-in personas.
func DefaultRegistry() *PersonaRegistry {
	r := NewRegistry()
	if err := r.LoadFromYAML(defaultPersonasYAML); err != nil {
		panic(err)
	}
	return r
}

// LoadFromFile loads personas from a JSON or YAML file, chosen by extension.
func (r *PersonaRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personas file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return r.LoadFromYAML(data)
	}
	return r.LoadFromJSON(data)
}

// LoadFromJSON loads personas from raw JSON bytes.
func (r *PersonaRegistry) LoadFromJSON(data []byte) error {
	var list []*NPCPersona
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas JSON: %w", err)
	}
	r.add(list)
	return nil
}

// LoadFromYAML loads personas from raw YAML bytes.
func (r *PersonaRegistry) LoadFromYAML(data []byte) error {
	var list []*NPCPersona
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas YAML: %w", err)
	}
	r.add(list)
	return nil
}

func (r *PersonaRegistry) add(list []*NPCPersona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range list {
		if p == nil || p.ID == "" {
			continue
		}
		r.personas[p.ID] = p
	}
}

// Get returns a persona by ID.
func (r *PersonaRegistry) Get(id string) *NPCPersona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.personas[id]
}

// All returns every persona ordered by ID.
func (r *PersonaRegistry) All() []*NPCPersona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NPCPersona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByTier returns all personas of the given tier, ordered by ID.
func (r *PersonaRegistry) ByTier(tier int) []*NPCPersona {
	var out []*NPCPersona
	for _, p := range r.All() {
		if p.Tier == tier {
			out = append(out, p)
		}
	}
	return out
}

// Pick chooses a persona for a seat; tier 0 means any.
func (r *PersonaRegistry) Pick(rng *rand.Rand, tier int) *NPCPersona {
	list := r.All()
	if tier != 0 {
		if byTier := r.ByTier(tier); len(byTier) > 0 {
			list = byTier
		}
	}
	if len(list) == 0 {
		return nil
	}
	return list[rng.Intn(len(list))]
}

func (r *PersonaRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}
