package npc

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	if r.Count() != 3 {
		t.Fatalf("count=%d want 3", r.Count())
	}
	if p := r.Get("night_nurse"); p == nil || p.Brain.Aggression != 0.8 {
		t.Fatalf("night_nurse not loaded: %+v", p)
	}
	if got := r.ByTier(2); len(got) != 1 || got[0].ID != "quiet_patient" {
		t.Fatalf("tier 2 = %+v", got)
	}
	rng := rand.New(rand.NewSource(1))
	if p := r.Pick(rng, 1); p == nil || p.ID != "night_nurse" {
		t.Fatalf("Pick tier 1 = %+v", p)
	}
	if p := r.Pick(rng, 9); p == nil {
		t.Fatalf("unknown tier should fall back to any persona")
	}
}

func TestLoadFromFileByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "personas.json")
	yamlPath := filepath.Join(dir, "personas.yml")
	if err := os.WriteFile(jsonPath, []byte(`[{"id":"a","name":"A","tier":3,"brain":{"caution":0.7}},{"name":"no id"}]`), 0o644); err != nil {
		t.Fatalf("write json err: %v", err)
	}
	if err := os.WriteFile(yamlPath, []byte("- id: b\n  name: B\n  brain:\n    exploration: 0.3\n"), 0o644); err != nil {
		t.Fatalf("write yaml err: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadFromFile(jsonPath); err != nil {
		t.Fatalf("LoadFromFile json err: %v", err)
	}
	if err := r.LoadFromFile(yamlPath); err != nil {
		t.Fatalf("LoadFromFile yaml err: %v", err)
	}
	if r.Count() != 2 {
		t.Fatalf("count=%d want 2", r.Count())
	}
	if r.Get("a").Brain.Caution != 0.7 || r.Get("b").Brain.Exploration != 0.3 {
		t.Fatalf("profiles not decoded")
	}
	if err := r.LoadFromJSON([]byte("{")); err == nil {
		t.Fatalf("expected JSON parse error")
	}
}
