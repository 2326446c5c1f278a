package npc

// PersonalityProfile defines the tunable parameters for a RuleBrain.
type PersonalityProfile struct {
	Aggression  float64 `json:"aggression" yaml:"aggression"`   // 0.0–1.0: chase as doctor, sneak/pursue in tunnels
	Caution     float64 `json:"caution" yaml:"caution"`         // 0.0–1.0: patients keep away from the doctor
	Exploration float64 `json:"exploration" yaml:"exploration"` // 0.0–1.0: preference for unexplored cells
	Randomness  float64 `json:"randomness" yaml:"randomness"`   // 0.0–1.0: decision noise
}

// NPCPersona defines a named bot character.
type NPCPersona struct {
	ID      string             `json:"id" yaml:"id"`
	Name    string             `json:"name" yaml:"name"`
	Tagline string             `json:"tagline" yaml:"tagline"`
	Tier    int                `json:"tier" yaml:"tier"` // 1=doctor-leaning, 2=patient-leaning, 3=random
	Brain   PersonalityProfile `json:"brain" yaml:"brain"`
}
