package asylum

import (
	"fmt"

	"asylum-lite/card"
)

type Config struct {
	// Movement
	DoctorSpeed  int
	PatientSpeed int
	SpeedBonus   int // extra steps granted by a speed doctor card

	// Patient stats
	InitialSanity int
	InitialPain   int

	// Doctor endurance when the card does not specify one
	DefaultEndurance int

	// Exploration deck multiplicities (nil => standard deck)
	ExploreWeights []card.Weight

	// Fixed spawn points by player id; players not listed roll 3d6 per axis
	Spawns map[int]Coord

	// Max narration entries kept (0 => unlimited)
	MaxEvents int

	// RNG seed (0 => time-based); Source overrides Seed when set
	Seed   int64
	Source Source
}

func DefaultConfig() Config {
	return Config{
		DoctorSpeed:      6,
		PatientSpeed:     4,
		SpeedBonus:       2,
		InitialSanity:    6,
		InitialPain:      6,
		DefaultEndurance: 6,
	}
}

func (c Config) validate() error {
	if c.DoctorSpeed <= 0 || c.PatientSpeed <= 0 {
		return fmt.Errorf("speeds must be > 0")
	}
	if c.SpeedBonus < 0 {
		return fmt.Errorf("SpeedBonus must be >= 0")
	}
	if c.InitialSanity <= 0 || c.InitialPain <= 0 {
		return fmt.Errorf("initial stats must be > 0")
	}
	if c.DefaultEndurance <= 0 {
		return fmt.Errorf("DefaultEndurance must be > 0")
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("MaxEvents must be >= 0")
	}
	for id, pos := range c.Spawns {
		if !pos.InBounds() {
			return fmt.Errorf("spawn for player %d out of board: %s", id, pos)
		}
	}
	return nil
}
