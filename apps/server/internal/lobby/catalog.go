package lobby

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"asylum-lite/asylum"
)

//go:embed doctor_cards.yaml
var defaultDoctorCardsYAML []byte

// LoadDoctorCards reads the doctor card catalog; an empty path uses the built-in one.
func LoadDoctorCards(path string) ([]asylum.DoctorCard, error) {
	data := defaultDoctorCardsYAML
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read doctor cards: %w", err)
		}
		data = raw
	}
	return ParseDoctorCards(data)
}

func ParseDoctorCards(data []byte) ([]asylum.DoctorCard, error) {
	var cards []asylum.DoctorCard
	if err := yaml.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("parse doctor cards: %w", err)
	}
	seen := make(map[string]bool, len(cards))
	for i, c := range cards {
		if strings.TrimSpace(c.Key) == "" {
			return nil, fmt.Errorf("doctor card %d has no key", i)
		}
		if seen[c.Key] {
			return nil, fmt.Errorf("duplicate doctor card %q", c.Key)
		}
		seen[c.Key] = true
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("empty doctor card catalog")
	}
	return cards, nil
}
