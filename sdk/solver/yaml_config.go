package solver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLActionConfig mirrors ActionConfig's fields for the secondary,
// human-editable action-abstraction format: a flat YAML list instead of
// HCL's label+block syntax, for teams that want to hand-tune the bet-sizing
// ladder as data without touching the HCL training-hyperparameters file.
type YAMLActionConfig struct {
	Name            string  `yaml:"name"`
	Play            string  `yaml:"play"`
	SizePotFraction float64 `yaml:"size_pot_fraction,omitempty"`
	MaxRaiseNumber  int     `yaml:"max_raise_number,omitempty"`
	MinRound        string  `yaml:"min_round,omitempty"`
	MaxRound        string  `yaml:"max_round,omitempty"`
	MaxPlayers      int     `yaml:"max_players,omitempty"`
	MinPot          int     `yaml:"min_pot,omitempty"`
}

// actionAbstractionYAML is the top-level document shape read from
// sdk/solver/abstraction_config.yaml: a bare `actions:` list.
type actionAbstractionYAML struct {
	Actions []YAMLActionConfig `yaml:"actions"`
}

// LoadActionAbstractionYAML reads a YAML action-abstraction file and
// converts it into the same []ActionConfig the HCL `abstraction` block
// decodes to, so both formats feed AbstractionConfig.AbstractActions
// identically. Callers typically use this to override just the Actions
// field of an otherwise HCL/default-loaded AbstractionConfig.
func LoadActionAbstractionYAML(path string) ([]ActionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("solver: read yaml abstraction file: %w", err)
	}
	var doc actionAbstractionYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("solver: parse yaml abstraction file: %w", err)
	}
	out := make([]ActionConfig, 0, len(doc.Actions))
	for _, a := range doc.Actions {
		out = append(out, ActionConfig{
			Name:            a.Name,
			Play:            a.Play,
			SizePotFraction: a.SizePotFraction,
			MaxRaiseNumber:  a.MaxRaiseNumber,
			MinRound:        a.MinRound,
			MaxRound:        a.MaxRound,
			MaxPlayers:      a.MaxPlayers,
			MinPot:          a.MinPot,
		})
	}
	return out, nil
}
