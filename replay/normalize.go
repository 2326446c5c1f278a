package replay

import (
	"fmt"
	"strings"

	"asylum-lite/asylum"
	"asylum-lite/card"
)

// defaultSeed keeps scripts without a seed reproducible.
const defaultSeed = 1

type commandKind byte

const (
	cmdChooseSteps commandKind = iota + 1
	cmdMove
	cmdPlaceEdge
	cmdRollDice
	cmdResolveDamage
	cmdTunnelChoice
	cmdDismissTunnel
	cmdEndTurn
	cmdDraw
	cmdExchange
	cmdDiscard
)

var commandKinds = map[string]commandKind{
	"choose_steps":   cmdChooseSteps,
	"move":           cmdMove,
	"place_edge":     cmdPlaceEdge,
	"roll_dice":      cmdRollDice,
	"resolve_damage": cmdResolveDamage,
	"tunnel_choice":  cmdTunnelChoice,
	"dismiss_tunnel": cmdDismissTunnel,
	"end_turn":       cmdEndTurn,
	"draw":           cmdDraw,
	"exchange":       cmdExchange,
	"discard":        cmdDiscard,
}

type normalizedCommand struct {
	player  int
	kind    commandKind
	steps   int
	dir     asylum.Direction
	card    card.Card
	dice    asylum.DiceKind
	stat    asylum.Stat
	role    asylum.Role
	action  asylum.TunnelAction
	penalty asylum.TunnelPenalty
	deck    card.Deck
	item    int
	indices []int
}

type normalizedSpec struct {
	cfg      asylum.Config
	roster   asylum.Roster
	commands []normalizedCommand
}

func invalidScript(step int, format string, args ...any) *ReplayError {
	return &ReplayError{StepIndex: int32(step), Reason: "invalid_script", Message: fmt.Sprintf(format, args...)}
}

func normalizeSpec(spec SessionSpec) (normalizedSpec, error) {
	var out normalizedSpec
	out.cfg = asylum.DefaultConfig()
	out.cfg.Seed = spec.Seed
	if out.cfg.Seed == 0 {
		out.cfg.Seed = defaultSeed
	}
	if len(spec.Draws) > 0 {
		out.cfg.Source = asylum.NewSequenceSource(spec.Draws...)
	}

	if len(spec.Seats) < 2 {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_seats", Message: "at least 2 seats are required"}
	}
	seen := make(map[int]bool, len(spec.Seats))
	for i, seat := range spec.Seats {
		if seat.ID <= 0 {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_seats", Message: fmt.Sprintf("seat %d needs a positive id", i)}
		}
		if seen[seat.ID] {
			return out, &ReplayError{StepIndex: -1, Reason: "duplicate_player", Message: fmt.Sprintf("duplicate player id %d", seat.ID)}
		}
		seen[seat.ID] = true
		role, ok := asylum.ParseRole(seat.Role)
		if !ok {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_role", Message: fmt.Sprintf("seat %d has unknown role %q", i, seat.Role)}
		}
		if seat.Spawn != nil {
			pos := asylum.Coord{Row: seat.Spawn.Row, Col: seat.Spawn.Col}
			if !pos.InBounds() {
				return out, &ReplayError{StepIndex: -1, Reason: "invalid_spawn", Message: fmt.Sprintf("spawn %s is off the board", pos)}
			}
			if out.cfg.Spawns == nil {
				out.cfg.Spawns = make(map[int]asylum.Coord)
			}
			out.cfg.Spawns[seat.ID] = pos
		}
		out.roster.Seats = append(out.roster.Seats, asylum.Seat{
			ID:    seat.ID,
			Name:  strings.TrimSpace(seat.Name),
			Role:  role,
			Color: seat.Color,
		})
	}

	if key := strings.TrimSpace(spec.DoctorCard); key != "" {
		dc, ok := asylum.FindDoctorCard(asylum.DefaultDoctorCards, key)
		if !ok {
			return out, &ReplayError{StepIndex: -1, Reason: "unknown_doctor_card", Message: fmt.Sprintf("unknown doctor card %q", key)}
		}
		out.roster.DoctorCard = &dc
	}

	for i, c := range spec.Commands {
		nc, err := normalizeCommand(i, c)
		if err != nil {
			return out, err
		}
		out.commands = append(out.commands, nc)
	}
	return out, nil
}

func normalizeCommand(step int, c CommandSpec) (normalizedCommand, error) {
	nc := normalizedCommand{player: c.Player, steps: c.Steps, item: c.Item, indices: c.Indices}
	kind, ok := commandKinds[strings.ToLower(strings.TrimSpace(c.Type))]
	if !ok {
		return nc, invalidScript(step, "unknown command type %q", c.Type)
	}
	nc.kind = kind

	switch kind {
	case cmdMove:
		if nc.dir, ok = asylum.ParseDirection(c.Dir); !ok {
			return nc, invalidScript(step, "unknown direction %q", c.Dir)
		}
	case cmdPlaceEdge:
		if nc.dir, ok = asylum.ParseDirection(c.Dir); !ok {
			return nc, invalidScript(step, "unknown direction %q", c.Dir)
		}
		if nc.card, ok = card.Parse(c.Card); !ok {
			return nc, invalidScript(step, "unknown card %q", c.Card)
		}
	case cmdRollDice:
		if nc.dice, ok = asylum.ParseDiceKind(c.Dice); !ok {
			return nc, invalidScript(step, "unknown dice kind %q", c.Dice)
		}
	case cmdResolveDamage:
		if nc.stat, ok = asylum.ParseStat(c.Stat); !ok {
			return nc, invalidScript(step, "unknown stat %q", c.Stat)
		}
	case cmdTunnelChoice:
		if nc.role, ok = asylum.ParseRole(c.Role); !ok {
			return nc, invalidScript(step, "unknown role %q", c.Role)
		}
		if nc.action, ok = asylum.ParseTunnelAction(c.Action); !ok {
			return nc, invalidScript(step, "unknown tunnel action %q", c.Action)
		}
	case cmdDismissTunnel:
		if c.Penalty != "" {
			kind, ok := asylum.ParsePenaltyKind(c.Penalty)
			if !ok {
				return nc, invalidScript(step, "unknown penalty %q", c.Penalty)
			}
			nc.penalty = asylum.TunnelPenalty{Kind: kind, ItemIndex: c.Item}
		}
	case cmdDraw:
		if nc.deck, ok = card.ParseDeck(c.Deck); !ok {
			return nc, invalidScript(step, "unknown deck %q", c.Deck)
		}
	}
	return nc, nil
}
