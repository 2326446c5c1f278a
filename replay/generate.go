package replay

import (
	"fmt"

	"asylum-lite/asylum"
)

const defaultSessionID = "replay_local"

// GenerateReplayTape runs the command script against a fresh session and
// records every narrated entry plus a closing snapshot.
func GenerateReplayTape(spec SessionSpec) (tape *ReplayTape, err error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	game, err := asylum.NewGame(ns.cfg)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "engine_init_failed", Message: err.Error()}
	}

	step := int32(-1)
	if len(spec.Draws) > 0 {
		// 脚本给出的随机数用尽时 SequenceSource 会 panic
		defer func() {
			if r := recover(); r != nil {
				tape = nil
				err = &ReplayError{StepIndex: step, Reason: "draws_exhausted", Message: fmt.Sprint(r)}
			}
		}()
	}

	if err := game.Start(ns.roster); err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "start_failed", Message: err.Error()}
	}
	builder := newTapeBuilder(defaultSessionID)
	if err := builder.addEvents(game, step); err != nil {
		return nil, err
	}

	for i, cmd := range ns.commands {
		step = int32(i)
		before := game.Snapshot()
		if err := applyCommand(game, cmd); err != nil {
			return nil, &ReplayError{
				StepIndex: step,
				Reason:    reasonFor(err),
				Message:   err.Error(),
				Expected:  expectedFrom(before),
			}
		}
		if err := builder.addEvents(game, step); err != nil {
			return nil, err
		}
	}
	if err := builder.addSnapshot(game.Snapshot(), step); err != nil {
		return nil, err
	}

	return &ReplayTape{
		TapeVersion: 1,
		SessionID:   builder.sessionID,
		Events:      builder.events,
	}, nil
}

func applyCommand(g *asylum.Game, c normalizedCommand) error {
	switch c.kind {
	case cmdChooseSteps:
		return g.ChooseSteps(c.player, c.steps)
	case cmdMove:
		return g.Move(c.player, c.dir)
	case cmdPlaceEdge:
		return g.PlaceEdge(c.player, c.card, c.dir)
	case cmdRollDice:
		_, err := g.RollDice(c.player, c.dice)
		return err
	case cmdResolveDamage:
		return g.ResolvePendingDamage(c.player, c.stat)
	case cmdTunnelChoice:
		return g.ChooseTunnelAction(c.player, c.role, c.action)
	case cmdDismissTunnel:
		return g.DismissTunnel(c.player, c.penalty)
	case cmdEndTurn:
		return g.EndTurn(c.player)
	case cmdDraw:
		_, err := g.DrawAuxiliary(c.player, c.deck)
		return err
	case cmdExchange:
		return g.ExchangeObstaclesForCritical(c.player, c.indices)
	case cmdDiscard:
		return g.DiscardItem(c.player, c.item)
	}
	return asylum.ErrInvalidState(fmt.Sprintf("unsupported command %d", c.kind))
}

type tapeBuilder struct {
	sessionID string
	lastSeq   uint64
	events    []ReplayEvent
}

func newTapeBuilder(sessionID string) *tapeBuilder {
	return &tapeBuilder{
		sessionID: sessionID,
		events:    make([]ReplayEvent, 0, 64),
	}
}

func (b *tapeBuilder) addEvents(g *asylum.Game, step int32) error {
	for _, e := range g.EventsSince(b.lastSeq) {
		b64, err := encodePayload("event", EventMap(e))
		if err != nil {
			return &ReplayError{StepIndex: step, Reason: "encode_failed", Message: err.Error()}
		}
		b.events = append(b.events, ReplayEvent{
			Type:        "event",
			Seq:         e.Seq,
			Step:        step,
			Kind:        e.Kind.String(),
			Player:      e.Player,
			Text:        e.Text,
			EnvelopeB64: b64,
		})
		b.lastSeq = e.Seq
	}
	return nil
}

func (b *tapeBuilder) addSnapshot(s asylum.Snapshot, step int32) error {
	b64, err := encodePayload("snapshot", SnapshotMap(s))
	if err != nil {
		return &ReplayError{StepIndex: step, Reason: "encode_failed", Message: err.Error()}
	}
	b.events = append(b.events, ReplayEvent{Type: "snapshot", Seq: b.lastSeq, Step: step, EnvelopeB64: b64})
	return nil
}

func encodePayload(typ string, payload map[string]any) (string, error) {
	env, err := Envelope(typ, payload)
	if err != nil {
		return "", err
	}
	return EncodeEnvelope(env)
}
