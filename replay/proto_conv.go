package replay

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"asylum-lite/asylum"
	"asylum-lite/card"
)

// Envelope wraps a payload as {"type": typ, "payload": payload}.
func Envelope(typ string, payload map[string]any) (*structpb.Struct, error) {
	body := map[string]any{"type": typ}
	if payload != nil {
		body["payload"] = payload
	}
	st, err := structpb.NewStruct(body)
	if err != nil {
		return nil, fmt.Errorf("build %s envelope: %w", typ, err)
	}
	return st, nil
}

// EncodeEnvelope serializes an envelope deterministically as base64 protobuf.
func EncodeEnvelope(st *structpb.Struct) (string, error) {
	raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeEnvelope(b64 string) (*structpb.Struct, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := proto.Unmarshal(raw, st); err != nil {
		return nil, err
	}
	return st, nil
}

func EventMap(e asylum.Event) map[string]any {
	m := map[string]any{
		"seq":    e.Seq,
		"kind":   e.Kind.String(),
		"player": e.Player,
		"text":   e.Text,
	}
	if e.Card != card.CardInvalid {
		m["card"] = e.Card.Key()
	}
	if e.Roll > 0 {
		m["roll"] = e.Roll
	}
	return m
}

func cardKeys(cards []card.Card) []any {
	out := make([]any, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Key())
	}
	return out
}

func coordMap(c asylum.Coord) map[string]any {
	return map[string]any{"row": c.Row, "col": c.Col}
}

// SnapshotMap converts a session snapshot into structpb-compatible values.
// Tunnel choices stay hidden until both sides have chosen.
func SnapshotMap(s asylum.Snapshot) map[string]any {
	players := make([]any, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, map[string]any{
			"id":           p.ID,
			"name":         p.Name,
			"role":         p.Role.String(),
			"color":        p.Color,
			"robot":        p.Robot,
			"placed":       p.Placed,
			"pos":          coordMap(p.Pos),
			"speed":        p.Speed,
			"sanity":       p.Sanity,
			"pain":         p.Pain,
			"endurance":    p.Endurance,
			"status":       p.Status.String(),
			"items":        cardKeys(p.Items),
			"disease":      cardKeys(p.Disease),
			"skipNextMove": p.SkipNextMove,
			"stepPenalty":  p.StepPenalty,
		})
	}

	// 只输出有内容的格子
	cells := make([]any, 0)
	for r := 0; r < asylum.BoardSize; r++ {
		for c := 0; c < asylum.BoardSize; c++ {
			cs := s.Board[r][c]
			if cs.Edges == [4]asylum.EdgeKind{} && len(cs.Marks) == 0 {
				continue
			}
			edges := make([]any, 0, 4)
			for _, e := range cs.Edges {
				edges = append(edges, e.String())
			}
			marks := make([]any, 0, len(cs.Marks))
			for _, m := range cs.Marks {
				marks = append(marks, map[string]any{"kind": m.Kind.String(), "color": m.Color})
			}
			cells = append(cells, map[string]any{"row": r, "col": c, "edges": edges, "marks": marks})
		}
	}

	explored := make([]any, 0, len(s.Explored))
	for _, c := range s.Explored {
		explored = append(explored, coordMap(c))
	}

	m := map[string]any{
		"started":       s.Started,
		"ended":         s.Ended,
		"winner":        s.Winner.String(),
		"turn":          s.Turn,
		"phase":         s.Phase.String(),
		"currentPlayer": s.CurrentPlayer,
		"budget":        s.Budget,
		"players":       players,
		"cells":         cells,
		"explored":      explored,
		"dialog":        DialogMap(s.Dialog),
	}
	if dc := s.DoctorCard; dc != nil {
		m["doctorCard"] = map[string]any{
			"key":       dc.Key,
			"name":      dc.Name,
			"endurance": dc.Endurance,
			"primary":   dc.Primary,
			"secondary": dc.Secondary,
		}
	}
	return m
}

func DialogMap(d asylum.Dialog) map[string]any {
	m := map[string]any{"kind": d.Kind.String()}
	switch d.Kind {
	case asylum.DialogExploreEdge:
		e := d.Edge
		edge := map[string]any{"player": e.Player, "at": coordMap(e.At), "card": e.Card.Key()}
		if e.HasForbidden {
			edge["forbidden"] = e.Forbidden.String()
		}
		m["edge"] = edge
	case asylum.DialogDice:
		dice := make([]any, 0, len(d.Dice))
		for _, j := range d.Dice {
			dice = append(dice, map[string]any{"id": j.ID, "kind": j.Kind.String(), "target": j.Target})
		}
		m["dice"] = dice
	case asylum.DialogTunnelBattle:
		t := d.Tunnel
		tunnel := map[string]any{
			"from":     coordMap(t.From),
			"to":       coordMap(t.To),
			"dir":      t.Dir.String(),
			"mover":    t.Mover,
			"opponent": t.Opponent,
			"phase":    t.Phase.String(),
		}
		if t.Phase == asylum.TunnelChoose {
			tunnel["doctorChosen"] = t.DoctorChoice != asylum.TunnelNone
			tunnel["patientChosen"] = t.PatientChoice != asylum.TunnelNone
		} else {
			tunnel["doctorChoice"] = t.DoctorChoice.String()
			tunnel["patientChoice"] = t.PatientChoice.String()
			tunnel["result"] = t.Result
		}
		m["tunnel"] = tunnel
	case asylum.DialogPendingDamage:
		pending := make([]any, 0, len(d.Pending))
		for _, p := range d.Pending {
			pending = append(pending, map[string]any{"patient": p.Patient, "class": p.Class.String(), "amount": p.Amount})
		}
		m["pending"] = pending
	}
	return m
}
