package npc

import (
	"reflect"
	"testing"

	"asylum-lite/asylum"
)

func fixedPersona(aggression, caution, exploration float64) *NPCPersona {
	return &NPCPersona{
		ID:   "fixed_test",
		Name: "FIXED_TEST",
		Brain: PersonalityProfile{
			Aggression:  aggression,
			Caution:     caution,
			Exploration: exploration,
			Randomness:  0,
		},
	}
}

func movingView(self int) GameView {
	return GameView{
		Self: self,
		Snap: asylum.Snapshot{
			Started:       true,
			Phase:         asylum.PhaseMoving,
			CurrentPlayer: self,
			Budget:        3,
			Players: []asylum.PlayerSnapshot{
				{ID: 1, Role: asylum.RoleDoctor, Placed: true, Pos: asylum.Coord{Row: 5, Col: 5}, Speed: 6},
				{ID: 2, Role: asylum.RolePatient, Placed: true, Pos: asylum.Coord{Row: 5, Col: 9}, Speed: 4, Sanity: 6, Pain: 6},
			},
		},
	}
}

func TestRuleBrainDoctorChasesNearestPatient(t *testing.T) {
	brain := NewRuleBrain(fixedPersona(1, 0, 0), 1)
	d := brain.Decide(movingView(1))
	if d.Action != ActionMove || len(d.Dirs) == 0 || d.Dirs[0] != asylum.East {
		t.Fatalf("doctor should head east first, got %+v", d)
	}
}

func TestRuleBrainPatientKeepsAway(t *testing.T) {
	brain := NewRuleBrain(fixedPersona(0, 1, 0), 1)
	d := brain.Decide(movingView(2))
	if d.Action != ActionMove || len(d.Dirs) != 4 || d.Dirs[3] != asylum.West {
		t.Fatalf("patient should avoid stepping toward the doctor, got %+v", d)
	}
}

func TestRuleBrainSkipsWalledDirections(t *testing.T) {
	view := movingView(1)
	view.Snap.Board[5][5].Edges[asylum.East] = asylum.EdgeWall
	brain := NewRuleBrain(fixedPersona(1, 0, 0), 1)
	d := brain.Decide(view)
	for _, dir := range d.Dirs {
		if dir == asylum.East {
			t.Fatalf("walled direction offered: %v", d.Dirs)
		}
	}
}

func TestRuleBrainTunnelChoicesFollowAggression(t *testing.T) {
	battle := &asylum.TunnelBattle{Mover: 2, Opponent: 1, Phase: asylum.TunnelChoose}
	view := movingView(1)
	view.Snap.Dialog = asylum.Dialog{Kind: asylum.DialogTunnelBattle, Tunnel: battle}

	for i := 0; i < 200; i++ {
		d := NewRuleBrain(fixedPersona(1, 0, 0), int64(i)).Decide(view)
		if d.Tunnel != asylum.TunnelPursue || d.Role != asylum.RoleDoctor {
			t.Fatalf("aggressive doctor should pursue, got %+v", d)
		}
		d = NewRuleBrain(fixedPersona(0, 0, 0), int64(i)).Decide(view)
		if d.Tunnel != asylum.TunnelAmbush {
			t.Fatalf("passive doctor should ambush, got %+v", d)
		}
	}

	view.Self = 2
	if d := NewRuleBrain(fixedPersona(0, 1, 0), 3).Decide(view); d.Tunnel != asylum.TunnelFlee || d.Role != asylum.RolePatient {
		t.Fatalf("passive patient should flee, got %+v", d)
	}
}

func TestRuleBrainDismissPrefersDiscardWithItems(t *testing.T) {
	battle := &asylum.TunnelBattle{
		Mover: 2, Opponent: 1, Phase: asylum.TunnelResult,
		DoctorChoice: asylum.TunnelAmbush, PatientChoice: asylum.TunnelSneak,
	}
	view := movingView(2)
	view.Snap.Dialog = asylum.Dialog{Kind: asylum.DialogTunnelBattle, Tunnel: battle}
	brain := NewRuleBrain(fixedPersona(0.5, 0.5, 0.5), 1)

	if d := brain.Decide(view); d.Action != ActionDismissTunnel || d.Penalty.Kind != asylum.PenaltyAttack {
		t.Fatalf("without items the patient takes the attack, got %+v", d)
	}
	view.Snap.Players[1].Items = append(view.Snap.Players[1].Items, 0x11)
	if d := brain.Decide(view); d.Penalty.Kind != asylum.PenaltyDiscard || d.Penalty.ItemIndex != 0 {
		t.Fatalf("with an item the patient discards, got %+v", d)
	}
	view.Self = 1
	if d := brain.Decide(view); d.Action != ActionNone {
		t.Fatalf("only the mover dismisses, got %+v", d)
	}
}

func TestRuleBrainPendingDamageSparesPain(t *testing.T) {
	view := movingView(2)
	view.Snap.CurrentPlayer = 1
	view.Snap.Dialog = asylum.Dialog{Kind: asylum.DialogPendingDamage, Pending: []asylum.PendingDamage{{Patient: 2, Amount: 1}}}
	brain := NewRuleBrain(nil, 1)

	if d := brain.Decide(view); d.Action != ActionResolveDamage || d.Stat != asylum.StatSanity {
		t.Fatalf("tie should cost sanity, got %+v", d)
	}
	view.Snap.Players[1].Sanity = 2
	if d := brain.Decide(view); d.Stat != asylum.StatPain {
		t.Fatalf("higher pain should absorb, got %+v", d)
	}
}

func TestRuleBrainChooseStepsWithinSpeed(t *testing.T) {
	view := movingView(1)
	view.Snap.Phase = asylum.PhaseChoosingSteps
	for i := 0; i < 500; i++ {
		p := fixedPersona(float64(i%11)/10, 0, 0)
		p.Brain.Randomness = 1
		d := NewRuleBrain(p, int64(i)).Decide(view)
		if d.Action != ActionChooseSteps || d.Steps < 1 || d.Steps > 6 {
			t.Fatalf("steps out of range: %+v", d)
		}
	}
}

func runBotSession(t *testing.T, seed int64) asylum.Snapshot {
	t.Helper()
	cfg := asylum.DefaultConfig()
	cfg.Seed = seed
	g, err := asylum.NewGame(cfg)
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	m := NewManager(DefaultRegistry(), seed)
	roster := asylum.Roster{}
	for i := 0; i < 4; i++ {
		role := asylum.RolePatient
		if i == 0 {
			role = asylum.RoleDoctor
		}
		id := m.NextID()
		m.Spawn(id, role, nil)
		roster.Seats = append(roster.Seats, asylum.Seat{ID: id, Role: role, Robot: true})
	}
	if err := g.Start(roster); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	for i := 0; i < 3000; i++ {
		acted, err := m.Step(g)
		if err != nil {
			t.Fatalf("step %d err: %v", i, err)
		}
		if !acted {
			break
		}
	}
	return g.Snapshot()
}

func TestBotsDriveWholeSession(t *testing.T) {
	s := runBotSession(t, 11)
	if !s.Ended && s.Turn < 20 {
		t.Fatalf("bots stalled at turn %d", s.Turn)
	}
}

func TestBotSessionIsDeterministic(t *testing.T) {
	a := runBotSession(t, 5)
	b := runBotSession(t, 5)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seeds produced different bot sessions")
	}
}
