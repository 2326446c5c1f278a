package replay

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestGenerateReplayTape_IsDeterministic(t *testing.T) {
	spec := baseSessionSpec()

	tapeA, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape A failed: %v", err)
	}
	tapeB, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape B failed: %v", err)
	}
	if !reflect.DeepEqual(tapeA, tapeB) {
		t.Fatalf("expected deterministic replay tape for the same script")
	}

	foundAttack := false
	for _, e := range tapeA.Events {
		if strings.Contains(e.Text, "直接受到2点疼痛伤害") {
			foundAttack = true
		}
	}
	if !foundAttack {
		t.Fatalf("expected the scripted attack to appear on the tape")
	}

	last := tapeA.Events[len(tapeA.Events)-1]
	if last.Type != "snapshot" || last.Step != 4 {
		t.Fatalf("tape should close with a snapshot, got %+v", last)
	}
	env, err := DecodeEnvelope(last.EnvelopeB64)
	if err != nil {
		t.Fatalf("DecodeEnvelope err: %v", err)
	}
	payload := env.Fields["payload"].GetStructValue()
	if env.Fields["type"].GetStringValue() != "snapshot" || payload.Fields["currentPlayer"].GetNumberValue() != 2 {
		t.Fatalf("unexpected closing snapshot: %v", env)
	}
}

func TestGenerateReplayTape_SeedWithoutSpawns(t *testing.T) {
	spec := SessionSpec{
		Seed: 9,
		Seats: []SeatSpec{
			{ID: 1, Role: "doctor"},
			{ID: 2, Role: "patient"},
		},
		Commands: []CommandSpec{{Player: 1, Type: "end_turn"}},
	}
	a, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape err: %v", err)
	}
	b, _ := GenerateReplayTape(spec)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("seeded spawns should be reproducible")
	}
}

func TestGenerateReplayTape_ReturnsReplayErrorOnOutOfTurnCommand(t *testing.T) {
	spec := baseSessionSpec()
	spec.Commands[0].Player = 2

	_, err := GenerateReplayTape(spec)
	var replayErr *ReplayError
	if !errors.As(err, &replayErr) {
		t.Fatalf("expected ReplayError type, got %T", err)
	}
	if replayErr.Reason != "out_of_turn" || replayErr.StepIndex != 0 {
		t.Fatalf("unexpected error: %+v", replayErr)
	}
	if replayErr.Expected == nil || replayErr.Expected.CurrentPlayer != 1 {
		t.Fatalf("expected replay error to name the turn holder, got %+v", replayErr.Expected)
	}
}

func TestGenerateReplayTape_ErrorReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SessionSpec)
		step   int32
		reason string
	}{
		{"bad direction", func(s *SessionSpec) { s.Commands[1].Dir = "X" }, 1, "invalid_script"},
		{"entry edge", func(s *SessionSpec) { s.Commands[2].Dir = "W" }, 2, "edge_conflict"},
		{"too many steps", func(s *SessionSpec) { s.Commands[0].Steps = 9 }, 0, "invalid_step_count"},
		{"dialog open", func(s *SessionSpec) { s.Commands[2] = CommandSpec{Player: 1, Type: "move", Dir: "E"} }, 2, "unresolved_dialog"},
		{"draws exhausted", func(s *SessionSpec) { s.Draws = s.Draws[:1] }, 3, "draws_exhausted"},
		{"two doctors", func(s *SessionSpec) { s.Seats[1].Role = "doctor" }, -1, "start_failed"},
		{"unknown card", func(s *SessionSpec) { s.DoctorCard = "nope" }, -1, "unknown_doctor_card"},
		{"spawn off board", func(s *SessionSpec) { s.Seats[0].Spawn = &CoordSpec{Row: 18} }, -1, "invalid_spawn"},
	}
	for _, tc := range cases {
		spec := baseSessionSpec()
		tc.mutate(&spec)
		_, err := GenerateReplayTape(spec)
		var replayErr *ReplayError
		if !errors.As(err, &replayErr) {
			t.Fatalf("%s: expected ReplayError, got %v", tc.name, err)
		}
		if replayErr.Reason != tc.reason || replayErr.StepIndex != tc.step {
			t.Fatalf("%s: got reason=%s step=%d, want %s/%d", tc.name, replayErr.Reason, replayErr.StepIndex, tc.reason, tc.step)
		}
	}
}

func TestToWireReplayTape(t *testing.T) {
	tape, err := GenerateReplayTape(baseSessionSpec())
	if err != nil {
		t.Fatalf("GenerateReplayTape err: %v", err)
	}
	wire := ToWireReplayTape(tape)
	if wire.SessionID != defaultSessionID || len(wire.Events) != len(tape.Events) {
		t.Fatalf("wire tape mismatch")
	}
	if ToWireReplayTape(nil) != nil {
		t.Fatalf("nil tape should stay nil")
	}
}

// 医生进入病患所在的未探索格，抽到墙体，放在北边，再掷出6点袭击
func baseSessionSpec() SessionSpec {
	return SessionSpec{
		Draws: []int{4, 5},
		Seats: []SeatSpec{
			{ID: 1, Name: "医生", Role: "doctor", Spawn: &CoordSpec{Row: 5, Col: 4}},
			{ID: 2, Role: "patient", Spawn: &CoordSpec{Row: 5, Col: 5}},
			{ID: 3, Role: "patient", Spawn: &CoordSpec{Row: 12, Col: 12}},
		},
		Commands: []CommandSpec{
			{Player: 1, Type: "choose_steps", Steps: 2},
			{Player: 1, Type: "move", Dir: "E"},
			{Player: 1, Type: "place_edge", Card: "wall", Dir: "N"},
			{Player: 1, Type: "roll_dice", Dice: "attack"},
			{Player: 1, Type: "end_turn"},
		},
	}
}
