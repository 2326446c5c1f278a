package replay

import (
	"errors"
	"fmt"

	"asylum-lite/asylum"
)

type ReplayError struct {
	StepIndex int32          `json:"step_index"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedState `json:"expected,omitempty"`
}

// ExpectedState describes who the session was waiting for when a command failed.
type ExpectedState struct {
	CurrentPlayer int    `json:"current_player"`
	Phase         string `json:"phase,omitempty"`
	Dialog        string `json:"dialog,omitempty"`
	Budget        int    `json:"budget"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}

// reasonFor maps engine errors onto stable reason codes.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, asylum.ErrOutOfTurn):
		return "out_of_turn"
	case errors.Is(err, asylum.ErrUnresolvedDialog):
		return "unresolved_dialog"
	case errors.Is(err, asylum.ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, asylum.ErrBlockedMove):
		return "blocked_move"
	case errors.Is(err, asylum.ErrEdgeConflict):
		return "edge_conflict"
	case errors.Is(err, asylum.ErrInvalidStepCount):
		return "invalid_step_count"
	case errors.Is(err, asylum.ErrUnknownCard):
		return "unknown_card"
	case errors.Is(err, asylum.ErrUnknownPlayer):
		return "unknown_player"
	}
	return "illegal_command"
}

func expectedFrom(s asylum.Snapshot) *ExpectedState {
	return &ExpectedState{
		CurrentPlayer: s.CurrentPlayer,
		Phase:         s.Phase.String(),
		Dialog:        s.Dialog.Kind.String(),
		Budget:        s.Budget,
	}
}
