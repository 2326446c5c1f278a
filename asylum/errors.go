package asylum

import "errors"

var (
	ErrInvalidStepCount = errors.New("invalid step count")
	ErrEdgeConflict     = errors.New("edge conflict")
	ErrBlockedMove      = errors.New("blocked move")
	ErrOutOfTurn        = errors.New("action out of turn")
	ErrUnresolvedDialog = errors.New("unresolved dialog")
	ErrUnknownCard      = errors.New("unknown card")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrSessionEnded     = errors.New("session already ended")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
