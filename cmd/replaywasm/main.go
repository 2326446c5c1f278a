//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"syscall/js"

	"asylum-lite/replay"
)

type replayRequest struct {
	Script replay.SessionSpec `json:"script"`
	// UpTo truncates the script so a viewer can step through it
	UpTo *int `json:"upTo,omitempty"`
}

type replayResponse struct {
	OK    bool                   `json:"ok"`
	Tape  *replay.WireReplayTape `json:"tape,omitempty"`
	Error *replay.ReplayError    `json:"error,omitempty"`
}

func main() {
	js.Global().Set("__asylumReplay", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return toJSON(failure("invalid_request", "missing request payload"))
		}
		return toJSON(handleReplay(args[0].String()))
	}))

	select {}
}

func failure(reason, msg string) replayResponse {
	return replayResponse{Error: &replay.ReplayError{StepIndex: -1, Reason: reason, Message: msg}}
}

func handleReplay(raw string) replayResponse {
	var req replayRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return failure("invalid_json", err.Error())
	}
	if req.UpTo != nil {
		n := *req.UpTo
		if n < 0 || n > len(req.Script.Commands) {
			return failure("invalid_request", "upTo out of range")
		}
		req.Script.Commands = req.Script.Commands[:n]
	}

	tape, err := replay.GenerateReplayTape(req.Script)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			return replayResponse{Error: replayErr}
		}
		return failure("replay_generation_failed", err.Error())
	}
	return replayResponse{OK: true, Tape: replay.ToWireReplayTape(tape)}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(failure("marshal_failed", err.Error()))
	}
	return string(b)
}
