// Package codec converts between websocket frames and structpb envelopes.
//
// Text frames carry protojson, binary frames carry protobuf; both decode to
// the same {"type": ..., "payload": ...} struct.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"asylum-lite/asylum"
	"asylum-lite/replay"
)

type Format byte

const (
	FormatJSON  Format = 0
	FormatProto Format = 1
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proto", "protobuf", "binary":
		return FormatProto
	}
	return FormatJSON
}

func (f Format) String() string {
	if f == FormatProto {
		return "proto"
	}
	return "json"
}

// Marshal encodes env; binary reports whether it needs a binary frame.
func Marshal(f Format, env *structpb.Struct) (data []byte, binary bool, err error) {
	if f == FormatProto {
		data, err = proto.Marshal(env)
		return data, true, err
	}
	data, err = protojson.Marshal(env)
	return data, false, err
}

func Unmarshal(binary bool, data []byte) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	var err error
	if binary {
		err = proto.Unmarshal(data, st)
	} else {
		err = protojson.Unmarshal(data, st)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ServerEnvelope stamps a payload with table id, server seq and time.
func ServerEnvelope(typ, tableID string, seq uint64, payload map[string]any) (*structpb.Struct, error) {
	env, err := replay.Envelope(typ, payload)
	if err != nil {
		return nil, err
	}
	env.Fields["table"] = structpb.NewStringValue(tableID)
	env.Fields["seq"] = structpb.NewNumberValue(float64(seq))
	env.Fields["tsMs"] = structpb.NewNumberValue(float64(time.Now().UnixMilli()))
	return env, nil
}

// SnapshotPayload renders snap for one viewer: other players' hands are
// reduced to a count.
func SnapshotPayload(snap asylum.Snapshot, viewer int) map[string]any {
	m := replay.SnapshotMap(snap)
	m["you"] = viewer
	players, _ := m["players"].([]any)
	for _, raw := range players {
		p, ok := raw.(map[string]any)
		if !ok || p["id"] == viewer {
			continue
		}
		items, _ := p["items"].([]any)
		p["itemCount"] = len(items)
		delete(p, "items")
	}
	return m
}

func EventsPayload(events []asylum.Event) map[string]any {
	list := make([]any, 0, len(events))
	for _, e := range events {
		list = append(list, replay.EventMap(e))
	}
	return map[string]any{"events": list}
}

func ErrorPayload(reason, msg string) map[string]any {
	return map[string]any{"reason": reason, "message": msg}
}

const (
	ClientCommand  = "command"
	ClientSnapshot = "snapshot"
	ClientPing     = "ping"
)

// ClientMessage is a decoded client envelope.
type ClientMessage struct {
	Type    string
	Command replay.CommandSpec
}

func DecodeClient(st *structpb.Struct) (ClientMessage, error) {
	var msg ClientMessage
	typ := st.GetFields()["type"].GetStringValue()
	msg.Type = strings.ToLower(strings.TrimSpace(typ))
	switch msg.Type {
	case ClientSnapshot, ClientPing:
		return msg, nil
	case ClientCommand:
		payload := st.GetFields()["payload"]
		if payload.GetStructValue() == nil {
			return msg, fmt.Errorf("command without payload")
		}
		raw, err := protojson.Marshal(payload)
		if err != nil {
			return msg, err
		}
		if err := json.Unmarshal(raw, &msg.Command); err != nil {
			return msg, fmt.Errorf("decode command: %w", err)
		}
		return msg, nil
	}
	return msg, fmt.Errorf("unknown message type %q", typ)
}
