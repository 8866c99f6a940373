package network

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// protocolMessages maps every message type to a sample of its payload.
var protocolMessages = map[string]any{
	MsgIdentify:     &IdentifyRequest{},
	MsgJoinQueue:    &JoinQueueRequest{},
	MsgPlayCard:     &PlayCardRequest{},
	MsgGameStart:    &GameStart{},
	MsgGameState:    &GameState{},
	MsgGameEnd:      &GameEnd{},
	MsgIdentified:   &Identified{},
	MsgQueued:       &Queued{},
	MsgPlayRejected: &PlayRejected{},
	MsgQueueTimeout: &QueueTimeout{},
	MsgError:        &ErrorMessage{},
}

// ProtocolSchema reflects a JSON schema for every payload, keyed by message type.
func ProtocolSchema() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(protocolMessages))
	for msgType, sample := range protocolMessages {
		out[msgType] = jsonschema.Reflect(sample)
	}
	return out
}

// MarshalProtocolSchema renders ProtocolSchema as indented JSON.
func MarshalProtocolSchema() ([]byte, error) {
	return json.MarshalIndent(ProtocolSchema(), "", "  ")
}
