package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmptyFrame is returned when decoding a zero-length frame.
var ErrEmptyFrame = errors.New("empty frame")

// Codec translates envelopes to and from websocket frames.
type Codec interface {
	Name() string
	// FrameType is the websocket message type frames are written with.
	FrameType() int
	Encode(msgType string, payload any) ([]byte, error)
	DecodeEnvelope(data []byte) (Envelope, error)
	DecodePayload(env Envelope, out any) error
}

// CodecByName picks a codec for the ?codec= query value. Unknown names fall back to JSON.
func CodecByName(name string) Codec {
	if name == MsgpackCodec.Name() {
		return MsgpackCodec
	}
	return JSONCodec
}

// DecodePayload unpacks env's payload into a fresh T. An absent payload yields T's zero
// value.
func DecodePayload[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, nil
	}
	err := c.DecodePayload(env, &out)
	return out, err
}

var (
	// JSONCodec writes text frames of the form {"type": ..., "payload": ...}.
	JSONCodec Codec = jsonCodec{}
	// MsgpackCodec writes binary frames with the same shape.
	MsgpackCodec Codec = msgpackCodec{}
)

type jsonCodec struct{}

type jsonFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", msgType, err)
		}
		raw = b
	}
	return json.Marshal(jsonFrame{Type: msgType, Payload: raw})
}

func (jsonCodec) DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var f jsonFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Envelope{}, err
	}
	if f.Type == "" {
		return Envelope{}, fmt.Errorf("frame without type")
	}
	payload := []byte(f.Payload)
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = nil
	}
	return Envelope{Type: f.Type, Payload: payload}, nil
}

func (jsonCodec) DecodePayload(env Envelope, out any) error {
	return json.Unmarshal(env.Payload, out)
}

type msgpackCodec struct{}

type msgpackFrame struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	var raw msgpack.RawMessage
	if payload != nil {
		b, err := marshalMsgpack(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", msgType, err)
		}
		raw = b
	}
	return marshalMsgpack(msgpackFrame{Type: msgType, Payload: raw})
}

func (msgpackCodec) DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var f msgpackFrame
	if err := unmarshalMsgpack(data, &f); err != nil {
		return Envelope{}, err
	}
	if f.Type == "" {
		return Envelope{}, fmt.Errorf("frame without type")
	}
	return Envelope{Type: f.Type, Payload: []byte(f.Payload)}, nil
}

func (msgpackCodec) DecodePayload(env Envelope, out any) error {
	return unmarshalMsgpack(env.Payload, out)
}

// Payload structs only carry json tags; msgpack falls back to them.
func marshalMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
