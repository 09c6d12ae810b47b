// Package remote serves environments over WebSocket so that training code in
// another process can drive reset and step.
package remote

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/traffic-rl/flowgrid/env"
)

// Request and response frame types.
const (
	TypeReset  = "reset"
	TypeStep   = "step"
	TypeSpaces = "spaces"
	TypeResult = "result"
	TypeError  = "error"
)

// Request is a client frame.
type Request struct {
	Type    string               `json:"type" msgpack:"type"`
	Actions map[string][]float64 `json:"actions,omitempty" msgpack:"actions,omitempty"`
}

// Response is a server frame. Which fields are set depends on the request.
type Response struct {
	Type string `json:"type" msgpack:"type"`
	Step int    `json:"step" msgpack:"step"`

	Observations map[string][]float64      `json:"observations,omitempty" msgpack:"observations,omitempty"`
	Rewards      map[string]float64        `json:"rewards,omitempty" msgpack:"rewards,omitempty"`
	Dones        map[string]bool           `json:"dones,omitempty" msgpack:"dones,omitempty"`
	Infos        map[string]map[string]any `json:"infos,omitempty" msgpack:"infos,omitempty"`

	ObservationSpace *env.Box `json:"observation_space,omitempty" msgpack:"observation_space,omitempty"`
	ActionSpace      *env.Box `json:"action_space,omitempty" msgpack:"action_space,omitempty"`

	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
}

const requestSchema = `{
  "type": "object",
  "required": ["type"],
  "additionalProperties": false,
  "properties": {
    "type": {"enum": ["reset", "step", "spaces"]},
    "actions": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "number"}}
    }
  }
}`

func compileRequestSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("request.schema.json", strings.NewReader(requestSchema)); err != nil {
		return nil, err
	}
	return c.Compile("request.schema.json")
}

// Codec encodes frames on the wire.
type Codec interface {
	Name() string
	// MessageType is the websocket message type frames travel in.
	MessageType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ValidCodecs is the set of recognized codec names.
var ValidCodecs = map[string]bool{"": true, "json": true, "msgpack": true}

// NewCodec creates a codec by name. Panics on unrecognized names.
func NewCodec(name string) Codec {
	if !ValidCodecs[name] {
		panic(fmt.Sprintf("unknown codec %q", name))
	}
	switch name {
	case "", "json":
		return jsonCodec{}
	case "msgpack":
		return msgpackCodec{}
	default:
		panic(fmt.Sprintf("unhandled codec %q", name))
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) MessageType() int                   { return websocket.TextMessage }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) MessageType() int                   { return websocket.BinaryMessage }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// decodeRequest decodes and validates one client frame. JSON frames are
// validated as sent; msgpack frames are validated in their JSON form.
func decodeRequest(codec Codec, schema *jsonschema.Schema, data []byte) (Request, error) {
	var doc any
	if codec.Name() == "json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return Request{}, fmt.Errorf("decoding request: %w", err)
		}
	} else {
		var generic map[string]any
		if err := codec.Unmarshal(data, &generic); err != nil {
			return Request{}, fmt.Errorf("decoding request: %w", err)
		}
		b, err := json.Marshal(generic)
		if err != nil {
			return Request{}, fmt.Errorf("decoding request: %w", err)
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return Request{}, fmt.Errorf("decoding request: %w", err)
		}
	}
	if err := schema.Validate(doc); err != nil {
		return Request{}, fmt.Errorf("invalid request: %w", err)
	}
	var req Request
	if err := codec.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}
