package scene

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
)

// Object actions carried by scene messages.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLeave  = "leave"
)

// Message is one object event published by the scene service. Updates
// may be partial: absent fields keep their previous value.
type Message struct {
	ObjectID    string `json:"object_id"`
	Action      string `json:"action"`
	Type        string `json:"type,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Data        *Data  `json:"data,omitempty"`
}

// Data is the object payload of a Message.
type Data struct {
	ObjectType string    `json:"object_type,omitempty"`
	Position   *Vector   `json:"position,omitempty"`
	Rotation   *Rotation `json:"rotation,omitempty"`
	Radius     *float64  `json:"radius,omitempty"`
}

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector) Vec() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Rotation is a quaternion, scalar last, as sent by the scene.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (r Rotation) Quaternion() geometry.Quaternion {
	return geometry.Quaternion{X: r.X, Y: r.Y, Z: r.Z, W: r.W}
}

// DecodeMessage parses one JSON scene message.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("decode scene message: %w", err)
	}
	if m.ObjectID == "" {
		return Message{}, fmt.Errorf("decode scene message: missing object_id")
	}
	if m.Action == "" {
		m.Action = ActionUpdate
	}
	return m, nil
}
