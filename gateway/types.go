package gateway

import (
	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/param"
)

// Control message types accepted from clients
const (
	MsgSet           = "set"
	MsgReset         = "reset"
	MsgViewport      = "viewport"
	MsgClearViewport = "clear_viewport"
	MsgSpecs         = "specs"
)

// Outbound message types
const (
	MsgHello    = "hello"
	MsgArtifact = "artifact"
	MsgError    = "error"
)

// ControlMessage is the envelope for everything a client sends
type ControlMessage struct {
	Type   string             `json:"type"`
	Name   string             `json:"name,omitempty"`
	Value  any                `json:"value,omitempty"`
	Extent *datasource.Extent `json:"extent,omitempty"`
}

// HelloMessage greets a new session with its identity and the parameter
// surface, so clients can build controls without a second round trip
type HelloMessage struct {
	Type    string       `json:"type"`
	Session string       `json:"session"`
	Specs   []param.Spec `json:"specs"`
}

// ArtifactMessage announces a fresh artifact; the PNG follows in the next
// binary frame
type ArtifactMessage struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Generation uint64            `json:"generation"`
	Extent     datasource.Extent `json:"extent"`
	Points     int               `json:"points"`
	Spec       string            `json:"spec"`
	BuiltAt    string            `json:"built_at"`
}

// SpecsMessage answers a specs request
type SpecsMessage struct {
	Type  string       `json:"type"`
	Specs []param.Spec `json:"specs"`
}

// ErrorMessage reports a rejected control message or a rebuild failure
type ErrorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Parameter string `json:"parameter,omitempty"`
	Code      string `json:"code,omitempty"`
}
