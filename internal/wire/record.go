// Package wire implements the self-describing key/value record codec
// that every member uses to talk over the multicast group: a mandatory
// "op" tag plus operation-specific fields, JSON-encoded UTF-8 on the
// wire. Records with a missing required field for their op are
// rejected rather than silently accepted with a zero value.
package wire

import (
	"encoding/json"
	"fmt"
)

// Op identifies the kind of record carried by a datagram.
type Op string

const (
	OpHello          Op = "HELLO"
	OpHelloAck       Op = "HELLO_ACK"
	OpHB             Op = "HB"
	OpElection       Op = "ELECTION"
	OpOK             Op = "OK"
	OpLeader         Op = "LEADER"
	OpStartConsensus Op = "START_CONSENSUS"
	OpValue          Op = "VALUE"
	OpResponse       Op = "RESPONSE"
	OpRoundUpdate    Op = "ROUND_UPDATE"
	OpRoundQuery     Op = "ROUND_QUERY"
	OpRoundResponse  Op = "ROUND_RESPONSE"
)

// Record is the tagged variant sent and received over the transport.
// Fields are pointers/zero-valued so Pack can omit absent ones and
// Unpack can tell "absent" from "present and zero".
type Record struct {
	Op Op `json:"op"`

	PID   *int32 `json:"pid,omitempty"`
	To    *int32 `json:"to,omitempty"`
	Round *int64 `json:"round,omitempty"`

	Source *int32 `json:"source,omitempty"`
	Value  *int64 `json:"value,omitempty"`

	Response *int64 `json:"response,omitempty"`

	// Instance is an opaque per-process nonce attached to HELLO so a
	// restarted node (same --id) is distinguishable in logs.
	Instance string `json:"instance,omitempty"`
}

// required lists, per op, which fields must be present for the record
// to be considered well-formed.
var required = map[Op][]string{
	OpHello:          {"pid"},
	OpHelloAck:       {"pid", "round", "to"},
	OpHB:             {"pid"},
	OpElection:       {"source"},
	OpOK:             {"to"},
	OpLeader:         {"pid", "round"},
	OpStartConsensus: {"round"},
	OpValue:          {"pid", "value", "round"},
	OpResponse:       {"pid", "response", "round"},
	OpRoundUpdate:    {"round"},
	OpRoundQuery:     {},
	OpRoundResponse:  {"pid", "round"},
}

func (r Record) has(field string) bool {
	switch field {
	case "pid":
		return r.PID != nil
	case "to":
		return r.To != nil
	case "round":
		return r.Round != nil
	case "source":
		return r.Source != nil
	case "value":
		return r.Value != nil
	case "response":
		return r.Response != nil
	}
	return false
}

// Validate reports whether r carries every field required by its op.
func (r Record) Validate() error {
	fields, ok := required[r.Op]
	if !ok {
		return fmt.Errorf("wire: unknown op %q", r.Op)
	}
	for _, f := range fields {
		if !r.has(f) {
			return fmt.Errorf("wire: op %q missing required field %q", r.Op, f)
		}
	}
	return nil
}

// Pack encodes r as JSON after validating it carries its op's
// required fields.
func Pack(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// Unpack decodes data into a Record and validates it. A malformed or
// incomplete record yields an error; callers must drop the datagram
// and continue rather than propagate the error as fatal.
func Unpack(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("wire: decode: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Helper constructors keep call sites in internal/node free of pointer
// boilerplate.

func i32(v int32) *int32 { return &v }
func i64(v int64) *int64 { return &v }

func Hello(pid int32, instance string) Record {
	return Record{Op: OpHello, PID: i32(pid), Instance: instance}
}

func HelloAck(pid int32, round int64, to int32) Record {
	return Record{Op: OpHelloAck, PID: i32(pid), Round: i64(round), To: i32(to)}
}

func HB(pid int32) Record {
	return Record{Op: OpHB, PID: i32(pid)}
}

func Election(source int32) Record {
	return Record{Op: OpElection, Source: i32(source)}
}

func OK(to int32) Record {
	return Record{Op: OpOK, To: i32(to)}
}

func Leader(pid int32, round int64) Record {
	return Record{Op: OpLeader, PID: i32(pid), Round: i64(round)}
}

func StartConsensus(round int64) Record {
	return Record{Op: OpStartConsensus, Round: i64(round)}
}

func Value(pid int32, value int64, round int64) Record {
	return Record{Op: OpValue, PID: i32(pid), Value: i64(value), Round: i64(round)}
}

func Response(pid int32, response int64, round int64) Record {
	return Record{Op: OpResponse, PID: i32(pid), Response: i64(response), Round: i64(round)}
}

func RoundUpdate(round int64) Record {
	return Record{Op: OpRoundUpdate, Round: i64(round)}
}

func RoundQuery() Record {
	return Record{Op: OpRoundQuery}
}

func RoundResponse(pid int32, round int64) Record {
	return Record{Op: OpRoundResponse, PID: i32(pid), Round: i64(round)}
}
