// Package service provides the per-invocation context, response envelope,
// and error taxonomy shared by every CORE service (pkg/asset, pkg/dex).
// Deliberately narrow: the generic service-dispatch framework and the
// block executor that drives it are external collaborators, not
// reimplemented here.
package service

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// AdmissionToken is the single process-wide capability value the asset
// service's privileged facade (Lock, Unlock, AddValue, SubValue) checks
// for in Context.Extra. pkg/dex synthesizes a Context carrying this
// token via WithCapability to move user funds; rotating this value is a
// hard fork.
var AdmissionToken = []byte("dexledger-asset-admission-v1")

// EventSink collects topic/payload pairs emitted during a transaction or
// hook invocation, mirroring a block-level event log. Tests use
// a *MemorySink directly; the executor in pkg/executor appends into a
// per-block log that the API's websocket hub drains after FinalizeBlock.
type EventSink interface {
	Emit(topic string, payload any)
}

// MemorySink is the simplest EventSink: an ordered in-memory record of
// every emitted event, good enough for tests and for a single-process
// devnet harness.
type MemorySink struct {
	Events []Event
}

type Event struct {
	Topic   string
	Payload json.RawMessage
}

func (s *MemorySink) Emit(topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Marshaling a service's own event payload should never fail;
		// if it does, record the failure itself rather than panic the hook.
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	s.Events = append(s.Events, Event{Topic: topic, Payload: raw})
}

// Context is the per-invocation record every service method receives:
// caller identity, optional originating transaction hash (absent for
// post-block hook invocations), current block height, the opaque
// capability token carried in Extra, and the event sink transactions and
// hooks emit into.
type Context struct {
	Caller  common.Address
	TxHash  *common.Hash // nil outside a transaction (e.g. inside RunMatchingHook)
	Height  uint64
	Extra   []byte
	Sink    EventSink
}

// Emit is a convenience wrapper so call sites don't nil-check Sink.
func (c Context) Emit(topic string, payload any) {
	if c.Sink == nil {
		return
	}
	c.Sink.Emit(topic, payload)
}

// WithCapability returns a copy of ctx carrying the given capability
// token: a service fabricates one of these to call a collaborator's
// privileged facade, with a zero Caller and no TxHash.
func WithCapability(height uint64, token []byte, sink EventSink) Context {
	return Context{Height: height, Extra: token, Sink: sink}
}
