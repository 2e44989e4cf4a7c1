package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the classified inbound variants.
type Kind int

const (
	// KindAudio is a binary frame of synthesized speech.
	KindAudio Kind = iota
	// KindEvent is a tagged event message.
	KindEvent
	// KindRequest is a JSON-RPC call addressed to this host.
	KindRequest
	// KindResponse is a JSON-RPC reply to a locally-initiated call.
	KindResponse
	// KindInvalid is a frame that failed classification. Err explains why.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindEvent:
		return "event"
	case KindRequest:
		return "rpc_request"
	case KindResponse:
		return "rpc_response"
	default:
		return "invalid"
	}
}

// Inbound is one classified frame. Exactly the field selected by Kind is
// populated; KindInvalid carries Err.
type Inbound struct {
	Kind     Kind
	Audio    []byte
	Event    Event
	Request  Request
	Response Response
	Err      error
}

// Classify turns a raw frame into its tagged variant. Binary frames are
// audio. Text frames are probed for a JSON-RPC method (request), then a
// type tag (event), then a bare id (response). Classification failures are
// reported in-band as KindInvalid so callers can log and discard without
// tearing the session down.
func Classify(binary bool, data []byte) Inbound {
	if binary {
		return Inbound{Kind: KindAudio, Audio: data}
	}

	var probe struct {
		Type   string          `json:"type"`
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Inbound{Kind: KindInvalid, Err: fmt.Errorf("parse frame: %w", err)}
	}

	switch {
	case probe.Method != "":
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return Inbound{Kind: KindInvalid, Err: fmt.Errorf("parse rpc request: %w", err)}
		}
		return Inbound{Kind: KindRequest, Request: req}
	case probe.Type != "":
		return Inbound{Kind: KindEvent, Event: Event{Type: probe.Type, Raw: data}}
	case len(probe.ID) > 0:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return Inbound{Kind: KindInvalid, Err: fmt.Errorf("parse rpc response: %w", err)}
		}
		return Inbound{Kind: KindResponse, Response: resp}
	default:
		return Inbound{Kind: KindInvalid, Err: fmt.Errorf("frame has no type, method, or id")}
	}
}
