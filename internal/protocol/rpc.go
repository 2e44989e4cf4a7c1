package protocol

import "encoding/json"

// Version is the JSON-RPC protocol version on every envelope.
const Version = "2.0"

// JSON-RPC error codes. The standard codes cover envelope problems; the
// -32000 range carries host-side failures.
const (
	CodeParseError            = -32700
	CodeInvalidRequest        = -32600
	CodeMethodNotFound        = -32601
	CodeInvalidParams         = -32602
	CodeInternalError         = -32603
	CodeExecutionFailed       = -32000
	CodeCapabilityUnavailable = -32001
)

// Request is an inbound (or locally-initiated) JSON-RPC call. IDs are kept
// raw so string and numeric ids round-trip untouched.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC reply. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the structured error member of a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// NewRequest builds a call envelope, marshaling params.
func NewRequest(id, method string, params any) (Request, error) {
	req := Request{JSONRPC: Version, ID: marshalID(id), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Request{}, err
		}
		req.Params = raw
	}
	return req, nil
}

// NewResult builds a success response for the given request id.
func NewResult(id json.RawMessage, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewError builds an error response for the given request id.
func NewError(id json.RawMessage, code int, message string, data any) Response {
	return Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// CorrelationKey normalizes a raw id for use as a map key.
func CorrelationKey(id json.RawMessage) string {
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

func marshalID(id string) json.RawMessage {
	raw, _ := json.Marshal(id)
	return raw
}
