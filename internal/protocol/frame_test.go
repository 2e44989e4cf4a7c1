package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBinary(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	in := Classify(true, pcm)
	assert.Equal(t, KindAudio, in.Kind)
	assert.Equal(t, pcm, in.Audio)
}

func TestClassifyEvent(t *testing.T) {
	in := Classify(false, []byte(`{"type":"transcript","text":"hello world"}`))
	require.Equal(t, KindEvent, in.Kind)
	assert.Equal(t, EventTranscript, in.Event.Type)

	var tr Transcript
	require.NoError(t, in.Event.Decode(&tr))
	assert.Equal(t, "hello world", tr.Text)
}

func TestClassifyRequest(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":"r1","method":"local/read_file","params":{"file_path":"src/app.ts"}}`
	in := Classify(false, []byte(raw))
	require.Equal(t, KindRequest, in.Kind)
	assert.Equal(t, "local/read_file", in.Request.Method)
	assert.Equal(t, "r1", CorrelationKey(in.Request.ID))
}

func TestClassifyRequestWithTypeTag(t *testing.T) {
	// The engine tags some RPC frames with type:"mcp_request"; the method
	// field decides, not the tag.
	raw := `{"type":"mcp_request","jsonrpc":"2.0","id":"r2","method":"local/execute_command","params":{}}`
	in := Classify(false, []byte(raw))
	require.Equal(t, KindRequest, in.Kind)
	assert.Equal(t, "local/execute_command", in.Request.Method)
}

func TestClassifyResponse(t *testing.T) {
	in := Classify(false, []byte(`{"jsonrpc":"2.0","id":"c7","result":"ok"}`))
	require.Equal(t, KindResponse, in.Kind)
	assert.Equal(t, "c7", CorrelationKey(in.Response.ID))
	assert.Nil(t, in.Response.Error)
}

func TestClassifyErrorResponse(t *testing.T) {
	in := Classify(false, []byte(`{"jsonrpc":"2.0","id":"c8","error":{"code":-32000,"message":"boom"}}`))
	require.Equal(t, KindResponse, in.Kind)
	require.NotNil(t, in.Response.Error)
	assert.Equal(t, CodeExecutionFailed, in.Response.Error.Code)
	assert.Equal(t, "boom", in.Response.Error.Message)
}

func TestClassifyMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"truncated json", `{"type":"transcr`},
		{"not an object", `[1,2,3]`},
		{"no discriminator", `{"text":"orphan"}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Classify(false, []byte(tt.data))
			assert.Equal(t, KindInvalid, in.Kind)
			assert.Error(t, in.Err)
		})
	}
}

func TestClassifyNumericID(t *testing.T) {
	in := Classify(false, []byte(`{"jsonrpc":"2.0","id":42,"result":{"ok":true}}`))
	require.Equal(t, KindResponse, in.Kind)
	assert.Equal(t, "42", CorrelationKey(in.Response.ID))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "audio", KindAudio.String())
	assert.Equal(t, "event", KindEvent.String())
	assert.Equal(t, "rpc_request", KindRequest.String())
	assert.Equal(t, "rpc_response", KindResponse.String())
	assert.Equal(t, "invalid", KindInvalid.String())
}
