package protocol

import "testing"

func TestIdentifyResponse(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQUint(out, uint32(MsgIdentifyResponse))
	IdentifyResponse{Offset: 120, Data: []byte(`{"version"`)}.Encode(out)

	resp, err := DecodeIdentifyResponse(out.Result())
	if err != nil {
		t.Fatalf("DecodeIdentifyResponse failed: %v", err)
	}
	if resp.Offset != 120 || string(resp.Data) != `{"version"` {
		t.Errorf("Unexpected response %d %q", resp.Offset, resp.Data)
	}
}

func TestIdentifyResponseWrongMessage(t *testing.T) {
	payload := []byte{byte(MsgServoState), 0}
	if _, err := DecodeIdentifyResponse(payload); err != ErrUnexpectedMessage {
		t.Errorf("Expected ErrUnexpectedMessage, got %v", err)
	}

	truncated := []byte{byte(MsgIdentifyResponse), 0, 5, 'a'}
	if _, err := DecodeIdentifyResponse(truncated); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}
