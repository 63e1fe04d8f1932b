package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDecodeFrame_JSON(t *testing.T) {
	doc, enc, err := decodeFrame(websocket.TextMessage, []byte(`{"manualPQ":{"p":9007199254740993,"q":1}}`))
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if enc != encodingJSON {
		t.Errorf("encoding = %s, want json", enc)
	}
	pq := doc["manualPQ"].(map[string]any)
	if pq["p"] != json.Number("9007199254740993") {
		t.Errorf("p = %#v, want exact json.Number", pq["p"])
	}
}

func TestDecodeFrame_CBOR(t *testing.T) {
	data, err := cborEnc.Marshal(map[string]any{
		"devices": map[string]any{"fems": map[string]any{"subscribe": []any{"ess0"}}},
	})
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}

	doc, enc, err := decodeFrame(websocket.BinaryMessage, data)
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if enc != encodingCBOR {
		t.Errorf("encoding = %s, want cbor", enc)
	}
	msg, err := parseInbound(doc, "fems")
	if err != nil {
		t.Fatalf("parseInbound() error = %v", err)
	}
	if msg.device == nil || !msg.device.hasSubscribe {
		t.Fatalf("device = %+v, want a subscribe", msg.device)
	}
	tags, err := parseTags(msg.device.subscribe)
	if err != nil || len(tags) != 1 || tags[0] != "ess0" {
		t.Errorf("parseTags() = %v, %v", tags, err)
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		data        []byte
	}{
		{"invalid json", websocket.TextMessage, []byte("{")},
		{"json array", websocket.TextMessage, []byte("[1,2]")},
		{"json null", websocket.TextMessage, []byte("null")},
		{"invalid cbor", websocket.BinaryMessage, []byte{0xff, 0x00}},
		{"cbor null", websocket.BinaryMessage, []byte{0xf6}},
		{"unsupported type", websocket.PingMessage, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeFrame(tt.messageType, tt.data)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("decodeFrame() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestEncoding_Marshal(t *testing.T) {
	reply := notificationReply{Notification: notice{Severity: SeverityInfo, Message: "hi"}}

	data, err := encodingJSON.marshal(reply)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	if want := `{"notification":{"severity":"INFO","message":"hi"}}`; string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
	if encodingJSON.messageType() != websocket.TextMessage {
		t.Error("json frames must be text")
	}

	data, err = encodingCBOR.marshal(reply)
	if err != nil {
		t.Fatalf("cbor marshal: %v", err)
	}
	var back map[string]any
	if err := cborDec.Unmarshal(data, &back); err != nil {
		t.Fatalf("cbor unmarshal: %v", err)
	}
	n := back["notification"].(map[string]any)
	if n["severity"] != "INFO" || n["message"] != "hi" {
		t.Errorf("cbor reply = %v", back)
	}
	if encodingCBOR.messageType() != websocket.BinaryMessage {
		t.Error("cbor frames must be binary")
	}
}
