package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// encoding is the wire format of a frame. Text frames carry JSON, binary
// frames carry CBOR.
type encoding int32

const (
	encodingJSON encoding = iota
	encodingCBOR
)

func (e encoding) String() string {
	if e == encodingCBOR {
		return "cbor"
	}
	return "json"
}

// messageType returns the WebSocket frame type for e.
func (e encoding) messageType() int {
	if e == encodingCBOR {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// marshal encodes v in e.
func (e encoding) marshal(v any) ([]byte, error) {
	if e == encodingCBOR {
		return cborEnc.Marshal(v)
	}
	return json.Marshal(v)
}

var (
	// CBOR maps decode to map[string]any so both encodings yield the same tree.
	cborDec = mustDecMode(cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	})
	cborEnc = mustEncMode(cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339,
	})
)

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decode options: %v", err))
	}
	return dm
}

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encode options: %v", err))
	}
	return em
}

// decodeFrame decodes a frame into a generic document. JSON numbers are
// kept as json.Number so integers survive unchanged.
func decodeFrame(messageType int, data []byte) (map[string]any, encoding, error) {
	var doc map[string]any

	switch messageType {
	case websocket.TextMessage:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, encodingJSON, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if doc == nil {
			return nil, encodingJSON, fmt.Errorf("%w: not an object", ErrMalformedMessage)
		}
		return doc, encodingJSON, nil

	case websocket.BinaryMessage:
		if err := cborDec.Unmarshal(data, &doc); err != nil {
			return nil, encodingCBOR, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if doc == nil {
			return nil, encodingCBOR, fmt.Errorf("%w: not a map", ErrMalformedMessage)
		}
		return doc, encodingCBOR, nil

	default:
		return nil, encodingJSON, fmt.Errorf("%w: unsupported frame type %d", ErrMalformedMessage, messageType)
	}
}
