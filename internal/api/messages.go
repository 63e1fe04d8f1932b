package api

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nerrad567/edgelink-core/internal/auth"
)

// inboundMessage is a decoded client frame. A frame carrying "method" is a
// notification; otherwise it is a request made of an optional
// authenticate block and an optional block for the default device.
type inboundMessage struct {
	authenticate *auth.Credentials
	notification notification
	device       *deviceRequest
}

// onlyAuthenticate reports whether the frame carries nothing but credentials.
func (m inboundMessage) onlyAuthenticate() bool {
	return m.authenticate != nil && m.notification == nil && m.device == nil
}

// deviceRequest holds the raw parts of devices.<default>. Each part is
// validated by its handler so a bad part only fails itself.
type deviceRequest struct {
	subscribe any
	config    any
	manualPQ  any

	hasSubscribe bool
	hasConfig    bool
	hasManualPQ  bool
}

// notification is an edge-originated JSON-RPC notification.
type notification interface {
	method() string
}

type edgeConfiguration struct {
	config map[string]any
}

type timestampedData struct {
	// data maps a timestamp to channel addresses and their values.
	data map[string]map[string]any
}

type unknownNotification struct {
	name string
}

func (edgeConfiguration) method() string     { return methodEdgeConfiguration }
func (timestampedData) method() string       { return methodTimestampedData }
func (n unknownNotification) method() string { return n.name }

// Notification methods.
const (
	methodEdgeConfiguration = "edgeConfiguration"
	methodTimestampedData   = "timestampedData"
)

// configOperation is one entry of a config list.
type configOperation interface {
	operation() string
}

type updateOperation struct {
	thing   string
	channel string
	value   any
}

type createOperation struct {
	object map[string]any
	path   []string
}

type deleteOperation struct {
	thing string
}

type getOperation struct {
	target string
}

type unknownOperation struct {
	name string
}

// malformedOperation is an entry whose fields do not fit its operation.
type malformedOperation struct {
	name string
	err  error
}

func (updateOperation) operation() string      { return "update" }
func (createOperation) operation() string      { return "create" }
func (deleteOperation) operation() string      { return "delete" }
func (getOperation) operation() string         { return "get" }
func (o unknownOperation) operation() string   { return o.name }
func (o malformedOperation) operation() string { return o.name }

// manualPQRequest is a parsed manualPQ block. Both or neither of P and Q
// are set.
type manualPQRequest struct {
	p, q  int64
	reset bool
}

// parseInbound classifies a decoded frame. Credentials are always parsed
// first so authentication can proceed even when the rest is malformed.
func parseInbound(doc map[string]any, deviceID string) (inboundMessage, error) {
	var msg inboundMessage

	if v, ok := doc["authenticate"]; ok {
		creds := parseCredentials(v)
		msg.authenticate = &creds
	}

	if _, ok := doc["method"]; ok {
		n, err := parseNotification(doc)
		if err != nil {
			return msg, err
		}
		msg.notification = n
		return msg, nil
	}

	v, ok := doc["devices"]
	if !ok {
		return msg, nil
	}
	devices, ok := v.(map[string]any)
	if !ok {
		return msg, fmt.Errorf("%w: devices must be an object", ErrMalformedMessage)
	}
	dv, ok := devices[deviceID]
	if !ok {
		return msg, fmt.Errorf("%w: no request for device %q", ErrMalformedMessage, deviceID)
	}
	device, ok := dv.(map[string]any)
	if !ok {
		return msg, fmt.Errorf("%w: device %q must be an object", ErrMalformedMessage, deviceID)
	}

	req := &deviceRequest{}
	req.subscribe, req.hasSubscribe = device["subscribe"]
	req.config, req.hasConfig = device["config"]
	req.manualPQ, req.hasManualPQ = device["manualPQ"]
	msg.device = req
	return msg, nil
}

// parseCredentials extracts credentials. Anything that is not an object
// yields empty credentials, which the authenticator rejects.
func parseCredentials(v any) auth.Credentials {
	obj, ok := v.(map[string]any)
	if !ok {
		return auth.Credentials{}
	}
	var c auth.Credentials
	c.Username, _ = obj["username"].(string) //nolint:errcheck // absent or wrong type means empty
	c.Password, _ = obj["password"].(string) //nolint:errcheck // absent or wrong type means empty
	c.Token, _ = obj["token"].(string)       //nolint:errcheck // absent or wrong type means empty
	return c
}

func parseNotification(doc map[string]any) (notification, error) {
	method, ok := doc["method"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: method must be a string", ErrMalformedMessage)
	}

	switch method {
	case methodEdgeConfiguration:
		params, ok := doc["params"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s params must be an object", ErrMalformedMessage, method)
		}
		return edgeConfiguration{config: params}, nil

	case methodTimestampedData:
		params, ok := doc["params"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s params must be an object", ErrMalformedMessage, method)
		}
		data := make(map[string]map[string]any, len(params))
		for ts, bucket := range params {
			channels, ok := bucket.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s bucket %q must be an object", ErrMalformedMessage, method, ts)
			}
			data[ts] = channels
		}
		return timestampedData{data: data}, nil

	default:
		return unknownNotification{name: method}, nil
	}
}

// parseTags accepts a single tag or a list of tags.
func parseTags(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, fmt.Errorf("%w: empty subscription tag", ErrMalformedMessage)
		}
		return []string{t}, nil
	case []any:
		tags := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: subscription tags must be non-empty strings", ErrMalformedMessage)
			}
			tags = append(tags, s)
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("%w: subscribe must be a string or a list", ErrMalformedMessage)
	}
}

// parseConfigOperations accepts a list of operations or a single one.
func parseConfigOperations(v any) ([]configOperation, error) {
	var entries []any
	switch t := v.(type) {
	case []any:
		entries = t
	case map[string]any:
		entries = []any{t}
	default:
		return nil, fmt.Errorf("%w: config must be a list of operations", ErrMalformedMessage)
	}

	ops := make([]configOperation, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			ops = append(ops, malformedOperation{err: fmt.Errorf("%w: operation must be an object", ErrMalformedMessage)})
			continue
		}
		ops = append(ops, parseConfigOperation(obj))
	}
	return ops, nil
}

func parseConfigOperation(obj map[string]any) configOperation {
	name, _ := obj["operation"].(string) //nolint:errcheck // absent means a get or an unknown operation

	malformed := func(format string, args ...any) configOperation {
		return malformedOperation{name: name, err: fmt.Errorf("%w: "+format, append([]any{ErrMalformedMessage}, args...)...)}
	}

	switch name {
	case "update":
		thing, ok1 := obj["thing"].(string)
		channel, ok2 := obj["channel"].(string)
		if !ok1 || !ok2 || thing == "" || channel == "" {
			return malformed("update requires thing and channel")
		}
		value, ok := obj["value"]
		if !ok {
			return malformed("update requires a value")
		}
		return updateOperation{thing: thing, channel: channel, value: value}

	case "create":
		object, ok := obj["object"].(map[string]any)
		if !ok {
			return malformed("create requires an object")
		}
		rawPath, ok := obj["path"].([]any)
		if !ok {
			return malformed("create requires a path list")
		}
		path := make([]string, 0, len(rawPath))
		for _, p := range rawPath {
			s, ok := p.(string)
			if !ok {
				return malformed("path entries must be strings")
			}
			path = append(path, s)
		}
		return createOperation{object: object, path: path}

	case "delete":
		thing, ok := obj["thing"].(string)
		if !ok || thing == "" {
			return malformed("delete requires thing")
		}
		return deleteOperation{thing: thing}

	case "", "get":
		if v, ok := obj["get"]; ok {
			target, ok := v.(string)
			if !ok {
				return malformed("get target must be a string")
			}
			return getOperation{target: target}
		}
		if name == "get" {
			return malformed("get requires a target")
		}
	}
	return unknownOperation{name: name}
}

// parseManualPQ requires both p and q as integers, or neither.
func parseManualPQ(v any) (manualPQRequest, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return manualPQRequest{}, fmt.Errorf("%w: manualPQ must be an object", ErrMalformedMessage)
	}
	rawP, hasP := obj["p"]
	rawQ, hasQ := obj["q"]

	switch {
	case !hasP && !hasQ:
		return manualPQRequest{reset: true}, nil
	case hasP != hasQ:
		return manualPQRequest{}, fmt.Errorf("%w: manualPQ needs both p and q", ErrMalformedMessage)
	}

	p, ok := asInt64(rawP)
	if !ok {
		return manualPQRequest{}, fmt.Errorf("%w: p must be an integer, got %v", ErrMalformedMessage, rawP)
	}
	q, ok := asInt64(rawQ)
	if !ok {
		return manualPQRequest{}, fmt.Errorf("%w: q must be an integer, got %v", ErrMalformedMessage, rawQ)
	}
	return manualPQRequest{p: p, q: q}, nil
}

// asInt64 converts a decoded number holding a whole value.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		return floatToInt64(n)
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
