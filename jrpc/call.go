// Package jrpc provides just enough JSON-RPC parsing to label authrpc
// traffic in logs and metrics. Request bodies are opaque to the proxy
// otherwise.
package jrpc

import (
	"encoding/json"
	"errors"
	"strconv"

	gojson "github.com/goccy/go-json"
)

type Call interface {
	GetID() string
	GetMethod() string
	GetParams() []json.RawMessage
}

// Unmarshal tolerates both numeric and string request ids, which different
// consensus clients disagree about.
func Unmarshal(body []byte) (Call, error) {
	callUint64 := callWithIdAsUint64{}
	errUint64 := gojson.Unmarshal(body, &callUint64)
	if errUint64 == nil {
		return callUint64, nil
	}

	callString := callWithIdAsString{}
	errString := gojson.Unmarshal(body, &callString)
	if errString == nil {
		return callString, nil
	}

	return nil, errors.Join(errUint64, errString)
}

type callWithIdAsUint64 struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

func (call callWithIdAsUint64) GetID() string {
	return strconv.FormatUint(call.ID, 10)
}

func (call callWithIdAsUint64) GetMethod() string {
	return call.Method
}

func (call callWithIdAsUint64) GetParams() []json.RawMessage {
	return call.Params
}

type callWithIdAsString struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

func (call callWithIdAsString) GetID() string {
	return `"` + call.ID + `"`
}

func (call callWithIdAsString) GetMethod() string {
	return call.Method
}

func (call callWithIdAsString) GetParams() []json.RawMessage {
	return call.Params
}
