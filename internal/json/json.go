// Package json routes encoding through json-iterator in standard library
// compatible mode.
package json

import jsoniter "github.com/json-iterator/go"

var (
	// JSON is the jsoniter API used across the module.
	JSON = jsoniter.ConfigCompatibleWithStandardLibrary

	Marshal       = JSON.Marshal
	MarshalIndent = JSON.MarshalIndent
	Unmarshal     = JSON.Unmarshal
	NewDecoder    = JSON.NewDecoder
	NewEncoder    = JSON.NewEncoder
)

// RawMessage is a raw encoded JSON value.
type RawMessage = jsoniter.RawMessage
