// Package json provides JSON serialization for lakeflow on top of goccy/go-json,
// with pooled buffers for the array documents written to the object store.
package json

import (
	"bytes"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is an undecoded JSON value
type RawMessage = gojson.RawMessage

// Number is a JSON number literal kept as text
type Number = gojson.Number

// Indent is the indentation used for every document written to a zone
const Indent = "  "

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// EncodeDocument encodes v as an indented JSON document without HTML escaping.
// The returned slice is owned by the caller.
func EncodeDocument(v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	// Remove trailing newline added by Encode
	out := bytes.TrimRight(buf.Bytes(), "\n")

	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}
