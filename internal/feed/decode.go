package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// Decoder turns a response body into a snapshot batch.
type Decoder func(body []byte) ([]reconcile.Record, error)

// DecodeArray decodes a body that is a bare JSON array of records.
func DecodeArray(body []byte) ([]reconcile.Record, error) {
	var records []reconcile.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		return nil, fmt.Errorf("decode records: body is not an array")
	}
	return records, nil
}

// FieldDecoder returns a [Decoder] reading the array of records found at a
// dot-separated path, e.g. "data.entities".
func FieldDecoder(path string) Decoder {
	parts := strings.Split(path, ".")

	return func(body []byte) ([]reconcile.Record, error) {
		var current json.RawMessage = body
		for _, part := range parts {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(current, &obj); err != nil {
				return nil, fmt.Errorf("decode %q: %w", path, err)
			}
			next, ok := obj[part]
			if !ok {
				return nil, fmt.Errorf("decode %q: field %q not found", path, part)
			}
			current = next
		}
		return DecodeArray(current)
	}
}
