package rankboard

import (
	"errors"

	"github.com/jpalmerr/rankboard/internal/feed"
)

// Decoder turns an HTTP response body into a snapshot batch.
//
// Decoders run inside a panic recovery boundary. A decoder that panics or
// returns an error causes the snapshot to be skipped; the board keeps its
// previous state until the next successful fetch.
type Decoder func(body []byte) ([]Record, error)

// JSONArrayDecoder decodes a body that is a bare JSON array of records.
//
// An empty array is a valid snapshot and empties the board. A body that is
// null, an object or malformed JSON is an error.
var JSONArrayDecoder Decoder = feed.DecodeArray

// JSONFieldDecoder returns a [Decoder] that reads the array of records at a
// dot-separated path.
//
// Example:
//
//	// For a response of {"data": {"sites": [{"name": "Google", ...}]}}
//	decoder := rankboard.JSONFieldDecoder("data.sites")
func JSONFieldDecoder(path string) Decoder {
	return Decoder(feed.FieldDecoder(path))
}

// FirstMatch returns a [Decoder] that tries each decoder in order and
// returns the first successful result.
//
// If every decoder fails, the errors are joined.
//
// Example:
//
//	decoder := rankboard.FirstMatch(
//	    rankboard.JSONFieldDecoder("sites"),
//	    rankboard.JSONArrayDecoder,
//	)
func FirstMatch(decoders ...Decoder) Decoder {
	return func(body []byte) ([]Record, error) {
		errs := make([]error, 0, len(decoders))
		for _, d := range decoders {
			records, err := d(body)
			if err == nil {
				return records, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil, errors.New("no decoders configured")
		}
		return nil, errors.Join(errs...)
	}
}

// DefaultDecoder accepts a bare array, or an object wrapping the array in
// a "data" or "entities" field.
var DefaultDecoder = FirstMatch(
	JSONArrayDecoder,
	JSONFieldDecoder("data"),
	JSONFieldDecoder("entities"),
)
