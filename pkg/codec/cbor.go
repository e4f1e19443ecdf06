// Package codec encodes data objects as CBOR.
//
// Every object becomes an envelope holding its class, identity, attached
// fields and a class specific body. Objects reachable more than once are
// written once; later occurrences are references to the identity, so
// sharing survives a round trip. Write and Read frame an encoded object
// with a header and optional block compression.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// object always produces the same bytes.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// dtype.Type serializes as its name.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) of an
// encoded object.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
