package wire

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Codec encodes/decodes the body of a Structured or Json envelope. Two
// implementations are provided: BSON (schema-evolvable binary, used for
// Structured bodies — new optional fields can appear on either side
// without breaking decode) and plain JSON (used for ContentJSON, mainly to
// let operators eyeball traffic with a packet sniffer).
//
// Both codecs operate on the same Go value so dispatchers can switch
// encodings per-connection without touching call sites (spec.md §4.1: "a
// parallel Json option for debugging").
type Codec interface {
	ContentType() ContentType
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// BSONCodec implements Codec for ContentStructured bodies.
type BSONCodec struct{}

func (BSONCodec) ContentType() ContentType { return ContentStructured }

func (BSONCodec) Encode(v any) ([]byte, error) { return bson.Marshal(v) }

func (BSONCodec) Decode(data []byte, v any) error { return bson.Unmarshal(data, v) }

// JSONCodec implements Codec for ContentJSON bodies.
type JSONCodec struct{}

func (JSONCodec) ContentType() ContentType { return ContentJSON }

func (JSONCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// DefaultCodec is BSON, matching spec.md's preference for a schema-evolvable
// binary format as the primary wire encoding.
var DefaultCodec Codec = BSONCodec{}

// CodecFor returns the codec appropriate for a decoded envelope's
// ContentType, or nil for ContentEmpty/ContentRawBinary bodies which are not
// decoded through a Codec at all.
func CodecFor(ct ContentType) Codec {
	switch ct {
	case ContentStructured:
		return BSONCodec{}
	case ContentJSON:
		return JSONCodec{}
	default:
		return nil
	}
}
