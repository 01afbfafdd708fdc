// Package wire implements the seven-frame envelope that every hootenanny
// daemon speaks on its sockets: a fixed-width routing header followed by an
// opaque, content-typed body. The codec never interprets the body itself —
// that is the job of pkg/proto — so a broker can route and heartbeat peers
// without ever deserializing payloads.
package wire

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Command identifies the purpose of an envelope on the wire.
type Command uint16

// Command values, stable across the whole fleet.
const (
	CommandReady       Command = 1
	CommandRequest     Command = 2
	CommandReply       Command = 3
	CommandHeartbeat   Command = 4
	CommandDisconnect  Command = 5
)

func (c Command) String() string {
	switch c {
	case CommandReady:
		return "Ready"
	case CommandRequest:
		return "Request"
	case CommandReply:
		return "Reply"
	case CommandHeartbeat:
		return "Heartbeat"
	case CommandDisconnect:
		return "Disconnect"
	default:
		return fmt.Sprintf("Command(%d)", uint16(c))
	}
}

// ContentType identifies how Envelope.Body is encoded.
type ContentType uint16

// ContentType values.
const (
	ContentEmpty      ContentType = 0
	ContentStructured ContentType = 1
	ContentRawBinary  ContentType = 2
	ContentJSON       ContentType = 3
)

func (c ContentType) String() string {
	switch c {
	case ContentEmpty:
		return "Empty"
	case ContentStructured:
		return "Structured"
	case ContentRawBinary:
		return "RawBinary"
	case ContentJSON:
		return "Json"
	default:
		return fmt.Sprintf("ContentType(%d)", uint16(c))
	}
}

// Magic is the protocol marker frame, scanned for at the head of the
// envelope proper (after any router-prepended identity frames).
var Magic = [6]byte{'H', 'O', 'O', 'T', '0', '1'}

// frameCount is the number of data frames that make up an envelope,
// starting at the magic frame.
const frameCount = 7

// Decode errors. Each names a specific malformed-wire condition so callers
// (and tests) can distinguish them with errors.Is.
var (
	ErrMagicNotFound     = errors.New("wire: magic frame not found")
	ErrTooFewFrames      = errors.New("wire: fewer than 7 frames after magic")
	ErrBadFrameWidth     = errors.New("wire: frame has unexpected width")
	ErrUnknownCommand    = errors.New("wire: unknown command code")
	ErrUnknownContent    = errors.New("wire: unknown content-type code")
	ErrMalformedUUID     = errors.New("wire: malformed correlation id")
	ErrInvalidUTF8       = errors.New("wire: frame is not valid UTF-8")
	ErrContentMismatch   = errors.New("wire: content-type does not match requested body extraction")
)

// Envelope is the decoded, routable unit of the wire protocol (spec.md
// §4.1). Identity frames that a router prepends are not part of the
// Envelope itself; Decode returns them separately so replies can echo them
// back verbatim.
type Envelope struct {
	Command     Command
	ContentType ContentType
	ID          uuid.UUID
	Service     string
	Traceparent string
	Body        []byte
}

// Encode renders an Envelope into the seven wire frames. No identity
// prefix is added; callers that sit behind a router prepend it themselves
// before sending.
func Encode(e Envelope) [][]byte {
	frames := make([][]byte, frameCount)
	frames[0] = append([]byte(nil), Magic[:]...)
	frames[1] = u16be(uint16(e.Command))
	frames[2] = u16be(uint16(e.ContentType))
	id := e.ID
	idBytes := id[:]
	frames[3] = append([]byte(nil), idBytes...)
	frames[4] = []byte(e.Service)
	frames[5] = []byte(e.Traceparent)
	frames[6] = append([]byte(nil), e.Body...)
	return frames
}

// Decode scans frames for the magic marker, tolerating an arbitrary
// identity prefix (as prepended by a ROUTER-style socket), and parses the
// seven frames that follow it into an Envelope. It returns the identity
// frames that preceded the magic marker so the caller can echo them back
// on a reply.
func Decode(frames [][]byte) (identity [][]byte, env Envelope, err error) {
	magicIdx := -1
	for i, f := range frames {
		if len(f) == len(Magic) && [6]byte(f) == Magic {
			magicIdx = i
			break
		}
	}
	if magicIdx == -1 {
		return nil, Envelope{}, ErrMagicNotFound
	}
	body := frames[magicIdx:]
	if len(body) < frameCount {
		return nil, Envelope{}, ErrTooFewFrames
	}

	if len(body[1]) != 2 || len(body[2]) != 2 {
		return nil, Envelope{}, ErrBadFrameWidth
	}
	cmd := Command(be16(body[1]))
	switch cmd {
	case CommandReady, CommandRequest, CommandReply, CommandHeartbeat, CommandDisconnect:
	default:
		return nil, Envelope{}, fmt.Errorf("%w: %d", ErrUnknownCommand, uint16(cmd))
	}
	ct := ContentType(be16(body[2]))
	switch ct {
	case ContentEmpty, ContentStructured, ContentRawBinary, ContentJSON:
	default:
		return nil, Envelope{}, fmt.Errorf("%w: %d", ErrUnknownContent, uint16(ct))
	}

	if len(body[3]) != 16 {
		return nil, Envelope{}, ErrMalformedUUID
	}
	id, uerr := uuid.FromBytes(body[3])
	if uerr != nil {
		return nil, Envelope{}, fmt.Errorf("%w: %v", ErrMalformedUUID, uerr)
	}

	if !utf8.Valid(body[4]) {
		return nil, Envelope{}, fmt.Errorf("%w: service frame", ErrInvalidUTF8)
	}
	if !utf8.Valid(body[5]) {
		return nil, Envelope{}, fmt.Errorf("%w: traceparent frame", ErrInvalidUTF8)
	}

	env = Envelope{
		Command:     cmd,
		ContentType: ct,
		ID:          id,
		Service:     string(body[4]),
		Traceparent: string(body[5]),
		Body:        append([]byte(nil), body[6]...),
	}
	if magicIdx > 0 {
		identity = append([][]byte(nil), frames[:magicIdx]...)
	}
	return identity, env, nil
}

func u16be(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
