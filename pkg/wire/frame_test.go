package wire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := Envelope{
		Command:     CommandHeartbeat,
		ContentType: ContentEmpty,
		ID:          uuid.New(),
		Service:     "engine",
		Traceparent: "",
	}
	frames := Encode(env)
	require.Len(t, frames, 7)

	identity, decoded, err := Decode(frames)
	require.NoError(t, err)
	assert.Empty(t, identity)
	assert.Equal(t, env, decoded)
}

func TestDecodeWithIdentityPrefix(t *testing.T) {
	i1 := []byte("router-id-1")
	i2 := []byte("router-id-2")
	env := Heartbeat("engine")

	frames := append([][]byte{i1, i2}, Encode(env)...)
	identity, decoded, err := Decode(frames)
	require.NoError(t, err)
	require.Len(t, identity, 2)
	assert.Equal(t, i1, identity[0])
	assert.Equal(t, i2, identity[1])
	assert.Equal(t, env.Command, decoded.Command)
	assert.Equal(t, env.Service, decoded.Service)
}

func TestDecodeMagicNotFound(t *testing.T) {
	_, _, err := Decode([][]byte{[]byte("garbage")})
	assert.ErrorIs(t, err, ErrMagicNotFound)
}

func TestDecodeTooFewFrames(t *testing.T) {
	frames := Encode(Heartbeat("x"))[:5]
	frames = append([][]byte{Magic[:]}, frames[1:]...)
	_, _, err := Decode(frames)
	assert.ErrorIs(t, err, ErrTooFewFrames)
}

func TestDecodeUnknownCommand(t *testing.T) {
	env := Heartbeat("x")
	frames := Encode(env)
	frames[1] = u16be(99)
	_, _, err := Decode(frames)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDecodeUnknownContentType(t *testing.T) {
	env := Heartbeat("x")
	frames := Encode(env)
	frames[2] = u16be(99)
	_, _, err := Decode(frames)
	assert.ErrorIs(t, err, ErrUnknownContent)
}

func TestDecodeMalformedUUID(t *testing.T) {
	env := Heartbeat("x")
	frames := Encode(env)
	frames[3] = frames[3][:10]
	_, _, err := Decode(frames)
	assert.ErrorIs(t, err, ErrMalformedUUID)
}

func TestDecodeInvalidUTF8Service(t *testing.T) {
	env := Heartbeat("x")
	frames := Encode(env)
	frames[4] = []byte{0xff, 0xfe, 0xfd}
	_, _, err := Decode(frames)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestRequestReplyRoundTrip(t *testing.T) {
	id := uuid.New()
	body, err := DefaultCodec.Encode(map[string]string{"hello": "world"})
	require.NoError(t, err)

	req := Request("broker", id, body)
	frames := Encode(req)
	_, decoded, err := Decode(frames)
	require.NoError(t, err)
	assert.Equal(t, CommandRequest, decoded.Command)
	assert.Equal(t, id, decoded.ID)

	var out map[string]string
	require.NoError(t, DefaultCodec.Decode(decoded.Body, &out))
	assert.Equal(t, "world", out["hello"])

	reply := Reply("broker", id, body)
	assert.Equal(t, CommandReply, reply.Command)
	assert.Equal(t, id, reply.ID)
}

func TestReplyBinaryContentMismatch(t *testing.T) {
	env := ReplyBinary("broker", uuid.New(), []byte{1, 2, 3})
	_, err := ExtractBody(env, ContentStructured)
	assert.ErrorIs(t, err, ErrContentMismatch)

	body, err := ExtractBody(env, ContentRawBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, body)
}

func TestEncodeRoutedPreservesIdentity(t *testing.T) {
	identity := [][]byte{[]byte("r1")}
	env := Heartbeat("x")
	frames := EncodeRouted(identity, env)
	got, err := DecodeRouted(frames)
	require.NoError(t, err)
	assert.Equal(t, identity, got.Identity)
	assert.Equal(t, env.Service, got.Envelope.Service)
}
