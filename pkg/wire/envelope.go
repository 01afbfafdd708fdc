package wire

import (
	"github.com/google/uuid"
)

// Heartbeat builds a liveness envelope: empty body, fresh correlation id.
func Heartbeat(service string) Envelope {
	return Envelope{
		Command:     CommandHeartbeat,
		ContentType: ContentEmpty,
		ID:          uuid.New(),
		Service:     service,
	}
}

// Request builds a request envelope carrying an already-encoded structured
// body (see Codec.Encode). The caller supplies a fresh or reused id; Fresh
// Lazy Pirate retries mint a new id per attempt (spec.md §4.4).
func Request(service string, id uuid.UUID, body []byte) Envelope {
	return Envelope{
		Command:     CommandRequest,
		ContentType: ContentStructured,
		ID:          id,
		Service:     service,
		Body:        body,
	}
}

// Reply builds a structured-body reply envelope correlated to id.
func Reply(service string, id uuid.UUID, body []byte) Envelope {
	return Envelope{
		Command:     CommandReply,
		ContentType: ContentStructured,
		ID:          id,
		Service:     service,
		Body:        body,
	}
}

// ReplyBinary builds a raw-binary reply, used when the body is already a
// byte blob that needs no envelope-level transformation (e.g. forwarding a
// CAS blob).
func ReplyBinary(service string, id uuid.UUID, data []byte) Envelope {
	return Envelope{
		Command:     CommandReply,
		ContentType: ContentRawBinary,
		ID:          id,
		Service:     service,
		Body:        data,
	}
}

// Ready builds a Ready announcement. Capabilities is pre-encoded by the
// caller via Codec so Ready can carry either a Structured or Json body
// depending on debugging needs.
func Ready(service string, capabilities []byte, ct ContentType) Envelope {
	return Envelope{
		Command:     CommandReady,
		ContentType: ct,
		ID:          uuid.New(),
		Service:     service,
		Body:        capabilities,
	}
}

// Disconnect builds a graceful-shutdown announcement.
func Disconnect(service string) Envelope {
	return Envelope{
		Command:     CommandDisconnect,
		ContentType: ContentEmpty,
		ID:          uuid.New(),
		Service:     service,
	}
}

// ExtractBody returns Body if the envelope's ContentType matches want,
// otherwise ErrContentMismatch. This is the single place body-extraction
// mismatches are enforced, per spec.md §4.1 error conditions.
func ExtractBody(env Envelope, want ContentType) ([]byte, error) {
	if env.ContentType != want {
		return nil, ErrContentMismatch
	}
	return env.Body, nil
}
