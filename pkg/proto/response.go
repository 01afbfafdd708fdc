package proto

// ErrorKind classifies a ToolError for retry/propagation purposes
// (spec.md §7).
type ErrorKind string

// ErrorKind values.
const (
	ErrValidation ErrorKind = "validation"
	ErrNotFound   ErrorKind = "not_found"
	ErrService    ErrorKind = "service"
	ErrTimeout    ErrorKind = "timeout"
	ErrTransport  ErrorKind = "transport"
	ErrInternal   ErrorKind = "internal"
)

// ToolError is the structured failure payload carried by
// ResponseEnvelope.Error.
type ToolError struct {
	Kind    ErrorKind      `bson:"kind" json:"kind"`
	Message string         `bson:"message" json:"message"`
	Details map[string]any `bson:"details,omitempty" json:"details,omitempty"`
}

// Error implements the error interface so ToolError can flow through
// normal Go error handling (errors.As) at the edges of the dispatcher.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// NewToolError builds a ToolError with no structured details.
func NewToolError(kind ErrorKind, message string) *ToolError {
	return &ToolError{Kind: kind, Message: message}
}

// ResponseKind discriminates the ResponseEnvelope union.
type ResponseKind string

// ResponseKind values.
const (
	ResponseSuccess     ResponseKind = "success"
	ResponseJobStarted  ResponseKind = "job_started"
	ResponseAck         ResponseKind = "ack"
	ResponseError       ResponseKind = "error"
)

// ResponseEnvelope is the tagged union every dispatch call ultimately
// returns (spec.md §3 "Typed Request / Response"). Exactly one of Response,
// JobStarted, AckMessage, or Err is meaningful, selected by Kind.
type ResponseEnvelope struct {
	Kind ResponseKind `bson:"kind" json:"kind"`

	// Response carries the Success payload; nil unless Kind == ResponseSuccess.
	Response any `bson:"response,omitempty" json:"response,omitempty"`

	// JobStarted carries job-creation metadata; set iff Kind == ResponseJobStarted.
	JobStarted *JobStartedInfo `bson:"job_started,omitempty" json:"job_started,omitempty"`

	// AckMessage carries a short human-readable confirmation; set iff Kind == ResponseAck.
	AckMessage string `bson:"ack_message,omitempty" json:"ack_message,omitempty"`

	// Err carries failure details; set iff Kind == ResponseError.
	Err *ToolError `bson:"err,omitempty" json:"err,omitempty"`
}

// JobStartedInfo is the payload of a JobStarted response.
type JobStartedInfo struct {
	JobID  string `bson:"job_id" json:"job_id"`
	Tool   ToolName `bson:"tool" json:"tool"`
	Timing Timing `bson:"timing" json:"timing"`
}

// Success builds a ResponseSuccess envelope.
func Success(response any) ResponseEnvelope {
	return ResponseEnvelope{Kind: ResponseSuccess, Response: response}
}

// JobStartedResponse builds a ResponseJobStarted envelope.
func JobStartedResponse(jobID string, tool ToolName, timing Timing) ResponseEnvelope {
	return ResponseEnvelope{
		Kind:       ResponseJobStarted,
		JobStarted: &JobStartedInfo{JobID: jobID, Tool: tool, Timing: timing},
	}
}

// Ack builds a ResponseAck envelope.
func Ack(message string) ResponseEnvelope {
	return ResponseEnvelope{Kind: ResponseAck, AckMessage: message}
}

// ErrorResponse builds a ResponseError envelope.
func ErrorResponse(err *ToolError) ResponseEnvelope {
	return ResponseEnvelope{Kind: ResponseError, Err: err}
}

// UnknownResponseError builds the ResponseError envelope for a
// ResponseKind that is not one of the four known values. The reply
// decoding in pkg/enginepeer and pkg/workerpeer does not call it: a reply
// with an unknown Kind is returned as decoded, and its Kind is not checked.
func UnknownResponseError(kind string) ResponseEnvelope {
	return ErrorResponse(NewToolError(ErrInternal, "unknown response kind: "+kind))
}
