package logging

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindPermission means camera access was denied.
	KindPermission Kind = iota + 1
	// KindInput means there was nothing to submit (no file, no frame).
	KindInput
	// KindTransport means the request failed or the response was not JSON.
	KindTransport
	// KindServer means the backend answered with an error field.
	KindServer
	// KindProtocol means the backend answered JSON that fits neither response shape.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindInput:
		return "input"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// OperationError annotates an error with its kind and operation metadata.
type OperationError struct {
	Kind         Kind
	Operation    string
	SubmissionID string
	// Message is the user facing text. Server and input errors carry it, the rest
	// derive it from Err.
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	text := e.Message
	if e.Err != nil {
		if text == "" {
			text = e.Err.Error()
		} else {
			text = fmt.Sprintf("%s: %v", text, e.Err)
		}
	}
	if e.SubmissionID != "" {
		return fmt.Sprintf("%s (submission_id=%s): %s", e.Operation, e.SubmissionID, text)
	}
	return fmt.Sprintf("%s: %s", e.Operation, text)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the text shown to the user for this failure.
func (e *OperationError) UserMessage() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindTransport:
		return "Upload failed: " + causeText(e.Err)
	case KindProtocol:
		return "Unexpected response: " + causeText(e.Err)
	case KindPermission:
		return "Camera access denied: " + causeText(e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return causeText(e.Err)
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// NewPermissionError reports a denied camera request.
func NewPermissionError(operation string, err error) error {
	return &OperationError{Kind: KindPermission, Operation: operation, Err: err}
}

// NewInputError reports that the action had nothing to submit.
func NewInputError(operation, message string) error {
	return &OperationError{Kind: KindInput, Operation: operation, Message: message}
}

// NewTransportError reports a failed round trip.
func NewTransportError(operation, submissionID string, err error) error {
	return &OperationError{Kind: KindTransport, Operation: operation, SubmissionID: submissionID, Err: err}
}

// NewServerError reports a backend supplied error message.
func NewServerError(operation, submissionID, message string) error {
	return &OperationError{Kind: KindServer, Operation: operation, SubmissionID: submissionID, Message: message}
}

// NewProtocolError reports a response that matches no known shape.
func NewProtocolError(operation, submissionID string, err error) error {
	return &OperationError{Kind: KindProtocol, Operation: operation, SubmissionID: submissionID, Err: err}
}

// KindOf returns the kind of the first OperationError in err's chain, or 0.
func KindOf(err error) Kind {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return 0
}

// UserMessage returns the display text for any error.
func UserMessage(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.UserMessage()
	}
	return causeText(err)
}
