package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/example/sortify/internal/logging"
)

// Result is the outcome of one classification attempt. It is either Success or Failure.
type Result interface {
	isResult()
}

// Success carries the backend's verdict unmodified.
type Success struct {
	Label      string
	Confidence float64
	// FilePath is the server side copy of the upload, when the backend echoes one.
	FilePath string
}

// Failure carries the text to show and the error it came from.
type Failure struct {
	Message string
	Err     error
}

func (Success) isResult() {}
func (Failure) isResult() {}

// FailureFrom converts an error into a displayable Failure.
func FailureFrom(err error) Failure {
	return Failure{Message: logging.UserMessage(err), Err: err}
}

type predictResponse struct {
	Error      *string  `json:"error"`
	Prediction *string  `json:"prediction"`
	Confidence *float64 `json:"confidence"`
	FilePath   *string  `json:"file_path"`
}

var errNotJSON = errors.New("response is not JSON")

// DecodeResponse turns a /predict response body into a Success, or an error describing why not.
//
// The body must be {"error": string} or {"prediction": string, "confidence": number in [0,1]}
// with an optional "file_path". A non-JSON body yields a TransportError. A non-empty "error"
// yields a ServerError carrying that message, whatever else the body holds. Anything else
// that is not a valid prediction is a ProtocolError.
func DecodeResponse(submissionID string, body []byte) (Success, error) {
	const op = "classify.decode_response"

	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Success{}, logging.NewTransportError(op, submissionID, errNotJSON)
	}

	var resp predictResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return Success{}, logging.NewProtocolError(op, submissionID, err)
	}

	// A non-empty error wins over any other field; an empty one is ignored.
	if resp.Error != nil && *resp.Error != "" {
		return Success{}, logging.NewServerError(op, submissionID, *resp.Error)
	}

	switch {
	case resp.Prediction == nil:
		return Success{}, logging.NewProtocolError(op, submissionID, errors.New("missing prediction"))
	case *resp.Prediction == "":
		return Success{}, logging.NewProtocolError(op, submissionID, errors.New("empty prediction"))
	case resp.Confidence == nil:
		return Success{}, logging.NewProtocolError(op, submissionID, errors.New("missing confidence"))
	}

	confidence := *resp.Confidence
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Success{}, logging.NewProtocolError(op, submissionID, fmt.Errorf("confidence %v outside [0,1]", confidence))
	}

	success := Success{Label: *resp.Prediction, Confidence: confidence}
	if resp.FilePath != nil {
		success.FilePath = *resp.FilePath
	}
	return success, nil
}
