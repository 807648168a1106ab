// Package classify submits upload payloads to the /predict endpoint and turns the answer
// into a Result.
package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/sortify/internal/encoder"
	"github.com/example/sortify/internal/logging"
)

// PredictPath is the classification endpoint relative to the backend base URL.
const PredictPath = "/predict"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("a submission is already in progress")

// State is the controller's position in Idle → Submitting → Succeeded|Failed → Idle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Presenter receives every Result the controller produces.
type Presenter interface {
	Present(Result)
}

// Controller performs one request per submission and allows only one submission at a time.
type Controller struct {
	predictURL string
	client     *http.Client
	presenter  Presenter
	logger     *zap.Logger
	newID      func() string

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// NewController builds a controller posting to baseURL + "/predict".
func NewController(baseURL string, client *http.Client, presenter Presenter, logger *zap.Logger) (*Controller, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", baseURL)
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &Controller{
		predictURL: base.JoinPath(PredictPath).String(),
		client:     client,
		presenter:  presenter,
		logger:     logger.Named("submission"),
		newID:      uuid.NewString,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel aborts the in-flight submission, if any. It ends as a transport failure.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Submit posts payload once, presents the outcome and returns it. The returned error is the
// cause of a Failure. When another submission is in flight Submit returns ErrBusy without
// sending anything or touching the presenter.
func (c *Controller) Submit(ctx context.Context, payload encoder.Payload) (Result, error) {
	submitCtx, submissionID, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	opLogger := logging.WithOperation(c.logger, "submission.submit", submissionID)
	start := time.Now()

	var result Result
	success, err := c.roundTrip(submitCtx, submissionID, payload)
	if err != nil {
		opLogger.Warn("submission failed",
			zap.Error(err),
			zap.Stringer("kind", logging.KindOf(err)),
			zap.Duration("elapsed", time.Since(start)))
		result = FailureFrom(err)
	} else {
		opLogger.Info("submission succeeded",
			zap.String("prediction", success.Label),
			zap.Float64("confidence", success.Confidence),
			zap.Duration("elapsed", time.Since(start)))
		result = success
	}

	c.finish(result)
	return result, err
}

func (c *Controller) begin(ctx context.Context) (context.Context, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return nil, "", ErrBusy
	}
	submitCtx, cancel := context.WithCancel(ctx)
	c.state = StateSubmitting
	c.cancel = cancel
	return submitCtx, c.newID(), nil
}

func (c *Controller) finish(result Result) {
	c.mu.Lock()
	if _, ok := result.(Success); ok {
		c.state = StateSucceeded
	} else {
		c.state = StateFailed
	}
	c.mu.Unlock()

	if c.presenter != nil {
		c.presenter.Present(result)
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateIdle
	c.mu.Unlock()
}

func (c *Controller) roundTrip(ctx context.Context, submissionID string, payload encoder.Payload) (Success, error) {
	const op = "submission.submit"

	body, contentType, err := payload.Multipart()
	if err != nil {
		return Success{}, logging.NewTransportError(op, submissionID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, bytes.NewReader(body))
	if err != nil {
		return Success{}, logging.NewTransportError(op, submissionID, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", submissionID)

	c.logger.Debug("posting payload",
		zap.String("submission_id", submissionID),
		zap.String("url", c.predictURL),
		zap.String("filename", payload.Filename),
		zap.Int("bytes", payload.Len()))

	resp, err := c.client.Do(req)
	if err != nil {
		return Success{}, logging.NewTransportError(op, submissionID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Success{}, logging.NewTransportError(op, submissionID, err)
	}

	c.logger.Debug("response received",
		zap.String("submission_id", submissionID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)))

	return DecodeResponse(submissionID, data)
}
