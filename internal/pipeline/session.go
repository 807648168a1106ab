// Package pipeline runs one user action end to end: capture, encode, submit, present.
package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/sortify/internal/capture"
	"github.com/example/sortify/internal/classify"
	"github.com/example/sortify/internal/encoder"
	"github.com/example/sortify/internal/logging"
	"github.com/example/sortify/internal/presenter"
)

// Submitter sends a payload and presents the outcome.
type Submitter interface {
	Submit(ctx context.Context, payload encoder.Payload) (classify.Result, error)
	State() classify.State
	Cancel() bool
}

// Session wires the capture source, encoder, submission controller and presenter.
type Session struct {
	source    *capture.Source
	submitter Submitter
	presenter *presenter.Presenter
	logger    *zap.Logger
}

// NewSession builds a Session. The presenter must be the one the submitter presents to.
func NewSession(source *capture.Source, submitter Submitter, p *presenter.Presenter, logger *zap.Logger) *Session {
	return &Session{source: source, submitter: submitter, presenter: p, logger: logger.Named("pipeline")}
}

// EnableCamera asks for the camera. A denial is raised as an alert and returned; the upload
// path keeps working.
func (s *Session) EnableCamera(ctx context.Context) error {
	if err := s.source.EnableCamera(ctx); err != nil {
		s.presenter.Alert(logging.UserMessage(err))
		return err
	}
	return nil
}

// DisableCamera releases the camera.
func (s *Session) DisableCamera() {
	s.source.DisableCamera()
}

// CameraEnabled reports whether a camera stream is active.
func (s *Session) CameraEnabled() bool {
	return s.source.CameraEnabled()
}

// Capture grabs the current camera frame and classifies it.
func (s *Session) Capture(ctx context.Context) (classify.Result, error) {
	if err := s.checkIdle(); err != nil {
		return nil, err
	}
	img, err := s.source.CaptureImage()
	if err != nil {
		return s.reject("pipeline.capture", err), err
	}
	return s.submit(ctx, "pipeline.capture", img)
}

// Upload classifies the first of the chosen files.
func (s *Session) Upload(ctx context.Context, files []capture.File) (classify.Result, error) {
	if err := s.checkIdle(); err != nil {
		return nil, err
	}
	img, err := s.source.SelectFile(files)
	if err != nil {
		return s.reject("pipeline.upload", err), err
	}
	return s.submit(ctx, "pipeline.upload", img)
}

// Cancel aborts the in-flight submission.
func (s *Session) Cancel() bool {
	return s.submitter.Cancel()
}

// State reports the submission controller state.
func (s *Session) State() classify.State {
	return s.submitter.State()
}

// checkIdle rejects an action early while a submission is running, before the preview is
// overwritten. Submit enforces the same gate atomically.
func (s *Session) checkIdle() error {
	if s.submitter.State() != classify.StateIdle {
		return classify.ErrBusy
	}
	return nil
}

func (s *Session) submit(ctx context.Context, operation string, img capture.Image) (classify.Result, error) {
	payload, err := encoder.Encode(img)
	if err != nil {
		inputErr := logging.NewInputError(operation, err.Error())
		return s.reject(operation, inputErr), inputErr
	}

	result, err := s.submitter.Submit(ctx, payload)
	if errors.Is(err, classify.ErrBusy) {
		logging.WithOperation(s.logger, operation, "").Info("action rejected, submission in flight")
	}
	return result, err
}

// reject presents a failure that happened before any network call.
func (s *Session) reject(operation string, err error) classify.Result {
	logging.WithOperation(s.logger, operation, "").Info("action rejected", zap.Error(err))
	failure := classify.FailureFrom(err)
	s.presenter.Present(failure)
	return failure
}
