// Package capture acquires images from a live camera stream or from a chosen file.
package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"sync"

	"go.uber.org/zap"

	"github.com/example/sortify/internal/logging"
)

// Input error messages shown to the user.
const (
	MsgSelectImage     = "Please select an image"
	MsgEmptyFile       = "Empty file"
	MsgCameraDisabled  = "Camera is not enabled"
	MsgNoFrame         = "No camera frame available"
	MsgFrameEncodeFail = "Could not encode camera frame"
)

// Camera grants access to a live video stream. An error from Open is a denial.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live video source.
type Stream interface {
	// Size returns the natural frame dimensions, zero until known.
	Size() (width, height int)
	// Read returns the current frame.
	Read() (image.Image, error)
	Close() error
}

// Surface is the preview region. It shows either the live stream or the last acquired image.
type Surface interface {
	ShowStream(Stream)
	ShowImage(Image)
}

// File is one user chosen file.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Source produces exactly one Image per user action.
type Source struct {
	camera  Camera
	preview Surface
	logger  *zap.Logger

	// switchMu serialises enabling and disabling so only one stream is ever open.
	switchMu sync.Mutex

	mu     sync.Mutex
	stream Stream
}

// NewSource wires a Source to its camera and preview surface. camera may be nil when the
// kiosk has no camera; EnableCamera then always reports a denial.
func NewSource(camera Camera, preview Surface, logger *zap.Logger) *Source {
	return &Source{camera: camera, preview: preview, logger: logger.Named("capture")}
}

var errNoCamera = errors.New("no camera configured")

// EnableCamera requests the camera and attaches the stream to the preview. A denial is
// returned as a permission error and leaves no stream active.
func (s *Source) EnableCamera(ctx context.Context) error {
	const op = "capture.enable_camera"
	opLogger := logging.WithOperation(s.logger, op, "")

	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.closeStream()

	if s.camera == nil {
		opLogger.Warn("camera access denied", zap.Error(errNoCamera))
		return logging.NewPermissionError(op, errNoCamera)
	}

	stream, err := s.camera.Open(ctx)
	if err != nil {
		opLogger.Warn("camera access denied", zap.Error(err))
		return logging.NewPermissionError(op, err)
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	if s.preview != nil {
		s.preview.ShowStream(stream)
	}
	w, h := stream.Size()
	opLogger.Info("camera enabled", zap.Int("width", w), zap.Int("height", h))
	return nil
}

// DisableCamera releases the active stream, if any.
func (s *Source) DisableCamera() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	s.closeStream()
}

// CameraEnabled reports whether a stream is active.
func (s *Source) CameraEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

func (s *Source) closeStream() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return
	}
	if s.preview != nil {
		s.preview.ShowStream(nil)
	}
	if err := stream.Close(); err != nil {
		s.logger.Warn("failed to close camera stream", zap.Error(err))
	}
}

// CaptureImage draws the current frame into a raster of the stream's natural size and
// encodes it as PNG.
func (s *Source) CaptureImage() (Image, error) {
	const op = "capture.capture_image"

	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return Image{}, logging.NewInputError(op, MsgCameraDisabled)
	}

	width, height := stream.Size()
	if width <= 0 || height <= 0 {
		return Image{}, logging.NewInputError(op, MsgNoFrame)
	}

	frame, err := stream.Read()
	if err != nil || frame == nil {
		logging.WithOperation(s.logger, op, "").Warn("camera frame unavailable", zap.Error(err))
		return Image{}, logging.NewInputError(op, MsgNoFrame)
	}

	raster := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(raster, raster.Bounds(), frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		logging.WithOperation(s.logger, op, "").Error("png encode failed", zap.Error(err))
		return Image{}, logging.NewInputError(op, MsgFrameEncodeFail)
	}

	img := NewCameraImage(buf.Bytes())
	if s.preview != nil {
		s.preview.ShowImage(img)
	}
	return img, nil
}

// SelectFile turns the user's selection into an Image. Only the first file is used.
func (s *Source) SelectFile(files []File) (Image, error) {
	const op = "capture.select_file"

	if len(files) == 0 {
		return Image{}, logging.NewInputError(op, MsgSelectImage)
	}
	file := files[0]
	if len(file.Data) == 0 {
		return Image{}, logging.NewInputError(op, MsgEmptyFile)
	}

	img := NewUploadImage(file.Name, file.MIMEType, file.Data)
	if s.preview != nil {
		s.preview.ShowImage(img)
	}
	return img, nil
}
