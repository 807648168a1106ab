package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// DeviceCamera opens a local video device (index or URL) through OpenCV.
type DeviceCamera struct {
	Device string
}

// Open starts capturing from the device. A device that cannot be opened counts as denied.
func (c DeviceCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return nil, fmt.Errorf("open video device %q: %w", c.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video device %q is not available", c.Device)
	}

	stream := &deviceStream{
		capture: capture,
		frame:   gocv.NewMat(),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	// Some drivers report 0x0 until the first frame arrives.
	if stream.width <= 0 || stream.height <= 0 {
		if capture.Read(&stream.frame) && !stream.frame.Empty() {
			stream.width, stream.height = stream.frame.Cols(), stream.frame.Rows()
		}
	}
	return stream, nil
}

type deviceStream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	width   int
	height  int
	closed  bool
}

var errStreamClosed = errors.New("camera stream closed")

func (s *deviceStream) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *deviceStream) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errStreamClosed
	}
	if ok := s.capture.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, errors.New("no frame read from device")
	}
	s.width, s.height = s.frame.Cols(), s.frame.Rows()
	return s.frame.ToImage()
}

func (s *deviceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.frame.Close(); err != nil {
		return err
	}
	return s.capture.Close()
}
