package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/sortify/internal/logging"
)

type stubStream struct {
	width, height int
	frame         image.Image
	readErr       error
	closed        int
}

func (s *stubStream) Size() (int, int) { return s.width, s.height }

func (s *stubStream) Read() (image.Image, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.frame, nil
}

func (s *stubStream) Close() error {
	s.closed++
	return nil
}

type stubCamera struct {
	stream *stubStream
	err    error
	opens  int
}

func (c *stubCamera) Open(ctx context.Context) (Stream, error) {
	c.opens++
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

type recordingSurface struct {
	streams []Stream
	images  []Image
}

func (r *recordingSurface) ShowStream(s Stream) { r.streams = append(r.streams, s) }
func (r *recordingSurface) ShowImage(img Image) { r.images = append(r.images, img) }

func solidFrame(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCaptureBeforeEnableIsInputError(t *testing.T) {
	src := NewSource(&stubCamera{}, &recordingSurface{}, zap.NewNop())

	_, err := src.CaptureImage()
	if logging.KindOf(err) != logging.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}
	if logging.UserMessage(err) != MsgCameraDisabled {
		t.Fatalf("unexpected message %q", logging.UserMessage(err))
	}
}

func TestEnableCameraDenied(t *testing.T) {
	surface := &recordingSurface{}
	src := NewSource(&stubCamera{err: errors.New("permission denied")}, surface, zap.NewNop())

	err := src.EnableCamera(context.Background())
	if logging.KindOf(err) != logging.KindPermission {
		t.Fatalf("expected permission error, got %v", err)
	}
	if src.CameraEnabled() {
		t.Fatal("expected no active stream after denial")
	}
	if len(surface.streams) != 0 {
		t.Fatal("expected preview untouched after denial")
	}
}

func TestEnableCameraWithoutDevice(t *testing.T) {
	src := NewSource(nil, nil, zap.NewNop())
	if err := src.EnableCamera(context.Background()); logging.KindOf(err) != logging.KindPermission {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestCaptureProducesPNGOfStreamSize(t *testing.T) {
	stream := &stubStream{width: 6, height: 4, frame: solidFrame(6, 4, color.NRGBA{R: 10, G: 200, B: 30, A: 255})}
	surface := &recordingSurface{}
	src := NewSource(&stubCamera{stream: stream}, surface, zap.NewNop())

	if err := src.EnableCamera(context.Background()); err != nil {
		t.Fatalf("enable camera: %v", err)
	}
	if len(surface.streams) != 1 || surface.streams[0] != stream {
		t.Fatal("expected stream attached to preview")
	}

	img, err := src.CaptureImage()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if img.Origin() != OriginCamera || img.MIMEType() != "image/png" || img.Filename() != "capture.png" {
		t.Fatalf("unexpected image metadata: %v %q %q", img.Origin(), img.MIMEType(), img.Filename())
	}

	decoded, err := png.Decode(bytes.NewReader(img.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if decoded.Bounds().Dx() != 6 || decoded.Bounds().Dy() != 4 {
		t.Fatalf("unexpected raster size %v", decoded.Bounds())
	}
	r, g, b, _ := decoded.At(3, 2).RGBA()
	if r>>8 != 10 || g>>8 != 200 || b>>8 != 30 {
		t.Fatalf("unexpected pixel %d %d %d", r>>8, g>>8, b>>8)
	}
	if len(surface.images) != 1 {
		t.Fatalf("expected captured image on preview, got %d", len(surface.images))
	}
}

func TestCaptureRequiresKnownDimensions(t *testing.T) {
	stream := &stubStream{frame: solidFrame(2, 2, color.Black)}
	src := NewSource(&stubCamera{stream: stream}, nil, zap.NewNop())
	if err := src.EnableCamera(context.Background()); err != nil {
		t.Fatalf("enable camera: %v", err)
	}

	_, err := src.CaptureImage()
	if logging.KindOf(err) != logging.KindInput || logging.UserMessage(err) != MsgNoFrame {
		t.Fatalf("expected no-frame input error, got %v", err)
	}
}

func TestCaptureReadFailureIsInputError(t *testing.T) {
	stream := &stubStream{width: 2, height: 2, readErr: errors.New("device unplugged")}
	src := NewSource(&stubCamera{stream: stream}, nil, zap.NewNop())
	if err := src.EnableCamera(context.Background()); err != nil {
		t.Fatalf("enable camera: %v", err)
	}
	if _, err := src.CaptureImage(); logging.KindOf(err) != logging.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestReEnableClosesPreviousStream(t *testing.T) {
	stream := &stubStream{width: 2, height: 2, frame: solidFrame(2, 2, color.White)}
	camera := &stubCamera{stream: stream}
	src := NewSource(camera, nil, zap.NewNop())

	for i := 0; i < 2; i++ {
		if err := src.EnableCamera(context.Background()); err != nil {
			t.Fatalf("enable camera: %v", err)
		}
	}
	if stream.closed != 1 {
		t.Fatalf("expected previous stream closed once, got %d", stream.closed)
	}

	src.DisableCamera()
	if src.CameraEnabled() || stream.closed != 2 {
		t.Fatalf("expected stream released, closed=%d", stream.closed)
	}
}

func TestSelectFile(t *testing.T) {
	surface := &recordingSurface{}
	src := NewSource(nil, surface, zap.NewNop())

	_, err := src.SelectFile(nil)
	if logging.KindOf(err) != logging.KindInput || logging.UserMessage(err) != "Please select an image" {
		t.Fatalf("expected select-image input error, got %v", err)
	}

	_, err = src.SelectFile([]File{{Name: "empty.png"}})
	if logging.UserMessage(err) != MsgEmptyFile {
		t.Fatalf("expected empty-file input error, got %v", err)
	}

	data := []byte("GIF89a-not-really")
	img, err := src.SelectFile([]File{
		{Name: "can.gif", MIMEType: "image/gif", Data: data},
		{Name: "ignored.png", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("select file: %v", err)
	}
	if img.Origin() != OriginUpload || img.Filename() != "can.gif" || img.MIMEType() != "image/gif" {
		t.Fatalf("unexpected image metadata: %v %q %q", img.Origin(), img.Filename(), img.MIMEType())
	}
	if !bytes.Equal(img.Bytes(), data) {
		t.Fatal("file bytes were modified")
	}
	data[0] = 'X'
	if img.Bytes()[0] != 'G' {
		t.Fatal("image shares memory with the caller's buffer")
	}
	if len(surface.images) != 1 {
		t.Fatalf("expected upload on preview, got %d", len(surface.images))
	}
}

type countingStream struct {
	stubStream
	mu     *sync.Mutex
	closed *int
}

func (s *countingStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.closed++
	return nil
}

// gatedCamera blocks every Open until release is closed.
type gatedCamera struct {
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	opened int
	closed int
	inside int
	peak   int
}

func (c *gatedCamera) Open(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	c.inside++
	if c.inside > c.peak {
		c.peak = c.inside
	}
	c.mu.Unlock()

	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.release

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inside--
	c.opened++
	return &countingStream{stubStream: stubStream{width: 2, height: 2}, mu: &c.mu, closed: &c.closed}, nil
}

func TestConcurrentEnableLeavesOneStreamOpen(t *testing.T) {
	camera := &gatedCamera{entered: make(chan struct{}, 1), release: make(chan struct{})}
	src := NewSource(camera, nil, zap.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- src.EnableCamera(context.Background())
		}()
	}

	select {
	case <-camera.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("camera was never opened")
	}
	time.Sleep(20 * time.Millisecond)
	close(camera.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("enable camera: %v", err)
		}
	}

	camera.mu.Lock()
	opened, closed, peak := camera.opened, camera.closed, camera.peak
	camera.mu.Unlock()
	if peak != 1 {
		t.Fatalf("expected opens to be serialised, saw %d at once", peak)
	}
	if opened != 2 || closed != 1 {
		t.Fatalf("expected exactly one stream open, opened=%d closed=%d", opened, closed)
	}

	src.DisableCamera()
	camera.mu.Lock()
	defer camera.mu.Unlock()
	if camera.closed != camera.opened {
		t.Fatalf("leaked %d camera stream(s)", camera.opened-camera.closed)
	}
}

func TestConcurrentEnableKeepsPreviewOnLiveStream(t *testing.T) {
	camera := &gatedCamera{entered: make(chan struct{}, 1), release: make(chan struct{})}
	close(camera.release)
	surface := &syncSurface{}
	src := NewSource(camera, surface, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.EnableCamera(context.Background()); err != nil {
				t.Errorf("enable camera: %v", err)
			}
		}()
	}
	wg.Wait()

	src.mu.Lock()
	active := src.stream
	src.mu.Unlock()
	if surface.current() != active {
		t.Fatal("preview is attached to a stream other than the active one")
	}
}

type syncSurface struct {
	mu     sync.Mutex
	stream Stream
}

func (s *syncSurface) ShowStream(st Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = st
}

func (s *syncSurface) ShowImage(Image) {}

func (s *syncSurface) current() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}
