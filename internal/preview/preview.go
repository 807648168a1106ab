// Package preview holds the video preview and captured-image preview regions.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/example/sortify/internal/capture"
)

// DefaultMaxEdge bounds the longest side of a rendered preview.
const DefaultMaxEdge = 480

// ErrEmpty is returned when there is nothing to show.
var ErrEmpty = errors.New("nothing to preview")

// Surface implements capture.Surface and renders what it holds as PNG thumbnails.
type Surface struct {
	maxEdge int

	mu     sync.RWMutex
	stream capture.Stream
	last   capture.Image
}

// NewSurface returns a Surface whose previews fit within maxEdge pixels.
func NewSurface(maxEdge int) *Surface {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Surface{maxEdge: maxEdge}
}

// ShowStream attaches a live stream, or detaches it when s is nil.
func (p *Surface) ShowStream(s capture.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stream = s
}

// ShowImage replaces the captured-image preview.
func (p *Surface) ShowImage(img capture.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = img
}

// Live reports whether a stream is attached.
func (p *Surface) Live() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stream != nil
}

// Image returns the last captured or uploaded image as a PNG thumbnail.
func (p *Surface) Image() ([]byte, error) {
	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()

	if last.IsZero() {
		return nil, ErrEmpty
	}
	src, err := imaging.Decode(bytes.NewReader(last.Bytes()), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return p.encode(src)
}

// Frame returns the current live frame as a PNG thumbnail.
func (p *Surface) Frame() ([]byte, error) {
	p.mu.RLock()
	stream := p.stream
	p.mu.RUnlock()

	if stream == nil {
		return nil, ErrEmpty
	}
	frame, err := stream.Read()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return p.encode(frame)
}

func (p *Surface) encode(src image.Image) ([]byte, error) {
	bounds := src.Bounds()
	var thumb image.Image = src
	if bounds.Dx() > p.maxEdge || bounds.Dy() > p.maxEdge {
		thumb = imaging.Fit(src, p.maxEdge, p.maxEdge, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
