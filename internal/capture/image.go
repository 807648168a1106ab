package capture

// Origin records how an Image was acquired.
type Origin int

const (
	// OriginCamera marks a frame grabbed from the live stream.
	OriginCamera Origin = iota + 1
	// OriginUpload marks bytes read from a user chosen file.
	OriginUpload
)

func (o Origin) String() string {
	switch o {
	case OriginCamera:
		return "camera"
	case OriginUpload:
		return "upload"
	default:
		return "unknown"
	}
}

const (
	// PNGMIMEType is the encoding used for every camera capture.
	PNGMIMEType = "image/png"
	// CaptureFilename is the filename attached to camera captures.
	CaptureFilename = "capture.png"
)

// Image is one acquired picture. It is immutable: constructors and accessors copy the bytes.
type Image struct {
	data     []byte
	mimeType string
	filename string
	origin   Origin
}

// NewCameraImage wraps PNG bytes produced from a camera frame.
func NewCameraImage(png []byte) Image {
	return Image{data: clone(png), mimeType: PNGMIMEType, filename: CaptureFilename, origin: OriginCamera}
}

// NewUploadImage wraps the bytes of a chosen file. mimeType may be empty when the
// file selection did not declare one.
func NewUploadImage(filename, mimeType string, data []byte) Image {
	return Image{data: clone(data), mimeType: mimeType, filename: filename, origin: OriginUpload}
}

// Bytes returns a copy of the encoded image.
func (i Image) Bytes() []byte { return clone(i.data) }

// Len is the size of the encoded image in bytes.
func (i Image) Len() int { return len(i.data) }

// MIMEType is the declared type, possibly empty for uploads.
func (i Image) MIMEType() string { return i.mimeType }

// Filename is "capture.png" for captures and the original name for uploads.
func (i Image) Filename() string { return i.filename }

// Origin reports whether the image came from the camera or a file.
func (i Image) Origin() Origin { return i.origin }

// IsZero reports whether i holds no image.
func (i Image) IsZero() bool { return i.origin == 0 }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
