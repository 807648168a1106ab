// Package encoder packages a captured image into the multipart upload sent to /predict.
package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/example/sortify/internal/capture"
)

// FieldName is the multipart field the backend reads the image from.
const FieldName = "file"

// Payload is one upload: a single named binary field. It is owned by a single submission.
type Payload struct {
	FieldName   string
	Filename    string
	ContentType string
	body        []byte
}

// Body returns a copy of the bytes that will be uploaded.
func (p Payload) Body() []byte {
	out := make([]byte, len(p.body))
	copy(out, p.body)
	return out
}

// Len is the size of the uploaded image in bytes.
func (p Payload) Len() int { return len(p.body) }

var (
	errEmptyImage   = errors.New("image has no data")
	errRoundTrip    = errors.New("data URL round trip changed the image")
	errNotDataURL   = errors.New("not a data URL")
	errNotBase64URL = errors.New("data URL is not base64 encoded")
)

// Encode packages img for upload. Camera captures go through a base64 data URL and back,
// and must survive it byte for byte. Uploads keep their original bytes and filename.
func Encode(img capture.Image) (Payload, error) {
	if img.Len() == 0 {
		return Payload{}, errEmptyImage
	}

	switch img.Origin() {
	case capture.OriginCamera:
		original := img.Bytes()
		decoded, mimeType, err := DecodeDataURL(DataURL(img))
		if err != nil {
			return Payload{}, fmt.Errorf("encode capture: %w", err)
		}
		if !bytes.Equal(decoded, original) {
			return Payload{}, errRoundTrip
		}
		return Payload{FieldName: FieldName, Filename: capture.CaptureFilename, ContentType: mimeType, body: decoded}, nil
	case capture.OriginUpload:
		data := img.Bytes()
		contentType := img.MIMEType()
		if contentType == "" {
			contentType = mimetype.Detect(data).String()
		}
		return Payload{FieldName: FieldName, Filename: img.Filename(), ContentType: contentType, body: data}, nil
	default:
		return Payload{}, fmt.Errorf("encode: unknown image origin %v", img.Origin())
	}
}

// DataURL serializes img as "data:<mime>;base64,<payload>".
func DataURL(img capture.Image) string {
	mimeType := img.MIMEType()
	if mimeType == "" {
		mimeType = capture.PNGMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes())
}

// DecodeDataURL is the inverse of DataURL. It returns the raw bytes and the declared MIME type.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errNotDataURL
	}
	header, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errNotDataURL
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", errNotBase64URL
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	return data, mimeType, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Multipart renders the payload as a multipart/form-data body holding only the file field.
// It returns the body and the matching Content-Type header value.
func (p Payload) Multipart() ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(p.FieldName), quoteEscaper.Replace(p.Filename)))
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(p.body); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}
