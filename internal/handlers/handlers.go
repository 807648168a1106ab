package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/sortify/internal/capture"
	"github.com/example/sortify/internal/classify"
	"github.com/example/sortify/internal/encoder"
	"github.com/example/sortify/internal/logging"
	"github.com/example/sortify/internal/pipeline"
	"github.com/example/sortify/internal/presenter"
	"github.com/example/sortify/internal/preview"
)

// MaxUploadSize caps a single uploaded image.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 << 10

// Previewer renders the preview regions.
type Previewer interface {
	Image() ([]byte, error)
	Frame() ([]byte, error)
	Live() bool
}

type handler struct {
	session *pipeline.Session
	board   *presenter.Board
	preview Previewer
}

// RegisterRoutes wires the kiosk control API to the Gin router. authMiddleware guards the
// routes that trigger actions.
func RegisterRoutes(router *gin.Engine, session *pipeline.Session, board *presenter.Board, preview Previewer, authMiddleware gin.HandlerFunc) {
	h := &handler{session: session, board: board, preview: preview}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/result", h.result)
	router.GET("/preview", h.previewImage)
	router.GET("/camera/frame", h.cameraFrame)

	actions := router.Group("/", authMiddleware)
	actions.POST("/camera/enable", h.enableCamera)
	actions.POST("/camera/disable", h.disableCamera)
	actions.POST("/capture", h.capture)
	actions.POST("/upload", h.upload)
	actions.POST("/cancel", h.cancel)
}

func (h *handler) result(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":          h.session.State().String(),
		"camera_enabled": h.session.CameraEnabled(),
		"preview_live":   h.preview.Live(),
		"display":        h.board.Snapshot(),
	})
}

func (h *handler) enableCamera(c *gin.Context) {
	if err := h.session.EnableCamera(c.Request.Context()); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": logging.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": "enabled"})
}

func (h *handler) disableCamera(c *gin.Context) {
	h.session.DisableCamera()
	c.JSON(http.StatusOK, gin.H{"camera": "disabled"})
}

func (h *handler) capture(c *gin.Context) {
	result, err := h.session.Capture(c.Request.Context())
	h.respond(c, result, err)
}

func (h *handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

	files, err := formFiles(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, errFileTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read upload"})
		return
	}

	result, err := h.session.Upload(c.Request.Context(), files)
	h.respond(c, result, err)
}

func (h *handler) cancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.session.Cancel()})
}

func (h *handler) previewImage(c *gin.Context) {
	h.writePNG(c, h.preview.Image)
}

func (h *handler) cameraFrame(c *gin.Context) {
	h.writePNG(c, h.preview.Frame)
}

func (h *handler) writePNG(c *gin.Context, render func() ([]byte, error)) {
	data, err := render()
	switch {
	case errors.Is(err, preview.ErrEmpty):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", data)
	}
}

func (h *handler) respond(c *gin.Context, result classify.Result, err error) {
	if errors.Is(err, classify.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": h.session.State().String()})
		return
	}

	status := http.StatusOK
	switch logging.KindOf(err) {
	case logging.KindInput:
		status = http.StatusBadRequest
	case logging.KindTransport, logging.KindServer, logging.KindProtocol:
		status = http.StatusBadGateway
	}

	body := gin.H{"display": presenter.Render(result)}
	if err != nil {
		body["kind"] = logging.KindOf(err).String()
	}
	c.JSON(status, body)
}

var errFileTooLarge = errors.New("file too large")

// formFiles reads the "file" field. A request without a multipart body or without the
// field yields no files, which the pipeline reports as "Please select an image".
func formFiles(c *gin.Context) ([]capture.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		return nil, err
	}

	headers := form.File[encoder.FieldName]
	files := make([]capture.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > MaxUploadSize {
			return nil, errFileTooLarge
		}
		data, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "application/octet-stream" {
			mimeType = ""
		}
		files = append(files, capture.File{Name: fh.Filename, MIMEType: mimeType, Data: data})
	}
	return files, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
