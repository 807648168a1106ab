package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/sortify/internal/auth"
	"github.com/example/sortify/internal/capture"
	"github.com/example/sortify/internal/classify"
	"github.com/example/sortify/internal/config"
	"github.com/example/sortify/internal/handlers"
	"github.com/example/sortify/internal/logging"
	"github.com/example/sortify/internal/pipeline"
	"github.com/example/sortify/internal/presenter"
	"github.com/example/sortify/internal/preview"
)

// cameraDisabled is the SORTIFY_CAMERA_DEVICE value for kiosks without a camera.
const cameraDisabled = "none"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, config.Usage())
		os.Exit(2)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	board := presenter.NewBoard()
	p := presenter.New(board, board)

	controller, err := classify.NewController(cfg.Endpoint, classify.NewHTTPClient(), p, logger)
	if err != nil {
		logger.Fatal("invalid classification endpoint", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
	}

	var camera capture.Camera
	if cfg.CameraDevice != cameraDisabled {
		camera = capture.DeviceCamera{Device: cfg.CameraDevice}
	}
	surface := preview.NewSurface(cfg.PreviewMaxEdge)
	source := capture.NewSource(camera, surface, logger)
	session := pipeline.NewSession(source, controller, p, logger)
	defer session.DisableCamera()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.MaxMultipartMemory = handlers.MaxUploadSize

	handlers.RegisterRoutes(r, session, board, surface, auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("sortify kiosk listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("camera", cfg.CameraDevice))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger, func() { session.Cancel() }); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	httpLogger := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if operator, ok := auth.GetOperator(c.Request.Context()); ok {
			fields = append(fields, zap.String("operator", operator))
		}
		httpLogger.Info("request", fields...)
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, onShutdown func()) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil, onShutdown)
}

// serveHTTPServerWithOptions serves until the server fails or a signal arrives. On a signal
// onShutdown runs first, then in-flight requests get shutdownTimeout to drain.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal, onShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if onShutdown != nil {
			onShutdown()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
