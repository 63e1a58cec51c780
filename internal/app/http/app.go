package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	appmiddleware "clubmedia/internal/middleware"
	httprouters "clubmedia/internal/transport/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

type Server struct {
	log       *slog.Logger
	e         *echo.Echo
	routers   *httprouters.Routers
	host      string
	port      string
	secret    string
	filesDir  string
	filesPath string
}

// New настраивает echo: валидатор, общие middleware, метрики и раздачу загруженных файлов.
// filesPath префикс URL, под которым отдаются файлы из filesDir.
func New(log *slog.Logger, secret, host, port, filesDir, filesPath string, timeout time.Duration, routers *httprouters.Routers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	validate := validator.New()
	e.Validator = &CustomValidator{validator: validate}

	e.Server.ReadTimeout = timeout
	e.Server.WriteTimeout = timeout

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(appmiddleware.PrometheusMetrics)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("URI", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			)

			return nil
		},
	}))

	return &Server{
		log:       log,
		e:         e,
		routers:   routers,
		host:      host,
		port:      port,
		secret:    secret,
		filesDir:  filesDir,
		filesPath: filesPath,
	}
}

// Handler возвращает echo как http.Handler, используется в тестах
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) MustRun() {
	const op = "http.Server.MustRun"

	s.log.Info(op, slog.String("Start", "server"), slog.String("addr", net.JoinHostPort(s.host, s.port)))

	if err := s.Start(); err != nil {
		panic(err)
	}
}

func (s *Server) Start() error {
	const op = "http.Server.Start"

	if err := s.e.Start(net.JoinHostPort(s.host, s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server stopped: %w", op, err)
	}

	return nil
}

func (s *Server) Stop() error {
	const op = "http.Server.Stop"

	optCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	s.log.Info("stopping", slog.String("op", op))

	if err := s.e.Shutdown(optCtx); err != nil {
		return fmt.Errorf("%s could not shutdown server gracefuly: %w", op, err)
	}

	return nil
}

func (s *Server) BuildRouters() {
	s.e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.e.GET("/metrics", echoprometheus.NewHandler())

	if s.filesDir != "" && s.filesPath != "" {
		s.e.Static(s.filesPath, s.filesDir)
	}

	api := s.e.Group("/api/v1", appmiddleware.BearerAuth(s.log, s.secret))
	{
		photos := api.Group("/photos")
		{
			photos.GET("", s.routers.ListPhotos)
			photos.GET("/:id", s.routers.GetPhoto)
			photos.PATCH("/:id", s.routers.EditPhoto)
			photos.POST("/:id/like", s.routers.LikePhoto)
		}

		ingest := api.Group("/ingest")
		{
			ingest.GET("/pending", s.routers.ListPending)
			ingest.DELETE("/pending", s.routers.ClearPending)
			ingest.DELETE("/pending/:local_id", s.routers.RemovePending)
			ingest.POST("/commit", s.routers.Commit)
			ingest.GET("/progress", s.routers.Progress)
			ingest.POST("/:kind", s.routers.UploadAssets)
		}

		selection := api.Group("/selection")
		{
			selection.GET("", s.routers.GetSelection)
			selection.POST("", s.routers.SelectAll)
			selection.DELETE("", s.routers.ClearSelection)
			selection.POST("/toggle/:id", s.routers.ToggleSelection)
			selection.POST("/delete", s.routers.DeleteSelected)
			selection.POST("/feature", s.routers.FeatureSelected)
		}
	}
}
