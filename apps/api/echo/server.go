package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/badge"
	"github.com/trezcool/academia/core/branch"
	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/points"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/tokenstore"
)

type (
	// ServerDeps are the dependencies of the API server.
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Tokens     tokenstore.Store
		Policy     *access.Policy // defaults to access.DefaultPolicy

		UserSvc       user.Service
		BranchSvc     branch.Service
		ClassSvc      class.Service
		CourseSvc     course.Service
		AssignmentSvc assignment.Service
		GradeSvc      grade.Service
		PointsSvc     points.Service
		AttendanceSvc attendance.Service
		MessageSvc    message.Service
		BadgeSvc      badge.Service
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		// MetricsHandler serves the prometheus metrics of the server.
		MetricsHandler() http.Handler
		// Routes lists the registered routes.
		Routes() []*echo.Route
	}

	server struct {
		ServerDeps
		app      *echo.Echo
		registry *prometheus.Registry
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Policy == nil {
		deps.Policy = access.DefaultPolicy
	}
	if deps.Tokens == nil {
		deps.Tokens = tokenstore.NewMemoryStore()
	}

	s := &server{
		ServerDeps: deps,
		app:        echo.New(),
		registry:   prometheus.NewRegistry(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Renderer = newPageRenderer()

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(newMetricsMiddleware(s.registry))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.accessMiddleware)

	rateLimit := newAuthRateLimiter(conf)

	api := s.app.Group("/api")
	registerAuthAPI(api, s, rateLimit)
	registerMessageAPI(api.Group("/messages"), s)
	registerAdminAPI(api.Group("/admin"), s)
	registerTeacherAPI(api.Group("/teacher"), s)
	registerStudentAPI(api.Group("/student"), s)

	registerPages(s.app, s, rateLimit)
}

func (s *server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Routes() []*echo.Route {
	return s.app.Routes()
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
