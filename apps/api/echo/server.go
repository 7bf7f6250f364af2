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

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/dashboard"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        user.Service
		BatchSvc       batch.Service
		ContentSvc     content.Service
		SubmissionSvc  submission.Service
		DashboardSvc   dashboard.Service
		AuditSvc       audit.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	initAuth(deps.Conf)

	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwtMW := middleware.JWTWithConfig(appJWTConfig)

	userLimit := echo.MiddlewareFunc(noopMiddleware)
	anonLimit := echo.MiddlewareFunc(noopMiddleware)
	if !conf.TestMode {
		userLimit = userRateLimitMiddleware(newRateLimiter(conf.Server.UserRateLimit, conf.Server.RateBurst))
		anonLimit = anonRateLimitMiddleware(newRateLimiter(conf.Server.AnonRateLimit, conf.Server.RateBurst))
	}

	// the identity limiter needs the JWT claims, so it must run after jwtMW
	jwt := func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMW(userLimit(next))
	}

	registerAuthAPI(v1, jwt, anonLimit, s.deps.UserSvc, s.deps.AuditSvc, s.deps.Validate)
	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.AuditSvc, s.deps.Validate)
	registerBatchAPI(v1, jwt, s.deps.BatchSvc, s.deps.UserSvc, s.deps.AuditSvc, s.deps.Validate)
	registerContentAPI(v1, jwt, s.deps.ContentSvc, s.deps.UserSvc, s.deps.AuditSvc, s.deps.Validate)
	registerSubmissionAPI(v1, jwt, s.deps.SubmissionSvc, s.deps.UserSvc, s.deps.AuditSvc, s.deps.Validate)
	registerDashboardAPI(v1, jwt, s.deps.DashboardSvc, s.deps.UserSvc)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
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

// signalShutdown requests a graceful stop; used when an unrecoverable
// integrity error bubbles up to the error handler.
func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
