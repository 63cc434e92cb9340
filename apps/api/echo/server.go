package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc        user.Service
		CourseSvc      course.Service
		ProgressSvc    progress.Service
		RequestSvc     subscription.Service
		CertificateSvc certificate.Service
		AnalyticsSvc   analytics.Service
	}

	Server struct {
		opts     Options
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.Conf, opts.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if !opts.Conf.TestMode {
		signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		ExposeHeaders: []string{
			echo.HeaderContentDisposition,
			headerCertificateID,
		},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.auth, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if conf.Storage.Driver == "" || conf.Storage.Driver == "local" {
		if dir := conf.Storage.LocalDir; dir != "" && strings.HasPrefix(conf.Storage.PublicBaseURL, "/") {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(conf.WorkDir, dir)
			}
			s.app.Static(conf.Storage.PublicBaseURL, dir)
		}
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig())
	limit := newRateLimiter(conf.Server.RateLimit, conf.Server.RateBurst).middleware()
	admin := adminMiddleware(s.auth)

	v1.GET("/health", health)
	registerUserAPI(v1, jwt, limit, s.auth, s.opts)
	registerCourseAPI(v1, jwt, s.auth, s.opts)
	registerRequestAPI(v1, jwt, s.auth, s.opts)
	registerCertificateAPI(v1, jwt, s.auth, s.opts)
	registerVisitAPI(v1, s.auth, s.opts)
	registerAdminAPI(v1.Group("/admin", jwt, admin), s.auth, s.opts)
}

// Start serves until Shutdown or Close is called. Failures are sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "serving api")
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
