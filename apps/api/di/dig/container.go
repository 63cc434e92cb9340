package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/kulmistechsolutions/kulmis-acadmy-LMS/apps/api/echo"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
	cachesvc "github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/cache"
	emailsvc "github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/email"
	filesvc "github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/files"
	logsvc "github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/logger"
	pdfsvc "github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/pdf"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database"
	boiledrepos "github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database/sqlboiler"
	sqlxrepos "github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database/sqlx"
)

const setupTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams gathers what the HTTP server needs.
type ServerParams struct {
	dig.In

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

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newTransactor(db *sqlx.DB) core.Transactor {
	return database.NewTxManager(db)
}

func newAnalyticsRepository(db *sqlx.DB) analytics.Repository {
	return boiledrepos.NewAnalyticsRepository(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newCourseCache(conf *core.Config, logger core.Logger) course.Cache {
	cache, err := cachesvc.NewCourseCache(context.Background(), conf.Redis, logger)
	if err != nil {
		// the catalog still works without its cache
		logger.Error(fmt.Sprintf("course cache disabled: %v", err), err)
		return course.NewNoopCache()
	}
	return cache
}

func newFileStorage(conf *core.Config) (core.FileStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	return filesvc.New(ctx, conf)
}

func newCertificateRenderer(conf *core.Config) certificate.Renderer {
	return pdfsvc.NewCertificateRenderer(conf.AppName)
}

func newCourseService(tx core.Transactor, repo course.Repository, cache course.Cache, logger core.Logger) course.Service {
	return course.NewService(tx, repo, cache, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		CourseSvc:      p.CourseSvc,
		ProgressSvc:    p.ProgressSvc,
		RequestSvc:     p.RequestSvc,
		CertificateSvc: p.CertificateSvc,
		AnalyticsSvc:   p.AnalyticsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(newTransactor))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository))
	must(c.Provide(sqlxrepos.NewProgressRepository))
	must(c.Provide(sqlxrepos.NewRequestRepository))
	must(c.Provide(sqlxrepos.NewCertificateRepository))
	must(c.Provide(sqlxrepos.NewVisitRepository))
	must(c.Provide(newAnalyticsRepository))

	// services
	must(c.Provide(newEmailService))
	must(c.Provide(newCourseCache))
	must(c.Provide(newFileStorage))
	must(c.Provide(newCertificateRenderer))
	must(c.Provide(user.NewService))
	must(c.Provide(newCourseService))
	must(c.Provide(progress.NewService))
	must(c.Provide(subscription.NewService))
	must(c.Provide(certificate.NewService))
	must(c.Provide(analytics.NewService))
	must(c.Provide(newServer))

	if os.Getenv("DIG_VISUALIZE") != "" {
		_ = dig.Visualize(c, os.Stdout)
	}

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
