package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
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
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/services/tokenstore"
	"github.com/trezcool/academia/storage/database"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams are the dependencies of the API server.
type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Tokens     tokenstore.Store

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

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB opens and migrates the Postgres database; it is nil with the memory engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.IsMemoryDB() {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*6)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
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

func newRepositories(conf *core.Config, db *sqlx.DB, loggerParam DBLoggerParam) sqlxrepos.Repositories {
	if db == nil {
		loggerParam.Logger.Warn(fmt.Sprintf("using the %s database engine: data is lost on exit", conf.Database.Engine))
		return sqlxrepos.Repositories(inmemdb.Open().Repositories())
	}
	return sqlxrepos.New(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", log.LstdFlags), logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newValidator returns a validator knowing every custom validation tag of the app.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	class.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)
	return validate
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Tokens:        p.Tokens,
		UserSvc:       p.UserSvc,
		BranchSvc:     p.BranchSvc,
		ClassSvc:      p.ClassSvc,
		CourseSvc:     p.CourseSvc,
		AssignmentSvc: p.AssignmentSvc,
		GradeSvc:      p.GradeSvc,
		PointsSvc:     p.PointsSvc,
		AttendanceSvc: p.AttendanceSvc,
		MessageSvc:    p.MessageSvc,
		BadgeSvc:      p.BadgeSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(tokenstore.New))
	provideServices(c)
	must(c.Provide(newServer))

	return c
}

func provideServices(c *dig.Container) {
	must(c.Provide(func(r sqlxrepos.Repositories, mailSvc core.EmailService, conf *core.Config) user.Service {
		return user.NewService(r.Users, mailSvc, conf)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories) branch.Service {
		return branch.NewService(r.Branches)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, userSvc user.Service) class.Service {
		return class.NewService(r.Classes, userSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, userSvc user.Service, classSvc class.Service, branchSvc branch.Service) course.Service {
		return course.NewService(r.Courses, userSvc, classSvc, branchSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, courseSvc course.Service) assignment.Service {
		return assignment.NewService(r.Assignments, courseSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, courseSvc course.Service) grade.Service {
		return grade.NewService(r.Grades, courseSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, courseSvc course.Service) points.Service {
		return points.NewService(r.Points, courseSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, courseSvc course.Service) attendance.Service {
		return attendance.NewService(r.Attendance, courseSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, userSvc user.Service) message.Service {
		return message.NewService(r.Messages, userSvc)
	}))
	must(c.Provide(func(r sqlxrepos.Repositories, userSvc user.Service) badge.Service {
		return badge.NewService(r.Badges, userSvc)
	}))
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
