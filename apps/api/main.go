package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/export"
	"github.com/trezcool/academia/core/invitation"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	sessionsvc "github.com/trezcool/academia/services/session"
	"github.com/trezcool/academia/storage/database"
)

// TODO:
// - rate limiting on the public auth & invitation endpoints
// - APM/Tracing
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up session store
	var sessions core.SessionStore
	if conf.Redis.URL != "" {
		rdb, err := sessionsvc.OpenRedis(context.Background(), conf.Redis.URL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
		}
		defer rdb.Close()
		sessions = sessionsvc.NewRedisStore(rdb)
	} else {
		logger.Warn("REDIS_URL not set: session revocations are kept in memory")
		sessions = sessionsvc.NewMemoryStore()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	tx := database.NewTxRunner(db)

	usrSvc := user.NewService(database.NewUserRepository(db), mailSvc, conf)
	orgSvc := organization.NewService(database.NewOrganizationRepository(db), tx)
	inviteSvc := invitation.NewService(database.NewInvitationRepository(db), orgSvc, usrSvc, mailSvc, tx, conf)
	courseSvc := course.NewService(database.NewCourseRepository(db), orgSvc, tx)
	dashSvc := dashboard.NewService(database.NewDashboardRepository(db))
	exportSvc := export.NewService(dashSvc, usrSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := echoapi.NewValidator()

	if err = core.ParseEmailTemplates(); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Sessions:      sessions,
		UserSvc:       usrSvc,
		OrgSvc:        orgSvc,
		InvitationSvc: inviteSvc,
		CourseSvc:     courseSvc,
		DashboardSvc:  dashSvc,
		ExportSvc:     exportSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
