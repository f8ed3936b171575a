package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/Maad-exe/projectgo/apps/api/echo"
	"github.com/Maad-exe/projectgo/core"
	"github.com/Maad-exe/projectgo/core/eval"
	"github.com/Maad-exe/projectgo/core/group"
	"github.com/Maad-exe/projectgo/core/user"
	emailsvc "github.com/Maad-exe/projectgo/services/email"
	logsvc "github.com/Maad-exe/projectgo/services/logger"
	"github.com/Maad-exe/projectgo/storage/database"
	sqlxrepos "github.com/Maad-exe/projectgo/storage/database/sqlx"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	db, err := setUpDB()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	sdb := sqlx.NewDb(db, core.Conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(sdb))
	grpSvc := group.NewService(sqlxrepos.NewGroupRepository(sdb), usrSvc)
	notifier := eval.NewEmailNotifier(mailSvc, usrSvc, logger)
	evalSvc := eval.NewService(sqlxrepos.NewEvalRepository(sdb), usrSvc, grpSvc, notifier, logger)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("%s initializing : env %q", core.Conf.AppName, core.Conf.Env))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:  core.Conf.ServerAddress(),
			UserSvc:  usrSvc,
			GroupSvc: grpSvc,
			EvalSvc:  evalSvc,
			Logger:   logger,
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-quit:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB() (*sql.DB, error) {
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return nil, err
	}

	db, err := database.Open(core.Conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
