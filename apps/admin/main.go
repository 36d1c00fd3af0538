package main

import (
	"log"
	"os"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/recommendation"
	"github.com/trezcool/eduassist/core/user"
	emailsvc "github.com/trezcool/eduassist/services/email"
	"github.com/trezcool/eduassist/storage/database"
	sqlxrepos "github.com/trezcool/eduassist/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	workDir, err := os.Getwd()
	errAndDie(err)
	conf, err := core.NewConfig(workDir)
	errAndDie(err)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleServiceMock(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, core.NewStdLogger(logger))
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	recSvc := recommendation.NewService(
		conf,
		sqlxrepos.NewRecommendationRepository(db),
		sqlxrepos.NewPerformanceRepository(db),
		mailSvc,
	)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: usrSvc,
		recSvc: recSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
