package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/cache"
	"github.com/trezcool/eduassist/core/progress"
	"github.com/trezcool/eduassist/core/recommendation"
	"github.com/trezcool/eduassist/core/user"

	echoapi "github.com/trezcool/eduassist/apps/api/echo"
	emailsvc "github.com/trezcool/eduassist/services/email"
	logsvc "github.com/trezcool/eduassist/services/logger"
	inmemcache "github.com/trezcool/eduassist/storage/cache/inmem"
	rediscache "github.com/trezcool/eduassist/storage/cache/redis"
	"github.com/trezcool/eduassist/storage/database"
	sqlxrepos "github.com/trezcool/eduassist/storage/database/sqlx"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	workDir, err := os.Getwd()
	if err != nil {
		log.Fatalf("getting working directory: %v", err)
	}
	conf, err := core.NewConfig(workDir)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	// set up cache
	appCache, closeCache, err := setUpCache(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}
	defer closeCache()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	mutator := cache.NewMutator(appCache, cache.NewLogNotifier(logger), logger)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	recSvc := recommendation.NewService(
		conf,
		sqlxrepos.NewRecommendationRepository(db),
		sqlxrepos.NewPerformanceRepository(db),
		mailSvc,
	)
	progressSvc := progress.NewService(conf, sqlxrepos.NewProgressRepository(db), mutator)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     usrSvc,
		RecSvc:      recSvc,
		ProgressSvc: progressSvc,
		Validate:    validate,
		Translator:  translator,
	})
	server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

func setUpDB(conf *core.Config) (db *sqlx.DB, err error) {
	if err = database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	if db, err = database.Open(conf); err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// setUpCache returns a Redis-backed cache when enabled, an in-memory
// one otherwise.
func setUpCache(conf *core.Config) (cache.Cache, func(), error) {
	if !conf.Redis.Enabled {
		return inmemcache.New(), func() {}, nil
	}

	rc := rediscache.New(conf)
	rc.Register(progress.CacheNSProgress, func(data []byte) (interface{}, error) {
		var p progress.Progress
		err := json.Unmarshal(data, &p)
		return p, err
	})
	rc.Register(progress.CacheNSActivity, func(data []byte) (interface{}, error) {
		var feed []progress.Activity
		err := json.Unmarshal(data, &feed)
		return feed, err
	})
	rc.Register(progress.CacheNSLeaderboard, func(data []byte) (interface{}, error) {
		var board []progress.LeaderboardEntry
		err := json.Unmarshal(data, &board)
		return board, err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		return nil, nil, err
	}
	return rc, func() { _ = rc.Close() }, nil
}
