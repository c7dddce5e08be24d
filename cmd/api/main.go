package main

import (
	"context"
	"net/http"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/serenitylibrary/serenity/pkg/database"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/migrations"
	"github.com/serenitylibrary/serenity/pkg/otp"
	"github.com/serenitylibrary/serenity/pkg/receipts"
	"github.com/serenitylibrary/serenity/pkg/server"
	"github.com/serenitylibrary/serenity/pkg/version"
	"github.com/serenitylibrary/serenity/pkg/worker"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting serenity", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := os.MkdirAll(cfg.ReceiptDir, 0755); err != nil {
		log.Err(err).Fatal("receipt directory error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Login keeps failing until redis is reachable, everything else works.
		log.Warn("redis ping failed", logger.Data{"addr": cfg.RedisAddr, "error": err.Error()})
	}
	otpStore := otp.NewStore(rdb, cfg.OTPTTL)

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.SMTPHost != "" {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		log.Warn("smtp_host is not set, outgoing mail will only be logged")
	}

	clock := clockwork.NewRealClock()

	svcs, err := server.NewServices(cfg, db, clock)
	if err != nil {
		log.Err(err).Fatal("services error")
	}

	wrkr := worker.New(cfg, db, clock, svcs.Worker(), sender, receipts.NewPDFGenerator(cfg.ReceiptDir))

	srv, err := server.New(cfg, db, clock, svcs, otpStore, sender)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		log.Info("server started", logger.Data{"addr": srv.Addr})
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	if err := rdb.Close(); err != nil {
		log.Err(err).Error("redis close error")
	}

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
