package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"inkwell.app/internal/audit"
	"inkwell.app/internal/auth"
	"inkwell.app/internal/config"
	"inkwell.app/internal/httpapi"
	"inkwell.app/internal/language"
	"inkwell.app/internal/obs"
	"inkwell.app/internal/session"
	"inkwell.app/internal/token"
	"inkwell.app/internal/workspace"
)

var version = "0.3.0"

func main() {
	cfg := config.MustLoad()
	obs.Init(cfg.AppEnv)
	obs.RegisterMetrics()
	log := obs.Logger()

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	defer db.Close()

	userStore := auth.NewPGUserStore(db)
	tokenStore := token.NewPGStore(db)
	sessionStore := session.NewPGStore(db)
	workspaceStore := workspace.NewPGStore(db)
	auditStore := audit.NewPGStore(db)
	languageStore := language.NewPGStore(db)

	authSvc, err := auth.NewService(userStore, tokenStore, auth.WithAccessTTL(cfg.AccessTokenTTL))
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}
	tracker, err := session.NewTracker(sessionStore)
	if err != nil {
		log.Fatal().Err(err).Msg("session tracker")
	}
	dir, err := workspace.NewDirectory(workspaceStore)
	if err != nil {
		log.Fatal().Err(err).Msg("workspace directory")
	}
	invitations, err := workspace.NewInvitationService(workspaceStore,
		workspace.WithInvitationTTL(cfg.InvitationTTL))
	if err != nil {
		log.Fatal().Err(err).Msg("invitation service")
	}
	auditSvc := audit.NewService(auditStore)
	gate := workspace.NewGate(dir)

	cache := language.NewCache(languageStore)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cache.Init(initCtx); err != nil {
		cancelInit()
		log.Fatal().Err(err).Msg("language cache")
	}
	cancelInit()

	sweepStop := make(chan struct{})
	go sweepExpired(tokenStore, invitations, sweepStop)

	api := httpapi.New(cfg, authSvc, tracker, gate, workspaceStore, invitations,
		auditSvc, cache, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	close(sweepStop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("stopped")
}

// sweepExpired periodically drops expired tokens and closes out expired
// invitations.
func sweepExpired(tokens token.Store, invitations *workspace.InvitationService, stop <-chan struct{}) {
	log := obs.Logger()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if n, err := tokens.DeleteExpired(ctx, time.Now().UTC()); err != nil {
			log.Error().Err(err).Msg("token sweep failed")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("expired tokens deleted")
		}
		if n, err := invitations.Expire(ctx); err != nil {
			log.Error().Err(err).Msg("invitation sweep failed")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("expired invitations closed")
		}
		cancel()
	}
}
