package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workhub.org/internal/auth"
	"workhub.org/internal/config"
	"workhub.org/internal/httpapi"
	"workhub.org/internal/obs"
	"workhub.org/internal/store/pg"
	"workhub.org/internal/tenant"
	"workhub.org/internal/workspace"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("config: missing WORKHUB_PG_DSN")
	}

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db := store.DB()

	codec, err := auth.NewTokenCodec(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// OIDC discovery talks to the issuer; bound it so a dead IdP fails fast.
	discoveryCtx, cancelDiscovery := context.WithTimeout(context.Background(), 15*time.Second)
	identity, err := auth.NewOIDCValidator(discoveryCtx, cfg.IdentityIssuer, cfg.IdentityAudience)
	cancelDiscovery()
	if err != nil {
		log.Fatalf("oidc discovery: %v", err)
	}

	provisioner := tenant.NewProvisioner(db)
	workspaces := workspace.NewService(store, provisioner)

	api := httpapi.New(httpapi.Options{
		ReadyProbe:    httpapi.ReadyProbe{DB: db},
		Version:       version,
		Identity:      identity,
		Codec:         codec,
		Directory:     store,
		Workspaces:    workspaces,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting workhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
