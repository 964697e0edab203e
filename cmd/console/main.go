package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/config"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/notify"
	"parceldesk.org/internal/obs"
	"parceldesk.org/internal/session"
	"parceldesk.org/internal/store"
	"parceldesk.org/internal/web"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()
	obs.Init()

	cfg := config.Load()

	db, err := openSessionDB(cfg)
	if err != nil {
		log.Fatalf("open session db: %v", err)
	}

	sessStore := session.NewSQLStore(db)
	if err := sessStore.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("session schema: %v", err)
	}

	sess := session.NewService(sessStore)
	if err := sess.Init(context.Background()); err != nil {
		log.Fatalf("restore session: %v", err)
	}

	client := backend.New(cfg.APIBaseURL, sess)

	bus := lifecycle.NewBus()
	counter := lifecycle.NewCounter(bus, obs.SetOperationsInFlight)
	bus.Subscribe(func(evt lifecycle.Event) {
		if evt.Phase == lifecycle.PhaseStarted {
			return
		}
		outcome := "success"
		if evt.Phase == lifecycle.PhaseFailed {
			outcome = "failure"
		}
		obs.CountOperation(evt.Resource, evt.Operation, outcome)
	})

	deps := web.Deps{
		Session:     sess,
		Auth:        store.NewAuth(client, bus, sess),
		Parcels:     store.NewParcels(client, bus),
		Departments: store.NewDepartments(client, bus),
		Rules:       store.NewRules(client, bus),
		Users:       store.NewUsers(client, bus),
		Admin:       store.NewAdmin(client, bus),
		Notifier:    notify.New(),
		Counter:     counter,
	}
	console := web.New(deps, cookieSecret(cfg), version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           console.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting parceldesk-console %s on %s (backend %s)", version, srv.Addr, cfg.APIBaseURL)

	// graceful shutdown
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

// openSessionDB prefers Postgres when a DSN is configured and falls back to
// a local sqlite file.
func openSessionDB(cfg config.Config) (*sql.DB, error) {
	if cfg.SessionDSN != "" {
		db, err := sql.Open("pgx", cfg.SessionDSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		return db, nil
	}
	return sql.Open("sqlite3", cfg.SessionPath)
}

func cookieSecret(cfg config.Config) []byte {
	if cfg.CookieSecret != "" {
		return []byte(cfg.CookieSecret)
	}
	log.Println("CONSOLE_COOKIE_SECRET not set, using an ephemeral secret; browser sessions reset on restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatalf("generate cookie secret: %v", err)
	}
	return secret
}
