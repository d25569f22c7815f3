package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MJE43/killteam-scorer/internal/api"
	"github.com/MJE43/killteam-scorer/internal/config"
	"github.com/MJE43/killteam-scorer/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	log.Printf("Starting Kill Team scorer %s (Go %s)...", api.EngineVersion, runtime.Version())

	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
	log.Println("Scorer exited normally")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return err
	}
	db, err := store.NewSQLiteDB(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	log.Printf("Match store ready at %s", dbPath)

	server := api.NewServer(db, api.ServerOptions{
		MatchOptions:   cfg.MatchOptions(),
		SessionLimit:   cfg.SessionLimit,
		RequestTimeout: cfg.RequestTimeout,
		FormulaTimeout: cfg.FormulaTimeout,
		CORSOrigin:     cfg.CORSOrigin,
	})
	if err := server.Start(cfg.Addr); err != nil {
		return err
	}
	log.Printf("Scorer API ready at http://%s/api/v1", cfg.Addr)

	<-ctx.Done()
	log.Println("Scorer is closing")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("Scorer shutdown complete")
	return nil
}
