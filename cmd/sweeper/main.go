package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"smartmess/internal/config"
	"smartmess/internal/mess"
	"smartmess/internal/noshow"
	"smartmess/internal/store"
)

// Standalone runner for the no-show sweep, for deployments that keep the
// reconciler out of the API process or drive it from cron with -once.
func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	schedule, err := cfg.Schedule()
	if err != nil {
		log.Fatalf("bad meal schedule: %v", err)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	repo := mess.NewRepository(db.Client)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	sweeper := noshow.New(repo, schedule, cfg.Clock(), cfg.SweepInterval)

	if *once {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		log.Printf("sweep moved %d reservation(s)", n)
		return
	}

	sweeper.Run(ctx)
}
