// Package main is the entry point for the three-square land ledger daemon
// (tsl). It restores the ledger from the event journal, serves the HTTP and
// websocket API and journals every committed event.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threesquare.land/tsl/internal/api"
	"threesquare.land/tsl/internal/config"
	"threesquare.land/tsl/internal/docs"
	"threesquare.land/tsl/internal/journal"
	"threesquare.land/tsl/internal/ledger"
	"threesquare.land/tsl/internal/logger"
	"threesquare.land/tsl/internal/txapp"
	"threesquare.land/tsl/internal/types"
	"threesquare.land/tsl/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "tsl.json", "path to JSON config file")
	flag.Parse()

	log.Printf("tsl %s (%s) starting...", types.Version, types.BuildTime)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.New(cfg.LogBufferSize)
	mainLog := lg.Component("main")

	j, err := journal.Open(cfg.JournalFile)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	mainLog.Infof("Journal opened at %s", j.Path())

	l := ledger.New(ledger.Options{
		OfferTTL: cfg.OfferTTL.Std(),
		History:  cfg.EventHistory,
	})

	ctx := context.Background()
	replayed, err := j.Replay(ctx, l)
	if err != nil {
		log.Fatalf("Failed to replay journal: %v", err)
	}
	if err := l.CheckInvariants(); err != nil {
		log.Fatalf("Ledger inconsistent after replay: %v", err)
	}
	mainLog.Infof("Replayed %d journaled events (seq %d)", replayed, l.LastSeq())

	// Only events committed from here on are appended.
	l.AddObserver(j)

	app, err := txapp.NewApplication(l, txapp.Options{
		MaxTxAge:        cfg.MaxTxAge.Std(),
		ReplayCacheSize: cfg.ReplayCacheSize,
		Seen:            j,
	})
	if err != nil {
		log.Fatalf("Failed to initialize transaction application: %v", err)
	}

	if err := ensurePortAvailable(cfg.Port); err != nil {
		log.Fatalf("Port %d unavailable: %v", cfg.Port, err)
	}

	apiService := api.NewService(app, j, lg, cfg.MaxBackups)
	server, err := web.NewServer(cfg.Port, l, apiService, docs.NewService(cfg.DocsDir), lg)
	if err != nil {
		log.Fatalf("Failed to initialize web server: %v", err)
	}

	serverErrors := server.Start()
	log.Printf("API available at http://localhost:%d/api, docs at http://localhost:%d/docs", cfg.Port, cfg.Port)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	if cfg.OfferTTL > 0 {
		go sweepOffers(sweepCtx, l, cfg.OfferSweepInterval.Std(), lg.Component("sweeper"))
	}
	if cfg.MaxTxAge > 0 {
		go pruneSeen(sweepCtx, j, cfg.MaxTxAge.Std(), lg.Component("sweeper"))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received %s, shutting down...", sig)
	case err := <-serverErrors:
		if err != nil {
			log.Printf("WARNING: Web server exited: %v", err)
		}
	}

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: HTTP shutdown: %v", err)
	}

	if err := j.Err(); err != nil {
		log.Printf("WARNING: journal reported a write failure during this run: %v", err)
	}
	if path, err := j.Backup(cfg.MaxBackups); err != nil {
		log.Printf("WARNING: journal backup failed: %v", err)
	} else {
		log.Printf("INFO: Journal backed up to %s", path)
	}
	if err := j.Close(); err != nil {
		log.Printf("WARNING: closing journal: %v", err)
	}
	log.Println("Shutdown complete")
}

// sweepOffers periodically drops swap offers older than the configured TTL.
func sweepOffers(ctx context.Context, l *ledger.Ledger, interval time.Duration, lg *logger.Component) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.PruneExpiredOffers(); n > 0 {
				lg.Infof("Expired %d swap offers", n)
			}
		}
	}
}

// pruneSeen drops replay records of transactions the timestamp window
// already refuses.
func pruneSeen(ctx context.Context, j *journal.Journal, maxTxAge time.Duration, lg *logger.Component) {
	ticker := time.NewTicker(maxTxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.PruneSeen(time.Now().Add(-2 * maxTxAge))
			if err != nil {
				lg.Warningf("Pruning seen transactions failed: %v", err)
				continue
			}
			if n > 0 {
				lg.Infof("Pruned %d seen transactions", n)
			}
		}
	}
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
