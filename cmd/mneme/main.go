// Command mneme runs the local memory engine and its HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/mneme/internal/backup"
	"github.com/scrypster/mneme/internal/config"
	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/engine"
	"github.com/scrypster/mneme/internal/importer"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/reasoning"
	"github.com/scrypster/mneme/internal/server"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/internal/storage/postgres"
	"github.com/scrypster/mneme/internal/storage/sqlite"
)

// cacheBytes is the decoded-record cache budget.
const cacheBytes = 64 << 20

var (
	configPath = flag.String("config", os.Getenv("MNEME_CONFIG"), "Path to YAML config file (optional, env vars override it)")
	exportPath = flag.String("export", "", "Write a snapshot of the store to this file and exit")
	importPath = flag.String("import", "", "Replace the store with the snapshot in this file and exit")
	notesPath  = flag.String("import-notes", "", "Queue every Markdown note in this directory for ingestion and exit")
	backupCmd  = flag.Bool("backup", false, "Write one snapshot to the backup directory and exit")
	listCmd    = flag.Bool("list-backups", false, "List snapshots in the backup directory and exit")
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("mneme: ")
	flag.Parse()

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opened := openStore(ctx, cfg)
	defer opened.KV.Close()

	var cache *storage.Cache
	if cfg.Storage.CacheEnabled {
		if cache, err = storage.NewCache(cacheBytes); err != nil {
			log.Printf("WARNING: record cache disabled: %v", err)
		} else {
			defer cache.Close()
		}
	}
	records := storage.NewRecords(opened.KV, cache)

	switch {
	case *exportPath != "":
		if err := exportTo(ctx, records, *exportPath); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		return
	case *importPath != "":
		if err := importFrom(ctx, records, *importPath); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		return
	case *notesPath != "":
		if err := importNotes(ctx, cfg, records, opened, *notesPath); err != nil {
			log.Fatalf("Notes import failed: %v", err)
		}
		return
	case *backupCmd || *listCmd:
		if err := runBackupCommand(ctx, cfg, records, *listCmd); err != nil {
			log.Fatalf("Backup command failed: %v", err)
		}
		return
	}

	if err := run(ctx, cfg, records, opened); err != nil {
		log.Fatalf("%v", err)
	}
}

// openStore opens the configured durable store, falling back to an
// in-process store when it cannot be opened or probed.
func openStore(ctx context.Context, cfg *config.Config) storage.Opened {
	return storage.OpenWithFallback(ctx, func() (storage.KVStore, error) {
		switch cfg.Storage.StorageEngine {
		case "memory":
			return storage.NewMemoryKV(), nil
		case "postgres":
			return postgres.NewKVStore(cfg.Storage.PostgresDSN)
		default:
			if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
			return sqlite.NewKVStore(filepath.Join(cfg.Storage.DataPath, "mneme.db"))
		}
	})
}

// newEngine wires the reasoning backend and validator into an engine.
func newEngine(cfg *config.Config, records *storage.Records, opened storage.Opened) (*engine.Engine, error) {
	reasoner, checker, err := reasoning.New(cfg.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reasoning: %w", err)
	}

	durable := opened.Durable && cfg.Storage.StorageEngine != "memory"
	warnings := opened.Warnings
	if opened.Durable && !durable {
		warnings = append(warnings, "storage engine is memory; changes will be lost on exit")
	}

	return engine.New(engine.Deps{
		Records:      records,
		Validator:    distill.NewValidator(cfg.Privacy.PIIFilterEnabled),
		Checker:      checker,
		Reasoner:     reasoner,
		Durable:      durable,
		BootWarnings: warnings,
	}, engine.ConfigFrom(cfg))
}

// run starts every long-lived component and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, records *storage.Records, opened storage.Opened) error {
	eng, err := newEngine(cfg, records, opened)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if warnings := eng.RunSystemBootCheck(ctx); len(warnings) == 0 {
		log.Println("Boot check passed")
	}
	if !eng.Durable() && cfg.Engine.SafeModeOnFallback {
		eng.SetSafeMode(true)
	}

	hub, stopEvents := startEvents(eng, cfg)
	defer stopEvents()

	var backups *backup.Service
	if cfg.Backup.Enabled {
		backups, err = backup.NewService(records, backup.Config{
			Dir:      cfg.BackupDir(),
			Interval: cfg.Backup.Interval,
			Keep:     cfg.Backup.Keep,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize backups: %w", err)
		}
		go func() {
			if err := backups.Start(ctx); err != nil && ctx.Err() == nil {
				log.Printf("ERROR: backup service stopped: %v", err)
			}
		}()
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	addr, err := server.New(eng, cfg, hub, backups).Start(ctx)
	if err != nil {
		_ = eng.Shutdown(context.Background())
		return err
	}
	log.Printf("mneme listening on http://%s (storage=%s, durable=%v)", addr, cfg.Storage.StorageEngine, eng.Durable())

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: engine shutdown: %v", err)
	}
	return nil
}

// startEvents feeds store events to a websocket hub when events are enabled.
// Events go through the events directory so that other processes sharing the
// data path see them too; the file writer is only registered while a watcher
// is consuming the directory.
func startEvents(eng *engine.Engine, cfg *config.Config) (*server.Hub, func()) {
	if !cfg.Server.EventsEnabled {
		return nil, func() {}
	}
	hostPort := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	hub := server.NewHub(hostPort, fmt.Sprintf("localhost:%d", cfg.Server.Port))
	go hub.Run()

	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, func(evt notify.Event) {
		hub.StoreUpdated(evt)
	})
	if err := watcher.Start(); err != nil {
		log.Printf("WARNING: store event watcher unavailable, events from other processes will not be shown: %v", err)
		eng.AddObserver(hub)
		return hub, hub.Stop
	}
	eng.AddObserver(notify.NewEventWriter(cfg.Storage.DataPath))
	return hub, func() {
		watcher.Stop()
		hub.Stop()
	}
}

func exportTo(ctx context.Context, records *storage.Records, path string) error {
	snap, err := backup.Export(ctx, records)
	if err != nil {
		return err
	}
	if err := backup.WriteFile(path, snap); err != nil {
		return err
	}
	log.Printf("Exported %d memories to %s", len(snap.Memories), path)
	return nil
}

func importFrom(ctx context.Context, records *storage.Records, path string) error {
	snap, err := backup.ReadFile(path)
	if err != nil {
		return err
	}
	if err := backup.Import(ctx, records, snap); err != nil {
		return err
	}
	log.Printf("Imported %d memories from %s", len(snap.Memories), path)
	return nil
}

// importNotes queues a directory of notes. The items are processed by the
// worker the next time the engine runs.
func importNotes(ctx context.Context, cfg *config.Config, records *storage.Records, opened storage.Opened, dir string) error {
	eng, err := newEngine(cfg, records, opened)
	if err != nil {
		return err
	}
	res, err := importer.New(eng).Run(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Queued %d of %d notes (%d skipped, %d failed)\n", res.FilesQueued, res.FilesFound, res.FilesSkipped, res.FilesFailed)
	for _, e := range res.Errors {
		fmt.Printf("  %s\n", e)
	}
	return nil
}

func runBackupCommand(ctx context.Context, cfg *config.Config, records *storage.Records, list bool) error {
	svc, err := backup.NewService(records, backup.Config{Dir: cfg.BackupDir(), Keep: cfg.Backup.Keep})
	if err != nil {
		return err
	}

	if list {
		infos, err := svc.List()
		if err != nil {
			return err
		}
		fmt.Printf("Found %d snapshots in %s:\n", len(infos), cfg.BackupDir())
		for i, info := range infos {
			fmt.Printf("%3d. %s  %s  %d bytes\n", i+1, filepath.Base(info.Path), info.Timestamp.Format(time.RFC3339), info.Size)
		}
		return nil
	}

	res, err := svc.BackupNow(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot written: %s (%d memories, %d bytes, %v)\n", res.Path, res.Memories, res.Size, res.Duration)
	return nil
}
