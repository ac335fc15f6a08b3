package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cuemby/cibcore/pkg/config"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/manager"
	"github.com/cuemby/cibcore/pkg/storage"
)

var (
	configPath      = flag.String("config", "", "Configuration file (YAML)")
	dataDir         = flag.String("data-dir", "", "cibcore data directory (overrides config)")
	schemaDir       = flag.String("schema-dir", "", "Primary schema directory (overrides config)")
	remoteSchemaDir = flag.String("remote-schema-dir", "", "Remote schema directory (overrides config)")
	dryRun          = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath      = flag.String("backup", "", "Path to backup the database before migration (default: <data-dir>/cib.db.backup)")
	logLevel        = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			cfg.DataDir = *dataDir
		case "schema-dir":
			cfg.SchemaDir = *schemaDir
		case "remote-schema-dir":
			cfg.RemoteSchemaDir = *remoteSchemaDir
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	log.Init(cfg.LoggerConfig())
	logger := log.WithComponent("cib-migrate")

	dbPath := filepath.Join(cfg.DataDir, storage.DBFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found at %s", dbPath)
	}
	logger.Info().
		Str("database", dbPath).
		Bool("dry_run", *dryRun).
		Msg("Migrating stored revisions to the newest schema")

	store, err := storage.OpenBoltStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Create backup unless in dry-run mode
	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		if err := store.Backup(backupFile); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		logger.Info().Str("backup", backupFile).Msg("Backup created")
	}

	mgr, err := manager.NewManager(&manager.Config{
		SchemaDir:       cfg.SchemaDir,
		RemoteSchemaDir: cfg.RemoteSchemaDir,
		Store:           store,
	})
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	report, err := mgr.MigrateRevisions(*dryRun)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(report.Failed))
	for id := range report.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		logger.Warn().Str("revision", id).Str("reason", report.Failed[id]).Msg("Revision not migrated")
	}

	logger.Info().
		Int("total", report.Total).
		Int("upgraded", report.Upgraded).
		Int("unchanged", report.Unchanged).
		Int("failed", len(report.Failed)).
		Str("newest", mgr.Catalog().Newest().Name).
		Msg("Migration complete")
	if *dryRun {
		logger.Info().Msg("Dry run completed, no changes made. Run without -dry-run to perform the migration.")
	}
	return nil
}
