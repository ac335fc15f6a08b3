package manager

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/events"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/metrics"
)

// MigrationReport summarizes a run of MigrateRevisions
type MigrationReport struct {
	Total     int
	Upgraded  int
	Unchanged int

	// Failed maps revision IDs to the reason they were left untouched
	Failed map[string]string
}

// MigrateRevisions upgrades every stored revision to the newest schema it
// validates against. Revisions that fail to parse or upgrade are reported
// and left as they are. With dryRun nothing is written.
func (m *Manager) MigrateRevisions(dryRun bool) (*MigrationReport, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	revs, err := m.store.ListRevisions()
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}

	catalog := m.catalog.Load()
	report := &MigrationReport{Total: len(revs), Failed: make(map[string]string)}

	for _, rev := range revs {
		logger := log.WithRevision(rev.ID).With().Str("schema", rev.Schema).Logger()

		doc, err := cib.ParseString(rev.Document)
		if err != nil {
			report.Failed[rev.ID] = err.Error()
			logger.Warn().Err(err).Msg("Skipping unreadable revision")
			continue
		}
		acc, err := catalog.Upgrade(doc)
		if err != nil {
			report.Failed[rev.ID] = err.Error()
			logger.Warn().Err(err).Msg("Skipping revision that cannot be upgraded")
			continue
		}
		if acc.Schema.Name == rev.Schema {
			report.Unchanged++
			continue
		}

		report.Upgraded++
		logger.Info().
			Str("to", acc.Schema.Name).
			Int("steps", acc.Steps).
			Bool("dry_run", dryRun).
			Msg("Upgrading revision")
		if dryRun {
			continue
		}

		data, err := acc.Document.Bytes()
		if err != nil {
			return report, fmt.Errorf("failed to serialize revision %s: %w", rev.ID, err)
		}
		now := time.Now().UTC()
		rev.Schema = acc.Schema.Name
		rev.Path = append(rev.Path, acc.Path[1:]...)
		rev.Steps += acc.Steps
		rev.UpgradedAt = &now
		rev.Document = string(data)
		if err := m.store.UpdateRevision(rev); err != nil {
			return report, fmt.Errorf("failed to update revision %s: %w", rev.ID, err)
		}
	}

	if !dryRun {
		metrics.RevisionsStored.Set(float64(len(revs)))
		m.eventBroker.Publish(events.NewEvent(events.EventRevisionsMigrated, "stored revisions migrated", map[string]string{
			events.MetaVersions: strconv.Itoa(report.Upgraded),
			events.MetaSchema:   catalog.Newest().Name,
		}))
	}
	return report, nil
}
