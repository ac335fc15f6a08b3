package manager

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/events"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/metrics"
	"github.com/cuemby/cibcore/pkg/nvpair"
	"github.com/cuemby/cibcore/pkg/schema"
	"github.com/cuemby/cibcore/pkg/storage"
	"github.com/cuemby/cibcore/pkg/types"
	"github.com/rs/zerolog"
)

// ErrNoStore is returned by history operations when persistence is disabled
var ErrNoStore = errors.New("revision store is not configured")

// Manager owns the active schema catalog and the revision store. It is the
// entry point for accepting documents and resolving attributes. All methods
// are safe for concurrent use.
type Manager struct {
	schemaDir       string
	remoteSchemaDir string

	// catalog is replaced wholesale by Rebuild; readers never see a
	// partially built catalog
	catalog   atomic.Pointer[schema.Catalog]
	rebuildMu sync.Mutex

	store       storage.Store
	ownsStore   bool
	resolver    *nvpair.Resolver
	eventBroker *events.Broker
	health      *metrics.HealthChecker
	logger      zerolog.Logger
}

// Config holds configuration for creating a Manager
type Config struct {
	SchemaDir       string
	RemoteSchemaDir string

	// DataDir holds the revision database. Empty disables persistence
	// unless Store is set.
	DataDir string

	// Store overrides the store opened from DataDir
	Store storage.Store

	// InactiveChanges makes resolution report next-change times of blocks
	// whose rule does not currently apply
	InactiveChanges bool

	// Health receives component status; defaults to metrics.DefaultHealth()
	Health *metrics.HealthChecker
}

// Admission is the result of accepting a document
type Admission struct {
	*schema.Accepted

	// Revision is the stored record, nil when persistence is disabled
	Revision *types.Revision
}

// NewManager builds the schema catalog and opens the revision store
func NewManager(cfg *Config) (*Manager, error) {
	m := &Manager{
		schemaDir:       cfg.SchemaDir,
		remoteSchemaDir: cfg.RemoteSchemaDir,
		store:           cfg.Store,
		health:          cfg.Health,
		logger:          log.WithComponent("manager"),
	}
	if m.health == nil {
		m.health = metrics.DefaultHealth()
	}

	var resolverOpts []nvpair.Option
	if cfg.InactiveChanges {
		resolverOpts = append(resolverOpts, nvpair.WithInactiveChanges())
	}
	m.resolver = nvpair.NewResolver(resolverOpts...)

	if m.store == nil && cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			m.health.UpdateComponent(metrics.ComponentStore, false, err.Error())
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		m.store = store
		m.ownsStore = true
	}
	if m.store != nil {
		m.health.UpdateComponent(metrics.ComponentStore, true, "")
	}

	// Create event broker
	m.eventBroker = events.NewBroker()
	m.eventBroker.Start()

	if err := m.Rebuild(); err != nil {
		m.Shutdown()
		return nil, err
	}
	return m, nil
}

// Catalog returns the active catalog
func (m *Manager) Catalog() *schema.Catalog {
	return m.catalog.Load()
}

// Store returns the revision store, or nil when persistence is disabled
func (m *Manager) Store() storage.Store {
	return m.store
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// Rebuild rediscovers the schema directories and swaps in the new catalog.
// On failure the previous catalog stays active.
func (m *Manager) Rebuild() error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	return m.rebuildLocked()
}

// SetSchemaDirs changes the schema directories and rebuilds. The directories
// are only kept when the rebuild succeeds.
func (m *Manager) SetSchemaDirs(primary, secondary string) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	oldPrimary, oldSecondary := m.schemaDir, m.remoteSchemaDir
	m.schemaDir, m.remoteSchemaDir = primary, secondary
	if err := m.rebuildLocked(); err != nil {
		m.schemaDir, m.remoteSchemaDir = oldPrimary, oldSecondary
		return err
	}
	return nil
}

func (m *Manager) rebuildLocked() error {
	catalog, err := schema.Build(m.schemaDir, m.remoteSchemaDir)
	if err != nil {
		active := m.catalog.Load() != nil
		msg := err.Error()
		if active {
			msg = "keeping previous catalog: " + msg
		}
		m.health.UpdateComponent(metrics.ComponentCatalog, active, msg)
		m.eventBroker.Publish(events.NewEvent(events.EventCatalogFailed, err.Error(), nil))
		return err
	}

	m.catalog.Store(catalog)
	catalog.LogKnownSchemas(m.logger)
	collectCatalogMetrics(catalog)
	m.health.UpdateComponent(metrics.ComponentCatalog, true, "")

	m.logger.Info().
		Int("versions", catalog.Len()).
		Str("newest", catalog.Newest().Name).
		Msg("Schema catalog activated")
	m.eventBroker.Publish(events.NewEvent(events.EventCatalogRebuilt, "schema catalog rebuilt", map[string]string{
		events.MetaVersions: strconv.Itoa(catalog.Len()),
		events.MetaSchema:   catalog.Newest().Name,
	}))
	return nil
}

// KnownSchemas lists the names of the active catalog in ordinal order
func (m *Manager) KnownSchemas() []string {
	return m.catalog.Load().Names()
}

// AcceptDocument validates doc against its declared version, migrating it
// forward when it does not validate, and records the accepted result
func (m *Manager) AcceptDocument(doc *cib.Document) (*Admission, error) {
	return m.admit(doc, false)
}

// UpgradeDocument accepts doc and moves it to the newest version it
// validates against, recording the result
func (m *Manager) UpgradeDocument(doc *cib.Document) (*Admission, error) {
	return m.admit(doc, true)
}

func (m *Manager) admit(doc *cib.Document, upgrade bool) (*Admission, error) {
	catalog := m.catalog.Load()
	declared := doc.ValidateWith()
	// nil when declared names no known version; Accept reports that
	start, _ := catalog.BestSchemaFor(declared)

	var acc *schema.Accepted
	var err error
	if upgrade {
		acc, err = catalog.Upgrade(doc)
	} else {
		acc, err = catalog.Accept(doc)
	}
	if err != nil {
		metrics.DocumentsTotal.WithLabelValues("rejected").Inc()
		m.logger.Warn().
			Err(err).
			Str("declared", declared).
			Msg("Document rejected")
		m.eventBroker.Publish(events.NewEvent(events.EventDocumentRejected, err.Error(), map[string]string{
			events.MetaDeclared: declared,
		}))
		return nil, err
	}

	admission := &Admission{Accepted: acc}
	if m.store != nil {
		rev, err := newRevision(acc)
		if err != nil {
			return nil, err
		}
		if err := m.store.SaveRevision(rev); err != nil {
			m.health.UpdateComponent(metrics.ComponentStore, false, err.Error())
			return nil, fmt.Errorf("failed to store revision: %w", err)
		}
		m.health.UpdateComponent(metrics.ComponentStore, true, "")
		metrics.RevisionsStored.Inc()
		admission.Revision = rev
	}

	result, eventType := "accepted", events.EventDocumentAccepted
	if acc.Steps > 0 || acc.Schema != start {
		result, eventType = "upgraded", events.EventDocumentUpgraded
	}
	metrics.DocumentsTotal.WithLabelValues(result).Inc()

	meta := map[string]string{
		events.MetaSchema:   acc.Schema.Name,
		events.MetaDeclared: declared,
		events.MetaSteps:    strconv.Itoa(acc.Steps),
	}
	logEvent := m.logger.Info().
		Str("schema", acc.Schema.Name).
		Str("declared", declared).
		Int("steps", acc.Steps)
	if admission.Revision != nil {
		meta[events.MetaRevision] = admission.Revision.ID
		logEvent = logEvent.Str("revision", admission.Revision.ID)
	}
	logEvent.Msg("Document " + result)
	m.eventBroker.Publish(events.NewEvent(eventType, "document "+result, meta))

	return admission, nil
}

func newRevision(acc *schema.Accepted) (*types.Revision, error) {
	data, err := acc.Document.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	gen := acc.Document.Generation()
	return &types.Revision{
		Schema:     acc.Schema.Name,
		Declared:   acc.Declared,
		Path:       acc.Path,
		Steps:      acc.Steps,
		AdminEpoch: gen.AdminEpoch,
		Epoch:      gen.Epoch,
		NumUpdates: gen.NumUpdates,
		AcceptedAt: time.Now().UTC(),
		Document:   string(data),
	}, nil
}

// ResolveAttributes merges blocks into an attribute table at input.Now
func (m *Manager) ResolveAttributes(blocks []*types.NVPairBlock, input types.RuleInput) types.AttributeTable {
	table := m.resolver.Resolve(blocks, input)
	for _, w := range table.Warnings {
		m.eventBroker.Publish(events.NewEvent(events.EventRuleFailed, w.Err.Error(), map[string]string{
			events.MetaBlock: w.BlockID,
		}))
	}
	return table
}

// ResolveAttributesAt resolves blocks at the given time with no other
// rule context
func (m *Manager) ResolveAttributesAt(blocks []*types.NVPairBlock, at time.Time) types.AttributeTable {
	return m.ResolveAttributes(blocks, types.RuleInput{Now: at})
}

// History returns stored revisions, oldest first. limit > 0 keeps only the
// newest limit revisions.
func (m *Manager) History(limit int) ([]*types.Revision, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	revs, err := m.store.ListRevisions()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(revs) > limit {
		revs = revs[len(revs)-limit:]
	}
	return revs, nil
}

// Shutdown stops the event broker and closes the store if the manager
// opened it
func (m *Manager) Shutdown() error {
	// Stop event broker
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}

	if m.store != nil && m.ownsStore {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}
	return nil
}
