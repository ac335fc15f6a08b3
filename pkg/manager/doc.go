/*
Package manager is the consumer-facing entry point of cibcore.

A Manager owns the active schema catalog, the optional revision store and an
event broker. Callers submit configuration documents for acceptance, resolve
name/value blocks into attribute tables and query single attributes of a
document.

# Catalog lifecycle

	┌──────────── Manager ────────────┐
	│                                  │
	│  Rebuild / SetSchemaDirs         │
	│     │ (serialized)               │
	│     ▼                            │
	│  schema.Build ──► *Catalog       │
	│     │                            │
	│     ▼                            │
	│  atomic swap ◄── readers         │
	│                                  │
	└──────────────────────────────────┘

The catalog is built completely before it is published, so concurrent readers
observe either the previous catalog or the new one. A failed rebuild leaves
the previous catalog active, marks the catalog component in the health
checker and publishes a catalog.failed event.

# Documents

AcceptDocument and UpgradeDocument delegate to the catalog. Accepted
documents are stored as revisions when a store is configured:

	m, err := manager.NewManager(&manager.Config{
		SchemaDir: "/usr/share/pacemaker",
		DataDir:   "/var/lib/cibcore",
	})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	adm, err := m.AcceptDocument(doc)
	if err != nil {
		return err
	}
	fmt.Println(adm.Schema.Name, adm.Revision.ID)

# Attributes

ResolveAttributes merges blocks at a given time. Blocks whose rule cannot be
evaluated are skipped and reported as rule.failed events. QueryAttribute
reads one cluster option, resource or operation default, or node attribute
from a document.
*/
package manager
