/*
Package storage provides BoltDB-backed persistence for accepted
configuration revisions.

Every document accepted by the manager is stored as a types.Revision: the
serialized XML, the schema version it validated against, the version it
declared, the upgrade path taken and its generation counters. Records are
JSON encoded with json-iterator.

# Layout

	<dataDir>/cib.db
	  revisions     8-byte big-endian sequence -> revision JSON
	  revision_ids  revision ID -> sequence

Sequences come from the bucket's NextSequence, so iterating the revisions
bucket yields revisions in the order they were accepted and the last key is
always the latest revision. IDs are random UUIDs unless the caller sets one.

# Usage

	store, err := storage.NewBoltStore("/var/lib/cibcore")
	if err != nil {
		return err
	}
	defer store.Close()

	rev := &types.Revision{Schema: "pacemaker-3.10", Document: xml}
	if err := store.SaveRevision(rev); err != nil {
		return err
	}

	latest, err := store.LatestRevision()

Lookups of unknown revisions fail with ErrNotFound. Reads run in bolt View
transactions and may proceed concurrently; writes are serialized by bolt.
The cib-migrate tool opens the same file directly to upgrade stored
revisions offline.
*/
package storage
