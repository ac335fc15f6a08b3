package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/cibcore/pkg/types"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBFile is the database file name inside the data directory
const DBFile = "cib.db"

var (
	// Bucket names
	bucketRevisions = []byte("revisions")    // sequence -> revision
	bucketRevIndex  = []byte("revision_ids") // revision ID -> sequence
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	return OpenBoltStore(filepath.Join(dataDir, DBFile))
}

// OpenBoltStore opens or creates the database file at dbPath
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRevisions, bucketRevIndex} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// SaveRevision stores a new revision
func (s *BoltStore) SaveRevision(rev *types.Revision) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRevisions)
		idx := tx.Bucket(bucketRevIndex)

		if rev.ID == "" {
			rev.ID = uuid.New().String()
		}
		if idx.Get([]byte(rev.ID)) != nil {
			return fmt.Errorf("revision already exists: %s", rev.ID)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rev.Sequence = seq

		data, err := json.Marshal(rev)
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		return idx.Put([]byte(rev.ID), seqKey(seq))
	})
}

// UpdateRevision replaces an existing revision
func (s *BoltStore) UpdateRevision(rev *types.Revision) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketRevIndex).Get([]byte(rev.ID))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, rev.ID)
		}
		// Values read from bolt are only valid until the next write
		key = append([]byte(nil), key...)
		rev.Sequence = binary.BigEndian.Uint64(key)

		data, err := json.Marshal(rev)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRevisions).Put(key, data)
	})
}

// GetRevision returns the revision with the given ID
func (s *BoltStore) GetRevision(id string) (*types.Revision, error) {
	var rev types.Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketRevIndex).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		data := tx.Bucket(bucketRevisions).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &rev)
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// LatestRevision returns the most recently saved revision
func (s *BoltStore) LatestRevision() (*types.Revision, error) {
	var rev types.Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		_, data := tx.Bucket(bucketRevisions).Cursor().Last()
		if data == nil {
			return fmt.Errorf("%w: store is empty", ErrNotFound)
		}
		return json.Unmarshal(data, &rev)
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// ListRevisions returns every revision, oldest first
func (s *BoltStore) ListRevisions() ([]*types.Revision, error) {
	var revs []*types.Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRevisions)
		return b.ForEach(func(k, v []byte) error {
			var rev types.Revision
			if err := json.Unmarshal(v, &rev); err != nil {
				return err
			}
			revs = append(revs, &rev)
			return nil
		})
	})
	return revs, err
}

// DeleteRevision removes a revision. Deleting a missing revision is not an
// error.
func (s *BoltStore) DeleteRevision(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketRevIndex)
		key := idx.Get([]byte(id))
		if key == nil {
			return nil
		}
		key = append([]byte(nil), key...)
		if err := tx.Bucket(bucketRevisions).Delete(key); err != nil {
			return err
		}
		return idx.Delete([]byte(id))
	})
}

// Backup writes a consistent copy of the database to path
func (s *BoltStore) Backup(path string) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
}
