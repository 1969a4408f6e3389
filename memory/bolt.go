package memory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltFileName = "openswarm.db"

var (
	bucketEntries    = []byte("entries")    // id -> json(Entry)
	bucketKeys       = []byte("keys")       // namespace\x00key -> id
	bucketNamespaces = []byte("namespaces") // namespace\x00id -> nil
	bucketMeta       = []byte("meta")

	metaSchemaVersion = []byte("schemaVersion")
)

// boltMigration is one ordered schema step. Migrations run inside
// Initialize, inside a single transaction, before the backend accepts
// traffic.
type boltMigration struct {
	version uint64
	apply   func(tx *bolt.Tx) error
}

var boltMigrations = []boltMigration{
	{
		version: 1,
		apply: func(tx *bolt.Tx) error {
			for _, name := range [][]byte{bucketEntries, bucketKeys, bucketMeta} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("create bucket %q: %w", name, err)
				}
			}
			return nil
		},
	},
	{
		version: 2,
		apply: func(tx *bolt.Tx) error {
			ns, err := tx.CreateBucketIfNotExists(bucketNamespaces)
			if err != nil {
				return fmt.Errorf("create bucket %q: %w", bucketNamespaces, err)
			}
			// Backfill the namespace index from existing entries.
			entries := tx.Bucket(bucketEntries)
			if entries == nil {
				return nil
			}
			return entries.ForEach(func(id, data []byte) error {
				var e Entry
				if err := json.Unmarshal(data, &e); err != nil {
					return fmt.Errorf("decode entry %q: %w", id, err)
				}
				return ns.Put(nsIndexKey(e.Namespace, e.ID), nil)
			})
		},
	},
}

// BoltBackend is the durable embedded Backend: a single bbolt file holding
// the entries relation keyed by id with a (key, namespace) uniqueness index
// and a namespace index. It survives restarts and is safe for use by one
// process at a time.
type BoltBackend struct {
	dir    string
	db     *bolt.DB
	logger Logger
}

// NewBoltBackend creates a backend rooted at dir. Call Initialize before use.
func NewBoltBackend(dir string, logger Logger) *BoltBackend {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &BoltBackend{dir: dir, logger: logger}
}

// Initialize opens the database file, creating the directory if needed, and
// applies pending migrations in order.
func (b *BoltBackend) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", b.dir, err)
	}

	path := filepath.Join(b.dir, boltFileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		return b.migrate(tx)
	}); err != nil {
		db.Close()
		return fmt.Errorf("migrate %s: %w", path, err)
	}

	b.db = db
	b.logger.Debug("Durable backend initialized", map[string]interface{}{
		"path": path,
	})
	return nil
}

func (b *BoltBackend) migrate(tx *bolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists(bucketMeta)
	if err != nil {
		return err
	}
	current := uint64(0)
	if raw := meta.Get(metaSchemaVersion); len(raw) == 8 {
		current = binary.BigEndian.Uint64(raw)
	}

	for _, m := range boltMigrations {
		if m.version <= current {
			continue
		}
		if err := m.apply(tx); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		current = m.version
		b.logger.Info("Applied schema migration", map[string]interface{}{
			"version": m.version,
		})
	}

	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, current)
	return meta.Put(metaSchemaVersion, stamp)
}

// SchemaVersion returns the stored schema version, for diagnostics.
func (b *BoltBackend) SchemaVersion() (uint64, error) {
	if b.db == nil {
		return 0, ErrNotInitialized
	}
	var v uint64
	err := b.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketMeta).Get(metaSchemaVersion); len(raw) == 8 {
			v = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return v, err
}

func nsIndexKey(namespace, id string) []byte {
	return []byte(namespace + "\x00" + id)
}

func (b *BoltBackend) Store(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidEntry
	}
	if b.db == nil {
		return ErrNotInitialized
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.ID, err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		keys := tx.Bucket(bucketKeys)
		ns := tx.Bucket(bucketNamespaces)

		ck := []byte(cacheKey(entry.Key, entry.Namespace))
		// Uniqueness on (key, namespace): replacing drops the old record.
		if prev := keys.Get(ck); prev != nil && string(prev) != entry.ID {
			if err := entries.Delete(prev); err != nil {
				return err
			}
			if err := ns.Delete(nsIndexKey(entry.Namespace, string(prev))); err != nil {
				return err
			}
		}
		if err := entries.Put([]byte(entry.ID), data); err != nil {
			return err
		}
		if err := keys.Put(ck, []byte(entry.ID)); err != nil {
			return err
		}
		return ns.Put(nsIndexKey(entry.Namespace, entry.ID), nil)
	})
}

func (b *BoltBackend) Retrieve(ctx context.Context, id string) (*Entry, error) {
	if b.db == nil {
		return nil, ErrNotInitialized
	}
	var entry *Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (b *BoltBackend) RetrieveByKey(ctx context.Context, key, namespace string) (*Entry, error) {
	if b.db == nil {
		return nil, ErrNotInitialized
	}
	var entry *Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketKeys).Get([]byte(cacheKey(key, namespace)))
		if id == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketEntries).Get(id)
		if data == nil {
			return ErrNotFound
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (b *BoltBackend) Update(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidEntry
	}
	if b.db == nil {
		return ErrNotInitialized
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.ID, err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		if entries.Get([]byte(entry.ID)) == nil {
			return ErrNotFound
		}
		if err := entries.Put([]byte(entry.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketKeys).Put(
			[]byte(cacheKey(entry.Key, entry.Namespace)), []byte(entry.ID))
	})
}

func (b *BoltBackend) Delete(ctx context.Context, id string) error {
	if b.db == nil {
		return ErrNotInitialized
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		data := entries.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		if err := entries.Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketKeys).Delete([]byte(cacheKey(e.Key, e.Namespace))); err != nil {
			return err
		}
		return tx.Bucket(bucketNamespaces).Delete(nsIndexKey(e.Namespace, e.ID))
	})
}

func (b *BoltBackend) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	entries, err := b.scan(ctx, filter.Namespace)
	if err != nil {
		return nil, err
	}
	return applyFilter(entries, filter), nil
}

func (b *BoltBackend) AllEntries(ctx context.Context) ([]*Entry, error) {
	return b.scan(ctx, "")
}

// scan loads entries, using the namespace index to bound the read when a
// namespace is given.
func (b *BoltBackend) scan(ctx context.Context, namespace string) ([]*Entry, error) {
	if b.db == nil {
		return nil, ErrNotInitialized
	}
	var out []*Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		if namespace == "" {
			return entries.ForEach(func(_, data []byte) error {
				e := &Entry{}
				if err := json.Unmarshal(data, e); err != nil {
					return err
				}
				out = append(out, e)
				return nil
			})
		}

		c := tx.Bucket(bucketNamespaces).Cursor()
		prefix := []byte(namespace + "\x00")
		for k, _ := c.Seek(prefix); k != nil && len(k) > len(prefix) && string(k[:len(prefix)]) == string(prefix); k, _ = c.Next() {
			data := entries.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			e := &Entry{}
			if err := json.Unmarshal(data, e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltBackend) HealthCheck(ctx context.Context) error {
	if b.db == nil {
		return ErrNotInitialized
	}
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketEntries) == nil {
			return ErrBackendUnavailable
		}
		return nil
	})
}

func (b *BoltBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
