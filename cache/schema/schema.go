package schema

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"kwil-client/models"
	"kwil-client/util/log"
	"time"

	"github.com/allegro/bigcache/v3"
)

// DefaultTTL is used when a cache is created with a non-positive ttl.
const DefaultTTL = 10 * time.Minute

// Cache keeps database schemas by dbid for a fixed time.
// It is safe for concurrent use.
type Cache struct {
	cache *bigcache.BigCache
	ttl   time.Duration
	now   func() time.Time
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	config := bigcache.DefaultConfig(ttl)
	config.Shards = 16
	config.CleanWindow = ttl
	config.Verbose = false

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &Cache{cache: cache, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached schema of dbid if it has not expired.
func (c *Cache) Get(dbid string) (*models.Schema, bool) {
	entry, err := c.cache.Get(dbid)
	if err != nil {
		if err != bigcache.ErrEntryNotFound {
			log.Debugf("schema cache get %s: %v", dbid, err)
		}
		return nil, false
	}

	// Entries are [expiry unix nano u64][schema json]. bigcache only
	// evicts on its clean window, so expiry is checked here as well.
	if len(entry) < 8 || c.now().UnixNano() >= int64(binary.LittleEndian.Uint64(entry[:8])) {
		c.Delete(dbid)
		return nil, false
	}

	schema := new(models.Schema)
	if err := json.Unmarshal(entry[8:], schema); err != nil {
		log.Debugf("schema cache decode %s: %v", dbid, err)
		c.Delete(dbid)
		return nil, false
	}

	return schema, true
}

// Set caches schema under dbid.
func (c *Cache) Set(dbid string, schema *models.Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	entry := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint64(entry[:8], uint64(c.now().Add(c.ttl).UnixNano()))
	copy(entry[8:], data)

	return c.cache.Set(dbid, entry)
}

// Delete drops the cached schema of dbid, e.g. after the database is dropped.
func (c *Cache) Delete(dbid string) {
	if err := c.cache.Delete(dbid); err != nil && err != bigcache.ErrEntryNotFound {
		log.Debugf("schema cache delete %s: %v", dbid, err)
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.cache.Close()
}
