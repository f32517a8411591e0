// Package badger provides a persistent token registry on BadgerDB, so issued
// tokens survive a restart of the bridge.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
)

// expiryGrace is added to the registry TTL when setting BadgerDB's native
// TTL. Entries are normally removed by SweepExpired; the native TTL only
// reclaims space if the sweeper is disabled.
const expiryGrace = time.Hour

// record is the persisted form of a token.
type record struct {
	Key       storage.Key `json:"key"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

// BadgerRegistry implements token.Registry on BadgerDB.
//
// Thread Safety:
// Writes (Issue, Revoke, SweepExpired) are serialized by mu so eviction never
// races with another writer over the issue index. Resolve relies on BadgerDB's
// MVCC snapshots and takes no lock.
type BadgerRegistry struct {
	db   *badger.DB
	opts token.Options

	mu    sync.Mutex
	count int
}

// BadgerRegistryConfig configures a BadgerRegistry.
type BadgerRegistryConfig struct {
	// DBPath is the directory for BadgerDB files. Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk (tests).
	InMemory bool `mapstructure:"in_memory"`

	// Options are the registry limits and hooks.
	Options token.Options `mapstructure:"-"`
}

// NewBadgerRegistry opens (or creates) the registry database.
//
// Existing tokens are counted on open so MaxEntries applies across restarts.
func NewBadgerRegistry(ctx context.Context, cfg BadgerRegistryConfig) (*BadgerRegistry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger registry: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	r := &BadgerRegistry{
		db:   db,
		opts: cfg.Options.WithDefaults(),
	}

	count, err := r.countTokens()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to count existing tokens: %w", err)
	}
	r.count = count

	return r, nil
}

// Issue mints a token for key, evicting the least recently issued tokens if
// the registry is full.
func (r *BadgerRegistry) Issue(ctx context.Context, key storage.Key) (token.Token, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	rec := record{
		Key:       key,
		IssuedAt:  now,
		ExpiresAt: r.opts.ExpiresAt(now),
	}
	value, err := json.Marshal(&rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode token record: %w", err)
	}

	var (
		tok     token.Token
		evicted int
	)
	err = r.db.Update(func(txn *badger.Txn) error {
		var genErr error
		tok, genErr = token.GenerateUnique(r.opts.Rand, func(t token.Token) bool {
			_, err := txn.Get(keyToken(t))
			return err == nil
		})
		if genErr != nil {
			return genErr
		}

		if r.opts.MaxEntries > 0 && r.count >= r.opts.MaxEntries {
			n, err := r.evictLocked(txn, r.count-r.opts.MaxEntries+1)
			if err != nil {
				return err
			}
			evicted = n
		}

		if err := txn.SetEntry(r.entry(keyToken(tok), value)); err != nil {
			return err
		}
		return txn.SetEntry(r.entry(keyIssue(now, tok), nil))
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	r.count = r.count - evicted + 1
	return tok, nil
}

// evictLocked deletes up to n of the oldest tokens and returns how many
// tokens were actually removed.
func (r *BadgerRegistry) evictLocked(txn *badger.Txn, n int) (int, error) {
	itOpts := badger.DefaultIteratorOptions
	itOpts.PrefetchValues = false
	itOpts.Prefix = []byte(prefixIssue)

	it := txn.NewIterator(itOpts)
	defer it.Close()

	var victims [][]byte
	for it.Rewind(); it.Valid() && len(victims) < n; it.Next() {
		victims = append(victims, it.Item().KeyCopy(nil))
	}

	removed := 0
	for _, ik := range victims {
		tok, ok := tokenFromIssueKey(ik)
		if ok {
			if err := txn.Delete(keyToken(tok)); err != nil {
				return removed, err
			}
		}
		if err := txn.Delete(ik); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Resolve returns the key bound to tok.
func (r *BadgerRegistry) Resolve(ctx context.Context, tok token.Token) (storage.Key, error) {
	rec, err := r.load(tok)
	if err != nil {
		return "", err
	}
	if token.Expired(rec.ExpiresAt, r.opts.Now()) {
		return "", token.ErrNotFound
	}
	return rec.Key, nil
}

// Revoke removes tok and its index entry. An expired token is already gone
// as far as callers are concerned and is left to SweepExpired.
func (r *BadgerRegistry) Revoke(ctx context.Context, tok token.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	err := r.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, tok)
		if err != nil {
			return err
		}
		if token.Expired(rec.ExpiresAt, now) {
			return token.ErrNotFound
		}
		if err := txn.Delete(keyToken(tok)); err != nil {
			return err
		}
		return txn.Delete(keyIssue(rec.IssuedAt, tok))
	})
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	r.count--
	return nil
}

// SweepExpired removes expired tokens. It also recounts the registry, which
// corrects drift from entries reclaimed by BadgerDB's native TTL.
func (r *BadgerRegistry) SweepExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	var expired [][]byte

	err := r.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte(prefixToken)
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if token.Expired(rec.ExpiresAt, now) {
				tok := token.Token(item.Key()[len(prefixToken):])
				expired = append(expired, keyToken(tok), keyIssue(rec.IssuedAt, tok))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan tokens: %w", err)
	}

	if len(expired) > 0 {
		wb := r.db.NewWriteBatch()
		defer wb.Cancel()
		for _, k := range expired {
			if err := wb.Delete(k); err != nil {
				return 0, fmt.Errorf("failed to delete expired token: %w", err)
			}
		}
		if err := wb.Flush(); err != nil {
			return 0, fmt.Errorf("failed to flush expired tokens: %w", err)
		}
	}

	count, err := r.countTokens()
	if err != nil {
		return len(expired) / 2, fmt.Errorf("failed to count tokens: %w", err)
	}
	r.count = count

	return len(expired) / 2, nil
}

// Len returns the number of stored tokens.
func (r *BadgerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close closes the database.
func (r *BadgerRegistry) Close() error {
	return r.db.Close()
}

// Healthcheck reports whether the database is open.
func (r *BadgerRegistry) Healthcheck(ctx context.Context) error {
	if r.db.IsClosed() {
		return fmt.Errorf("badger registry is closed")
	}
	return nil
}

func (r *BadgerRegistry) entry(k, v []byte) *badger.Entry {
	e := badger.NewEntry(k, v)
	if r.opts.TTL > 0 {
		e = e.WithTTL(r.opts.TTL + expiryGrace)
	}
	return e
}

func (r *BadgerRegistry) load(tok token.Token) (*record, error) {
	var rec *record
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, tok)
		return err
	})
	return rec, err
}

func getRecord(txn *badger.Txn, tok token.Token) (*record, error) {
	item, err := txn.Get(keyToken(tok))
	if err == badger.ErrKeyNotFound {
		return nil, token.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var rec record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode token record: %w", err)
	}
	return &rec, nil
}

func (r *BadgerRegistry) countTokens() (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = []byte(prefixToken)
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
