// Package kvstore adapts a single Pebble database into the named,
// typed persistent containers the CORE's services are built against:
// alloc-or-recover maps and scalars, obtained once at service
// construction time and reused across every block.
package kvstore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store wraps a single Pebble database. Every named Map or Uint64Scalar
// obtained from the same Store shares the underlying handle; re-requesting
// the same name after a restart recovers the same persistent slot by
// re-deriving its key prefix rather than storing a directory of prefixes.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i]++
		if bound[i] != 0 {
			return bound
		}
	}
	return append(bound, 0xff)
}
