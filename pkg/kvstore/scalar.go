package kvstore

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Uint64Scalar is a named persistent u64 recovered by name across
// restarts. Used for the DEX's "validity" window.
type Uint64Scalar struct {
	store *Store
	key   []byte
}

func AllocOrRecoverUint64(s *Store, name string) *Uint64Scalar {
	return &Uint64Scalar{store: s, key: append([]byte("scalar:"), name...)}
}

func (u *Uint64Scalar) Get() (uint64, error) {
	data, closer, err := u.store.db.Get(u.key)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kvstore: get scalar: %w", err)
	}
	defer closer.Close()
	if len(data) != 8 {
		return 0, fmt.Errorf("kvstore: corrupt scalar (len=%d)", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (u *Uint64Scalar) Set(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if err := u.store.db.Set(u.key, buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("kvstore: set scalar: %w", err)
	}
	return nil
}
