package kvstore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// KeyFunc renders a logical key into the byte string stored in Pebble.
// Map prefixes every rendered key with its own name so distinct maps never
// collide inside the shared database, the same "asset:", "bal:", "ord:"
// style prefix schemes used throughout pkg/asset and pkg/dex.
type KeyFunc[K any] func(K) []byte

// Codec encodes/decodes a record to/from the deterministic on-disk byte
// representation (RLP in this module — see codec.go).
type Codec[V any] struct {
	Encode func(V) ([]byte, error)
	Decode func([]byte) (V, error)
}

// Map is a named, typed, persistent map recovered by name across process
// restarts.
type Map[K any, V any] struct {
	store  *Store
	name   string
	keyFn  KeyFunc[K]
	codec  Codec[V]
}

// AllocOrRecoverMap obtains (creating if absent, recovering if present) the
// named persistent map. Calling it twice with the same name against the
// same Store yields two handles onto the same underlying key range.
func AllocOrRecoverMap[K any, V any](s *Store, name string, keyFn KeyFunc[K], codec Codec[V]) *Map[K, V] {
	return &Map[K, V]{store: s, name: name, keyFn: keyFn, codec: codec}
}

func (m *Map[K, V]) prefixedKey(k K) []byte {
	raw := m.keyFn(k)
	key := make([]byte, 0, len(m.name)+1+len(raw))
	key = append(key, m.name...)
	key = append(key, ':')
	key = append(key, raw...)
	return key
}

// Get returns the stored value and true, or the zero value and false if
// the key is absent.
func (m *Map[K, V]) Get(k K) (V, bool, error) {
	var zero V
	data, closer, err := m.store.db.Get(m.prefixedKey(k))
	if err == pebble.ErrNotFound {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("kvstore: get %s: %w", m.name, err)
	}
	defer closer.Close()

	v, err := m.codec.Decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("kvstore: decode %s: %w", m.name, err)
	}
	return v, true, nil
}

// Set writes v under k, immediately visible within the current state frame.
func (m *Map[K, V]) Set(k K, v V) error {
	data, err := m.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", m.name, err)
	}
	if err := m.store.db.Set(m.prefixedKey(k), data, pebble.Sync); err != nil {
		return fmt.Errorf("kvstore: set %s: %w", m.name, err)
	}
	return nil
}

// Delete removes k, a no-op if absent.
func (m *Map[K, V]) Delete(k K) error {
	if err := m.store.db.Delete(m.prefixedKey(k), pebble.Sync); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", m.name, err)
	}
	return nil
}

// Iter materializes every value currently stored in the map. Pebble's
// iteration order is lexicographic by encoded key, not by any
// domain-meaningful order — callers that need a consensus-relevant order
// (e.g. the DEX matcher's price-time priority) must sort the result
// themselves rather than rely on this order.
func (m *Map[K, V]) Iter(fn func(V) error) error {
	prefix := append([]byte(m.name), ':')
	iter, err := m.store.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("kvstore: iter %s: %w", m.name, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		v, err := m.codec.Decode(iter.Value())
		if err != nil {
			return fmt.Errorf("kvstore: decode %s: %w", m.name, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return iter.Error()
}
