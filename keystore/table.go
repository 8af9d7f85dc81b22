package keystore

import (
	"sort"
	"time"
)

// Table is an immutable view of the installed keys. Every mutation of a
// [Store] publishes a new Table; a Table obtained from [Store.Snapshot] never
// changes afterwards.
type Table struct {
	keys    map[string]*SigningKey
	current string
	version uint64
}

var emptyTable = &Table{keys: map[string]*SigningKey{}}

// Current returns the issuance key. It fails with [ErrNoKeyConfigured] when
// no key is current or the current key's window excludes now.
func (t *Table) Current(now time.Time) (*SigningKey, error) {
	if t == nil || t.current == "" {
		return nil, ErrNoKeyConfigured
	}
	k, ok := t.keys[t.current]
	if !ok || !k.ValidAt(now) {
		return nil, ErrNoKeyConfigured
	}
	return k, nil
}

// Lookup resolves kid for verification. It fails with [ErrUnknownKey] when
// the id is absent or the key's window excludes now.
func (t *Table) Lookup(kid string, now time.Time) (*SigningKey, error) {
	if t == nil || kid == "" {
		return nil, ErrUnknownKey
	}
	k, ok := t.keys[kid]
	if !ok || !k.ValidAt(now) {
		return nil, ErrUnknownKey
	}
	return k, nil
}

// CurrentID returns the id of the current key, or "" when none is installed.
func (t *Table) CurrentID() string {
	if t == nil {
		return ""
	}
	return t.current
}

// Len returns the number of installed keys, including expired ones not yet pruned.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Version increases by one with every published table.
func (t *Table) Version() uint64 {
	if t == nil {
		return 0
	}
	return t.version
}

// Infos lists key metadata ordered by not-before, then id.
func (t *Table) Infos() []KeyInfo {
	if t == nil {
		return nil
	}
	out := make([]KeyInfo, 0, len(t.keys))
	for id, k := range t.keys {
		info := k.Info()
		info.Current = id == t.current
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NotBefore.Equal(out[j].NotBefore) {
			return out[i].NotBefore.Before(out[j].NotBefore)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Table) clone() *Table {
	next := &Table{
		keys:    make(map[string]*SigningKey, len(t.keys)+1),
		current: t.current,
		version: t.version + 1,
	}
	for id, k := range t.keys {
		next.keys[id] = k
	}
	return next
}

// prune drops keys whose window has ended, except keep.
func (t *Table) prune(now time.Time, keep string) int {
	removed := 0
	for id, k := range t.keys {
		if id == keep {
			continue
		}
		if na := k.window.NotAfter; !na.IsZero() && !now.Before(na) {
			delete(t.keys, id)
			removed++
		}
	}
	if _, ok := t.keys[t.current]; !ok {
		t.current = ""
	}
	return removed
}
