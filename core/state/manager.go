package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"sentechain/core/events"
	"sentechain/storage"
)

var heightKey = []byte("meta/height")

// ErrInvalidSnapshot is returned when reverting to an unknown revision.
var ErrInvalidSnapshot = errors.New("state: invalid snapshot id")

type entry struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key  string
	prev *entry
}

type revision struct {
	journal int
	events  int
}

// Manager is a journaled overlay over a storage.Database. Writes are buffered
// until Commit, snapshots may be taken and reverted at any depth, and events
// emitted through the manager are discarded together with the writes that
// produced them.
//
// The manager is not safe for concurrent mutation; callers serialise access
// (core.Node holds the single writer lock).
type Manager struct {
	db        storage.Database
	dirty     map[string]*entry
	journal   []journalEntry
	revisions []revision
	pending   []events.Event
	sink      events.Emitter
	nowFn     func() int64
	height    uint64
}

// NewManager opens a state manager over db, restoring the committed height.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: nil database")
	}
	m := &Manager{
		db:    db,
		dirty: make(map[string]*entry),
		sink:  events.NoopEmitter{},
		nowFn: func() int64 { return 0 },
	}
	raw, err := db.Get(heightKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("state: load height: %w", err)
	case len(raw) == 8:
		m.height = binary.BigEndian.Uint64(raw)
	default:
		return nil, fmt.Errorf("state: corrupt height record")
	}
	return m, nil
}

// SetSink configures where committed event records are published.
func (m *Manager) SetSink(sink events.Emitter) {
	if sink == nil {
		m.sink = events.NoopEmitter{}
		return
	}
	m.sink = sink
}

// SetNowFunc overrides the clock used to timestamp committed records.
func (m *Manager) SetNowFunc(now func() int64) {
	if now == nil {
		return
	}
	m.nowFn = now
}

// Height returns the number of committed mutations.
func (m *Manager) Height() uint64 { return m.height }

func (m *Manager) raw(key []byte) ([]byte, error) {
	if e, ok := m.dirty[string(key)]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) set(key []byte, e *entry) {
	k := string(key)
	m.journal = append(m.journal, journalEntry{key: k, prev: m.dirty[k]})
	m.dirty[k] = e
}

// KVPut RLP-encodes value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.set(key, &entry{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.raw(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.set(key, &entry{deleted: true})
	return nil
}

// KVAppend appends value to the RLP-encoded byte slice list stored under key.
// Duplicate values are ignored to keep the index deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList decodes the list stored under key into out, which must point to a
// slice. A missing key yields an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must be a non-nil slice pointer")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		val.Elem().Set(reflect.MakeSlice(val.Elem().Type(), 0, 0))
	}
	return nil
}

// Emit buffers evt until the current mutation commits.
func (m *Manager) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	m.pending = append(m.pending, evt)
}

// Snapshot returns a revision identifier usable with RevertToSnapshot.
func (m *Manager) Snapshot() int {
	m.revisions = append(m.revisions, revision{journal: len(m.journal), events: len(m.pending)})
	return len(m.revisions) - 1
}

// RevertToSnapshot undoes every write and event recorded after the snapshot
// was taken. Snapshots taken after id are invalidated.
func (m *Manager) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(m.revisions) {
		return ErrInvalidSnapshot
	}
	rev := m.revisions[id]
	for i := len(m.journal) - 1; i >= rev.journal; i-- {
		j := m.journal[i]
		if j.prev == nil {
			delete(m.dirty, j.key)
		} else {
			m.dirty[j.key] = j.prev
		}
	}
	m.journal = m.journal[:rev.journal]
	m.pending = m.pending[:rev.events]
	m.revisions = m.revisions[:id]
	return nil
}

// Discard drops every uncommitted write and event.
func (m *Manager) Discard() {
	m.dirty = make(map[string]*entry)
	m.journal = nil
	m.revisions = nil
	m.pending = nil
}

// Dirty reports whether uncommitted writes or events are buffered.
func (m *Manager) Dirty() bool {
	return len(m.dirty) > 0 || len(m.pending) > 0
}

// Commit atomically writes the overlay to the database, advances the height
// and publishes the buffered events as records. Committing an empty overlay
// is a no-op that returns the current height and no records.
func (m *Manager) Commit() (uint64, []events.Record, error) {
	if !m.Dirty() {
		m.Discard()
		return m.height, nil, nil
	}
	next := m.height + 1
	batch := m.db.NewBatch()
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := m.dirty[k]
		if e.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), e.value)
	}
	var encodedHeight [8]byte
	binary.BigEndian.PutUint64(encodedHeight[:], next)
	batch.Put(heightKey, encodedHeight[:])
	if err := batch.Write(); err != nil {
		m.Discard()
		return m.height, nil, fmt.Errorf("state: commit: %w", err)
	}
	m.height = next
	now := m.nowFn()
	records := make([]events.Record, 0, len(m.pending))
	for i, evt := range m.pending {
		records = append(records, events.Record{
			Height:    next,
			Index:     i,
			Timestamp: now,
			Event:     events.ToTypes(evt),
		})
	}
	m.Discard()
	for _, rec := range records {
		m.sink.Emit(rec)
	}
	return next, records, nil
}
