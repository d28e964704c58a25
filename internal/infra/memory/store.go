package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"onlyconnect-service/internal/store"
)

// Store is an in-process implementation of store.Store.
// Every committed write stamps the records it touches with a new sequence
// number; a transaction that reads a record newer than its starting sequence
// conflicts and is retried from scratch.
type Store struct {
	policy store.RetryPolicy
	now    func() time.Time

	mu      sync.RWMutex
	seq     uint64
	records map[string]*record
}

type record struct {
	version uint64
	doc     []byte
	counter int64
	members map[string]struct{}
}

func NewStore(policy store.RetryPolicy) *Store {
	return NewStoreWithClock(policy, time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(policy store.RetryPolicy, now func() time.Time) *Store {
	return &Store{
		policy:  policy,
		now:     now,
		records: make(map[string]*record),
	}
}

func (s *Store) Now(context.Context) (time.Time, error) {
	return s.now().UTC(), nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.Retry(ctx, s.policy, func() error {
		s.mu.RLock()
		t := newTx(s, s.seq)
		s.mu.RUnlock()

		if err := fn(ctx, t); err != nil {
			return err
		}
		return s.commit(t)
	})
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range t.reads {
		if rec, ok := s.records[key]; ok && rec.version > t.start {
			return store.ErrConflict
		}
	}
	if len(t.docs) == 0 && len(t.deltas) == 0 {
		return nil
	}

	s.seq++
	version := s.seq
	for key, w := range t.docs {
		rec := s.record(key)
		rec.doc = w.data
		rec.version = version

		coll := s.record(collKey(w.coll))
		if coll.members == nil {
			coll.members = make(map[string]struct{})
		}
		if _, ok := coll.members[w.id]; !ok {
			coll.members[w.id] = struct{}{}
			coll.version = version
		}
	}
	for key, delta := range t.deltas {
		rec := s.record(key)
		rec.counter += delta
		rec.version = version
	}
	return nil
}

func (s *Store) record(key string) *record {
	rec, ok := s.records[key]
	if !ok {
		rec = &record{}
		s.records[key] = rec
	}
	return rec
}

type docWrite struct {
	coll string
	id   string
	data []byte
}

type tx struct {
	s      *Store
	start  uint64
	reads  map[string]struct{}
	docs   map[string]docWrite
	deltas map[string]int64
}

func newTx(s *Store, start uint64) *tx {
	return &tx{
		s:      s,
		start:  start,
		reads:  make(map[string]struct{}),
		docs:   make(map[string]docWrite),
		deltas: make(map[string]int64),
	}
}

// read returns a copy of the committed record at key, failing if it changed
// after the transaction started.
func (t *tx) read(key string) (record, error) {
	t.reads[key] = struct{}{}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	rec, ok := t.s.records[key]
	if !ok {
		return record{}, nil
	}
	if rec.version > t.start {
		return record{}, store.ErrConflict
	}
	out := record{version: rec.version, doc: rec.doc, counter: rec.counter}
	if rec.members != nil {
		out.members = make(map[string]struct{}, len(rec.members))
		for id := range rec.members {
			out.members[id] = struct{}{}
		}
	}
	return out, nil
}

func (t *tx) Get(_ context.Context, coll, id string, dst any) error {
	key := docKey(coll, id)
	if w, ok := t.docs[key]; ok {
		return json.Unmarshal(w.data, dst)
	}
	rec, err := t.read(key)
	if err != nil {
		return err
	}
	if rec.doc == nil {
		return store.ErrNotFound
	}
	return json.Unmarshal(rec.doc, dst)
}

func (t *tx) List(_ context.Context, coll string) ([]string, error) {
	rec, err := t.read(collKey(coll))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(rec.members))
	for id := range rec.members {
		ids[id] = struct{}{}
	}
	for _, w := range t.docs {
		if w.coll == coll {
			ids[w.id] = struct{}{}
		}
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (t *tx) Set(coll, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.docs[docKey(coll, id)] = docWrite{coll: coll, id: id, data: data}
	return nil
}

func (t *tx) Counter(_ context.Context, coll, id string) (int64, error) {
	key := counterKey(coll, id)
	rec, err := t.read(key)
	if err != nil {
		return 0, err
	}
	return rec.counter + t.deltas[key], nil
}

func (t *tx) Increment(coll, id string, delta int64) {
	t.deltas[counterKey(coll, id)] += delta
}

func docKey(coll, id string) string     { return "d/" + coll + "/" + id }
func collKey(coll string) string         { return "c/" + coll }
func counterKey(coll, id string) string { return "n/" + coll + "/" + id }
