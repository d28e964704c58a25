package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"onlyconnect-service/internal/store"
)

// Store implements store.Store on Redis optimistic transactions.
// Documents are JSON strings, collections are sets of ids and counters are
// integers updated with INCRBY:
//
//	{prefix}doc:{coll}/{id}   JSON document
//	{prefix}coll:{coll}       SET of document ids
//	{prefix}ctr:{coll}/{id}   integer counter
//
// Every key read inside a transaction is WATCHed before it is read, and all
// writes go out in one MULTI/EXEC, so EXEC fails if anything read changed.
type Store struct {
	client *redis.Client
	prefix string
	policy store.RetryPolicy
}

func NewStore(client *redis.Client, prefix string, policy store.RetryPolicy) *Store {
	return &Store{client: client, prefix: prefix, policy: policy}
}

func (s *Store) Now(ctx context.Context) (time.Time, error) {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.Retry(ctx, s.policy, func() error {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := &tx{
				s:      s,
				rtx:    rtx,
				docs:   make(map[string]docWrite),
				deltas: make(map[string]int64),
			}
			if err := fn(ctx, t); err != nil {
				// A rejection based on a stale read must be retried, not surfaced.
				if verr := t.validate(ctx); verr != nil {
					return verr
				}
				return err
			}
			return t.commit(ctx)
		})
		if errors.Is(err, redis.TxFailedErr) {
			return store.ErrConflict
		}
		return err
	})
}

type docWrite struct {
	coll string
	id   string
	data []byte
}

type tx struct {
	s      *Store
	rtx    *redis.Tx
	reads  int
	docs   map[string]docWrite
	deltas map[string]int64
}

func (t *tx) watch(ctx context.Context, key string) error {
	t.reads++
	return t.rtx.Watch(ctx, key).Err()
}

func (t *tx) Get(ctx context.Context, coll, id string, dst any) error {
	key := t.s.docKey(coll, id)
	if w, ok := t.docs[key]; ok {
		return json.Unmarshal(w.data, dst)
	}
	if err := t.watch(ctx, key); err != nil {
		return err
	}
	data, err := t.rtx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

func (t *tx) List(ctx context.Context, coll string) ([]string, error) {
	key := t.s.collKey(coll)
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	members, err := t.rtx.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(members))
	for _, id := range members {
		seen[id] = struct{}{}
	}
	for _, w := range t.docs {
		if _, ok := seen[w.id]; w.coll == coll && !ok {
			seen[w.id] = struct{}{}
			members = append(members, w.id)
		}
	}
	sort.Strings(members)
	return members, nil
}

func (t *tx) Set(coll, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.docs[t.s.docKey(coll, id)] = docWrite{coll: coll, id: id, data: data}
	return nil
}

func (t *tx) Counter(ctx context.Context, coll, id string) (int64, error) {
	key := t.s.counterKey(coll, id)
	if err := t.watch(ctx, key); err != nil {
		return 0, err
	}
	raw, err := t.rtx.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return t.deltas[key], nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return n + t.deltas[key], nil
}

func (t *tx) Increment(coll, id string, delta int64) {
	t.deltas[t.s.counterKey(coll, id)] += delta
}

func (t *tx) commit(ctx context.Context) error {
	if len(t.docs) == 0 && len(t.deltas) == 0 {
		return t.validate(ctx)
	}
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, w := range t.docs {
			pipe.Set(ctx, key, w.data, 0)
			pipe.SAdd(ctx, t.s.collKey(w.coll), w.id)
		}
		for key, delta := range t.deltas {
			pipe.IncrBy(ctx, key, delta)
		}
		return nil
	})
	return err
}

// validate runs an empty MULTI/EXEC so that watched keys are checked even
// when nothing is written.
func (t *tx) validate(ctx context.Context) error {
	if t.reads == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Ping(ctx)
		return nil
	})
	return err
}

func (s *Store) docKey(coll, id string) string     { return s.prefix + "doc:" + coll + "/" + id }
func (s *Store) collKey(coll string) string         { return s.prefix + "coll:" + coll }
func (s *Store) counterKey(coll, id string) string { return s.prefix + "ctr:" + coll + "/" + id }
