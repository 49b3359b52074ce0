// Package redisstore is a flat document backend on Redis. Each document is a CBOR-encoded
// string key; a sorted set per collection keeps ids in lexical order and a hash maps the
// "id" alias field to the native id.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/flat"
)

const (
	writeAttempts = 3
	scanBatch     = 200
)

type envelope struct {
	Version int64          `cbor:"v"`
	Data    map[string]any `cbor:"d"`
}

// Store implements flat.Backend and flat.Purger.
type Store struct {
	client *redis.Client
	prefix string
	dec    cbor.DecMode
}

// New builds a backend. prefix namespaces every key, e.g. "lexicon:".
func New(client *redis.Client, prefix string) (*Store, error) {
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &Store{client: client, prefix: prefix, dec: dec}, nil
}

func (s *Store) docKey(collection, id string) string {
	return s.prefix + "doc:" + collection + ":" + id
}

func (s *Store) indexKey(collection string) string {
	return s.prefix + "idx:" + collection
}

func (s *Store) aliasKey(collection string) string {
	return s.prefix + "alias:" + collection
}

// Health pings Redis.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) decode(id string, raw []byte) (flat.Record, error) {
	var env envelope
	if err := s.dec.Unmarshal(raw, &env); err != nil {
		return flat.Record{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	return flat.Record{ID: id, Version: env.Version, Data: env.Data}, nil
}

func (s *Store) load(ctx context.Context, c redis.Cmdable, collection, id string) (flat.Record, bool, error) {
	raw, err := c.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return flat.Record{}, false, nil
	}
	if err != nil {
		return flat.Record{}, false, fmt.Errorf("get document: %w", err)
	}
	rec, err := s.decode(id, raw)
	if err != nil {
		return flat.Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (flat.Record, bool, error) {
	return s.load(ctx, s.client, collection, id)
}

// GetByField answers alias lookups from the alias hash and other fields by scanning.
func (s *Store) GetByField(ctx context.Context, collection, field, value string) (flat.Record, bool, error) {
	if field == flat.AliasField {
		id, err := s.client.HGet(ctx, s.aliasKey(collection), value).Result()
		if errors.Is(err, redis.Nil) {
			return flat.Record{}, false, nil
		}
		if err != nil {
			return flat.Record{}, false, fmt.Errorf("get alias: %w", err)
		}
		return s.load(ctx, s.client, collection, id)
	}
	records, err := s.Scan(ctx, collection)
	if err != nil {
		return flat.Record{}, false, err
	}
	for _, r := range records {
		if v, ok := r.Data[field].(string); ok && v == value {
			return r, true, nil
		}
	}
	return flat.Record{}, false, nil
}

func aliasOf(data map[string]any) string {
	if v, ok := data[flat.AliasField].(string); ok {
		return v
	}
	return ""
}

// Put runs an optimistic WATCH/MULTI transaction on the document key. Unconditional writes
// retry when another client touched the key; conditional writes report the conflict.
func (s *Store) Put(ctx context.Context, collection, id string, data map[string]any, cond docstore.Conditions) (int64, error) {
	key := s.docKey(collection, id)
	path := docstore.JoinPath(collection, id)
	var next int64

	txf := func(tx *redis.Tx) error {
		cur, exists, err := s.load(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if err := cond.Check(path, cur.Version, exists); err != nil {
			return err
		}
		next = cur.Version + 1
		payload, err := cbor.Marshal(envelope{Version: next, Data: data})
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		oldAlias, newAlias := aliasOf(cur.Data), aliasOf(data)
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, 0)
			p.ZAdd(ctx, s.indexKey(collection), redis.Z{Score: 0, Member: id})
			if oldAlias != "" && oldAlias != newAlias {
				p.HDel(ctx, s.aliasKey(collection), oldAlias)
			}
			if newAlias != "" {
				p.HSetNX(ctx, s.aliasKey(collection), newAlias, id)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < writeAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return 0, err
		}
		if !cond.Empty() {
			return 0, &docstore.ConflictError{Path: path, Expected: cond.Version, Reason: "concurrent write"}
		}
	}
	return 0, &docstore.ConflictError{Path: path, Reason: "write retries exhausted"}
}

func (s *Store) Delete(ctx context.Context, collection, id string, cond docstore.Conditions) error {
	key := s.docKey(collection, id)
	path := docstore.JoinPath(collection, id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, exists, err := s.load(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if err := cond.Check(path, cur.Version, exists); err != nil {
			return err
		}
		if !exists {
			return nil
		}
		alias := aliasOf(cur.Data)
		var ownsAlias bool
		if alias != "" {
			owner, err := tx.HGet(ctx, s.aliasKey(collection), alias).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("get alias: %w", err)
			}
			ownsAlias = owner == id
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.ZRem(ctx, s.indexKey(collection), id)
			if ownsAlias {
				p.HDel(ctx, s.aliasKey(collection), alias)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return &docstore.ConflictError{Path: path, Expected: cond.Version, Reason: "concurrent write"}
	}
	return err
}

// Scan reads ids from the index and fetches documents in MGET batches.
func (s *Store) Scan(ctx context.Context, collection string) ([]flat.Record, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	sort.Strings(ids)
	out := make([]flat.Record, 0, len(ids))
	for start := 0; start < len(ids); start += scanBatch {
		end := min(start+scanBatch, len(ids))
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, s.docKey(collection, id))
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("fetch documents: %w", err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				// Index entry without a document: deleted between ZRANGE and MGET.
				continue
			}
			rec, err := s.decode(ids[start+i], []byte(raw))
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Purge removes every document, index and alias key of the named collections.
func (s *Store) Purge(ctx context.Context, collections []string) error {
	for _, collection := range collections {
		ids, err := s.client.ZRange(ctx, s.indexKey(collection), 0, -1).Result()
		if err != nil {
			return fmt.Errorf("list ids: %w", err)
		}
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				p.Del(ctx, s.docKey(collection, id))
			}
			p.Del(ctx, s.indexKey(collection), s.aliasKey(collection))
			return nil
		})
		if err != nil {
			return fmt.Errorf("purge %s: %w", collection, err)
		}
	}
	return nil
}
