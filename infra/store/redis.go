package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/aidline/aidline/core/model"
	corestore "github.com/aidline/aidline/core/store"
)

// RedisConfig defines the connection parameters for the Redis store.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// RedisStore persists cases and responders in Redis. The version
// compare-and-swap is implemented with WATCH/MULTI: a concurrent write to
// the same case key aborts the transaction and surfaces
// ErrConcurrencyConflict.
type RedisStore struct {
	cli *redis.Client
}

// NewRedisStore connects to Redis and pings it once.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{cli: cli}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used in tests.
func NewRedisStoreWithClient(cli *redis.Client) *RedisStore {
	return &RedisStore{cli: cli}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.cli.Close() }

func caseKey(id string) string          { return "case:" + id }
func responderKey(id string) string     { return "responder:" + id }
func kindKey(k model.ResponderKind) string { return "responders:" + string(k) }

const caseIndexKey = "cases"

// Create stores a new case and indexes its id.
func (s *RedisStore) Create(ctx context.Context, c *model.Case) error {
	c.Version = 1
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ok, err := s.cli.SetNX(ctx, caseKey(c.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return corestore.ErrCaseExists
	}
	return s.cli.SAdd(ctx, caseIndexKey, c.ID).Err()
}

// Save commits the case if the stored version still matches c.Version.
func (s *RedisStore) Save(ctx context.Context, c *model.Case) error {
	key := caseKey(c.ID)
	err := s.cli.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return corestore.ErrCaseNotFound
		}
		if err != nil {
			return err
		}
		var cur model.Case
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.Version != c.Version {
			return corestore.ErrConcurrencyConflict
		}
		c.Version++
		out, err := json.Marshal(c)
		if err != nil {
			c.Version--
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			c.Version--
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return corestore.ErrConcurrencyConflict
	}
	return err
}

// Load returns the case stored under id.
func (s *RedisStore) Load(ctx context.Context, id string) (*model.Case, error) {
	raw, err := s.cli.Get(ctx, caseKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, corestore.ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	var c model.Case
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List scans the case index and filters in memory. The set of active
// cases is small enough that a scan is fine here.
func (s *RedisStore) List(ctx context.Context, f corestore.Filter) ([]*model.Case, error) {
	ids, err := s.cli.SMembers(ctx, caseIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.Load(ctx, id)
		if errors.Is(err, corestore.ErrCaseNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ReporterID != "" && c.ReporterID != f.ReporterID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PutResponder adds or replaces a responder organization.
func (s *RedisStore) PutResponder(ctx context.Context, r model.ResponderLocation) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.cli.Set(ctx, responderKey(r.OrganizationID), raw, 0).Err(); err != nil {
		return err
	}
	return s.cli.SAdd(ctx, kindKey(r.Kind), r.OrganizationID).Err()
}

// ListResponders returns all responders of the given kind.
func (s *RedisStore) ListResponders(ctx context.Context, kind model.ResponderKind) ([]model.ResponderLocation, error) {
	ids, err := s.cli.SMembers(ctx, kindKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.ResponderLocation, 0, len(ids))
	for _, id := range ids {
		r, err := s.Organization(ctx, id)
		if errors.Is(err, corestore.ErrOrganizationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

// Organization returns one responder by id.
func (s *RedisStore) Organization(ctx context.Context, id string) (*model.ResponderLocation, error) {
	raw, err := s.cli.Get(ctx, responderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, corestore.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	var r model.ResponderLocation
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
