package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

// Redis shares scan results across replicas. Entries are namespaced by a
// per tenant/kind generation counter, so invalidation is one INCR.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) generation(ctx context.Context, tenantID string, kind models.EntityKind) (Generation, error) {
	raw, err := r.client.Get(ctx, generationKey(tenantID, kind))
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	return Generation(n), err
}

func (r *Redis) Get(ctx context.Context, key ScanKey) (*Entry, Generation, error) {
	gen, err := r.generation(ctx, key.TenantID, key.Kind)
	if err != nil {
		return nil, 0, err
	}

	raw, err := r.client.Get(ctx, entryKey(key, gen))
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, gen, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, gen, fmt.Errorf("failed to decode cached scan: %w", err)
	}
	return &entry, gen, nil
}

// Set writes under gen, not the current generation. A stale write lands in a
// namespace no reader looks at and expires with the TTL.
func (r *Redis) Set(ctx context.Context, key ScanKey, gen Generation, entry *Entry) error {
	current, err := r.generation(ctx, key.TenantID, key.Kind)
	if err != nil {
		return err
	}
	if current != gen {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, entryKey(key, gen), data, r.ttl)
}

func (r *Redis) Invalidate(ctx context.Context, tenantID string, kind models.EntityKind) error {
	_, err := r.client.Incr(ctx, generationKey(tenantID, kind))
	return err
}
