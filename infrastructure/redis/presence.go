package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-relay/domain"
	"chat-relay/errors"
)

// PresenceStore keeps one hash per connection and one set per identity:
//
//	presence:conn:<connID>   hash {identity, last_alive_at}, TTL = liveness window
//	presence:user:<identity> set of connection ids
//
// A connection id lives in exactly one hash, so it appears in at most one
// presence entry system-wide. The hash TTL is the liveness timestamp: a
// process crash leaves the hash to expire, and the sweeper reconciles the
// orphaned set members afterwards.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewPresenceStore(client *redis.Client, ttl time.Duration, log *slog.Logger) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl, log: log}
}

// Register creates or refreshes the presence entry for a connection.
// Idempotent: re-registering a known connection only overwrites its
// liveness timestamp.
func (s *PresenceStore) Register(ctx context.Context, identity domain.Identity, conn domain.ConnectionID) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, connKey(conn),
		"identity", string(identity),
		"last_alive_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, connKey(conn), s.ttl)
	pipe.SAdd(ctx, userKey(identity), string(conn))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: register %s: %v", errors.ErrRegistryUnavailable, conn, err)
	}
	return nil
}

// Unregister deletes the presence entry. Unknown connections are a no-op so
// that disconnect races stay idempotent.
func (s *PresenceStore) Unregister(ctx context.Context, conn domain.ConnectionID) error {
	identity, err := s.client.HGet(ctx, connKey(conn), "identity").Result()
	switch {
	case err == redis.Nil:
		// Entry already expired. The set member, if any, is swept later.
		return nil
	case err != nil:
		return fmt.Errorf("%w: unregister %s: %v", errors.ErrRegistryUnavailable, conn, err)
	}

	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, userKey(domain.Identity(identity)), string(conn))
	pipe.Del(ctx, connKey(conn))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: unregister %s: %v", errors.ErrRegistryUnavailable, conn, err)
	}
	return nil
}

// Heartbeat refreshes the liveness timestamp of a known connection.
func (s *PresenceStore) Heartbeat(ctx context.Context, conn domain.ConnectionID) error {
	ok, err := s.client.Expire(ctx, connKey(conn), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: heartbeat %s: %v", errors.ErrRegistryUnavailable, conn, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConnectionNotFound, conn)
	}
	err = s.client.HSet(ctx, connKey(conn),
		"last_alive_at", time.Now().UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return fmt.Errorf("%w: heartbeat %s: %v", errors.ErrRegistryUnavailable, conn, err)
	}
	return nil
}

// ConnectionsOf returns the live connections of an identity. Set members
// whose hash expired are pruned on the way out.
func (s *PresenceStore) ConnectionsOf(ctx context.Context, identity domain.Identity) ([]domain.ConnectionID, error) {
	members, err := s.client.SMembers(ctx, userKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: connections of %s: %v", errors.ErrRegistryUnavailable, identity, err)
	}

	live := make([]domain.ConnectionID, 0, len(members))
	for _, m := range members {
		exists, err := s.client.Exists(ctx, connKey(domain.ConnectionID(m))).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: connections of %s: %v", errors.ErrRegistryUnavailable, identity, err)
		}
		if exists == 0 {
			if err := s.client.SRem(ctx, userKey(identity), m).Err(); err != nil {
				s.log.Warn("Failed to prune expired presence member", "identity", identity, "conn", m, "error", err)
			}
			continue
		}
		live = append(live, domain.ConnectionID(m))
	}
	return live, nil
}

// Sweep drops set members whose connection hash expired, reconciling
// presence entries left behind by crashed processes.
func (s *PresenceStore) Sweep(ctx context.Context) (int, error) {
	var removed int
	iter := s.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		members, err := s.client.SMembers(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: sweep %s: %v", errors.ErrRegistryUnavailable, key, err)
		}
		for _, m := range members {
			exists, err := s.client.Exists(ctx, connKey(domain.ConnectionID(m))).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: sweep %s: %v", errors.ErrRegistryUnavailable, key, err)
			}
			if exists == 0 {
				if err := s.client.SRem(ctx, key, m).Err(); err != nil {
					s.log.Warn("Failed to sweep stale presence member", "key", key, "conn", m, "error", err)
					continue
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: sweep scan: %v", errors.ErrRegistryUnavailable, err)
	}
	return removed, nil
}
