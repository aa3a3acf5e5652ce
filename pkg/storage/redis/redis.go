// Package redis is a hot-standby read-cache Store, supplementing the
// spec's two required backends (memory, badger) with a third, grounded
// verbatim on the teacher's pkg/persistence/redis/redis.go (schema
// version key, Ping on construction, JSON payloads, key-prefix support
// for multi-tenant setups). Unlike badger it is not the primary durable
// store. ApplyDiff mirrors the rollover state and signing entries of a
// diff; it does not write consensus patches, so ConsensusState reads
// return whatever was last stored under the consensus key. A failed
// pipeline write is logged, not returned; marshaling errors and read
// errors are returned.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/types"
)

const (
	keyConsensusState    = "validator:consensus:state"
	keyRolloverState     = "validator:machine:rollover"
	keySigningPrefix     = "validator:machine:signing:"
	keySetSigningIndex   = "validator:machine:signing:index"
	keySchemaVersion     = "validator:metadata:schema_version"
	currentSchemaVersion = "v1"
)

// Config holds the Redis connection parameters, matching the teacher's
// RedisConfig shape.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// Store mirrors diffs into Redis for hot-standby rehydration. It is
// never the sole store of record.
type Store struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// Open connects to Redis, validates the schema version, and returns a
// ready Store.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("storage/redis: address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage/redis: connecting to %s: %w", cfg.Address, err)
	}

	s := &Store{client: client, logger: logger, keyPrefix: cfg.KeyPrefix}
	if err := s.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage/redis: initializing schema: %w", err)
	}

	logger.Sugar().Infow("redis hot-standby cache initialized", "address", cfg.Address, "db", cfg.DB)
	return s, nil
}

func (s *Store) prefixKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + key
}

func (s *Store) initSchema(ctx context.Context) error {
	schemaKey := s.prefixKey(keySchemaVersion)
	existing, err := s.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return s.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if existing != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected %s)", existing, currentSchemaVersion)
	}
	return nil
}

// ConsensusState rehydrates the consensus singleton from Redis.
func (s *Store) ConsensusState() (*types.ConsensusState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	out := types.NewConsensusState()
	ctx := context.Background()
	data, err := s.client.Get(ctx, s.prefixKey(keyConsensusState)).Bytes()
	if err == redis.Nil {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage/redis: loading consensus state: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("storage/redis: unmarshaling consensus state: %w", err)
	}
	return out, nil
}

// MachineStates rehydrates the rollover and signing sub-machine states
// from Redis.
func (s *Store) MachineStates() (*types.MachineStates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	ctx := context.Background()
	out := &types.MachineStates{
		Rollover: types.RolloverState{Status: types.RolloverWaiting},
		Signing:  make(map[[32]byte]types.SigningEntry),
	}

	rolloverData, err := s.client.Get(ctx, s.prefixKey(keyRolloverState)).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("storage/redis: loading rollover state: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(rolloverData, &out.Rollover); err != nil {
			return nil, fmt.Errorf("storage/redis: unmarshaling rollover state: %w", err)
		}
	}

	indexKey := s.prefixKey(keySetSigningIndex)
	members, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("storage/redis: listing signing index: %w", err)
	}
	for _, member := range members {
		data, err := s.client.Get(ctx, s.prefixKey(keySigningPrefix+member)).Bytes()
		if err == redis.Nil {
			s.client.SRem(ctx, indexKey, member)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage/redis: loading signing entry %s: %w", member, err)
		}
		var entry types.SigningEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("storage/redis: unmarshaling signing entry %s: %w", member, err)
		}
		out.Signing[entry.SignatureID] = entry
	}

	return out, nil
}

// ApplyDiff mirrors diff into Redis best-effort: a failed mirror write
// is logged, not returned, since Redis here is a standby cache, not the
// store of record (see package doc).
func (s *Store) ApplyDiff(diff types.StateDiff) ([]types.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}

	ctx := context.Background()
	pipe := s.client.Pipeline()

	if diff.Rollover != nil {
		payload, err := json.Marshal(diff.Rollover)
		if err != nil {
			return nil, fmt.Errorf("storage/redis: marshaling rollover state: %w", err)
		}
		pipe.Set(ctx, s.prefixKey(keyRolloverState), payload, 0)
	}

	for sid, entry := range diff.SigningUpsert {
		payload, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("storage/redis: marshaling signing entry: %w", err)
		}
		member := fmt.Sprintf("%x", sid)
		pipe.Set(ctx, s.prefixKey(keySigningPrefix+member), payload, 0)
		pipe.SAdd(ctx, s.prefixKey(keySetSigningIndex), member)
	}
	for _, sid := range diff.SigningDelete {
		member := fmt.Sprintf("%x", sid)
		pipe.Del(ctx, s.prefixKey(keySigningPrefix+member))
		pipe.SRem(ctx, s.prefixKey(keySetSigningIndex), member)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Sugar().Warnw("redis hot-standby mirror failed", "error", err)
	}

	actions := make([]types.Action, len(diff.Actions))
	copy(actions, diff.Actions)
	return actions, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("storage/redis: closing client: %w", err)
	}
	return nil
}

func (s *Store) HealthCheck() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("storage/redis: health check: %w", err)
	}
	return nil
}

var errClosed = fmt.Errorf("storage/redis: store is closed")
