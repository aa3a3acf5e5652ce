// Package badger is a durable Store implementation, grounded verbatim
// on the teacher's pkg/persistence/badger/badger.go: SyncWrites-enabled
// badger, a schema-version key checked at startup, and a background
// value-log GC goroutine.
package badger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/types"
)

const (
	keyConsensusState  = "consensus:state"
	keyRolloverState   = "machine:rollover"
	keySigningPrefix   = "machine:signing:"
	keySchemaVersion   = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// Store is a badger-backed, durable Store.
type Store struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gc       *gcLoop
	mu       sync.RWMutex
	closed   bool
}

// Open opens (or creates) a badger database at dataPath with
// SyncWrites enabled for durability, exactly the teacher's
// NewBadgerPersistence configuration.
func Open(dataPath string, logger *zap.Logger) (*Store, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("storage/badger: resolving absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage/badger: opening database at %s: %w", absPath, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage/badger: initializing schema: %w", err)
	}

	s.gc = startGCLoop(db, logger)

	logger.Sugar().Infow("badger storage initialized", "path", absPath)
	return s, nil
}

func (s *Store) initSchema() error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}

		var existing string
		if err := item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		}); err != nil {
			return fmt.Errorf("reading schema version value: %w", err)
		}
		if existing != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (s *Store) ConsensusState() (*types.ConsensusState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	out := types.NewConsensusState()
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyConsensusState))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage/badger: loading consensus state: %w", err)
	}
	return out, nil
}

func (s *Store) MachineStates() (*types.MachineStates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	out := &types.MachineStates{
		Rollover: types.RolloverState{Status: types.RolloverWaiting},
		Signing:  make(map[[32]byte]types.SigningEntry),
	}

	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyRolloverState))
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		if err == nil {
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &out.Rollover)
			}); err != nil {
				return err
			}
		}

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keySigningPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(keySigningPrefix)); it.ValidForPrefix([]byte(keySigningPrefix)); it.Next() {
			var entry types.SigningEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			out.Signing[entry.SignatureID] = entry
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage/badger: loading machine states: %w", err)
	}
	return out, nil
}

// ApplyDiff persists diff within a single badger transaction, so a
// mid-write failure leaves the prior state entirely intact.
func (s *Store) ApplyDiff(diff types.StateDiff) ([]types.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if diff.Rollover != nil {
			payload, err := json.Marshal(diff.Rollover)
			if err != nil {
				return fmt.Errorf("marshaling rollover state: %w", err)
			}
			if err := txn.Set([]byte(keyRolloverState), payload); err != nil {
				return err
			}
		}

		for sid, entry := range diff.SigningUpsert {
			payload, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshaling signing entry: %w", err)
			}
			if err := txn.Set(signingKey(sid), payload); err != nil {
				return err
			}
		}
		for _, sid := range diff.SigningDelete {
			if err := txn.Delete(signingKey(sid)); err != nil && err != badgerdb.ErrKeyNotFound {
				return err
			}
		}

		return s.applyConsensusPatch(txn, diff.Consensus)
	})
	if err != nil {
		return nil, fmt.Errorf("storage/badger: applying diff: %w", err)
	}

	actions := make([]types.Action, len(diff.Actions))
	copy(actions, diff.Actions)
	return actions, nil
}

func (s *Store) applyConsensusPatch(txn *badgerdb.Txn, patch types.ConsensusPatch) error {
	current := types.NewConsensusState()
	item, err := txn.Get([]byte(keyConsensusState))
	if err != nil && err != badgerdb.ErrKeyNotFound {
		return err
	}
	if err == nil {
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, current)
		}); err != nil {
			return err
		}
	}

	if patch.ActiveEpoch != nil {
		current.ActiveEpoch = *patch.ActiveEpoch
	}
	if patch.StagedEpoch != nil {
		current.StagedEpoch = *patch.StagedEpoch
	}
	if patch.GenesisGroupID != nil {
		id := *patch.GenesisGroupID
		current.GenesisGroupID = &id
	}
	for epoch, group := range patch.EpochGroupSet {
		current.EpochGroups[epoch] = group
	}
	for gid, pending := range patch.GroupPendingNoncesSet {
		current.GroupPendingNonces[gid] = pending
	}
	for sid, msg := range patch.SignatureIDToMessageSet {
		current.SignatureIDToMessage[sid] = msg
	}
	for _, sid := range patch.SignatureIDToMessageDel {
		delete(current.SignatureIDToMessage, sid)
	}

	payload, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshaling consensus state: %w", err)
	}
	return txn.Set([]byte(keyConsensusState), payload)
}

func signingKey(sid [32]byte) []byte {
	return append([]byte(keySigningPrefix), sid[:]...)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.gc.stop()
	return s.db.Close()
}

func (s *Store) HealthCheck() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

var errClosed = fmt.Errorf("storage/badger: store is closed")
