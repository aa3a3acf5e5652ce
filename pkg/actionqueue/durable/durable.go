// Package durable is a badger-backed actionqueue.Queue, persisting
// FIFO order across process restart (spec.md §4.5's durability
// requirement). Grounded on the teacher's
// pkg/persistence/badger/badger.go (schema-versioned, SyncWrites
// durability, background GC) and spec.md §6's
// "queue_<name>(id INTEGER PK AUTOINCREMENT, payload TEXT)" table
// shape, here expressed as a badger keyspace "queue:<name>:<seq>"
// ordered by a monotonic uint64 sequence rather than a SQL
// autoincrement column.
package durable

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/shieldnet/validator-core/pkg/actionqueue"
	"github.com/shieldnet/validator-core/pkg/types"
)

const (
	keyPrefixFmt  = "queue:%s:"
	keySeqCounter = "queue:%s:meta:next_seq"
)

// Queue is a durable, ordered-by-sequence-key FIFO over a badger
// keyspace namespaced by name, so one badger.DB instance can back
// several named queues.
type Queue struct {
	db       *badgerdb.DB
	name     string
	logger   *zap.Logger
	mu       sync.Mutex
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	closed   bool
}

// Open opens (or creates) a durable queue named name backed by db.
// The caller owns db's lifecycle if it is shared across multiple
// queues; pass a dedicated *badgerdb.DB and call Close to shut both
// down together otherwise.
func Open(db *badgerdb.DB, name string, logger *zap.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{db: db, name: name, logger: logger, gcCancel: cancel}

	q.gcWg.Add(1)
	go q.runGC(ctx)

	return q
}

func (q *Queue) runGC(ctx context.Context) {
	defer q.gcWg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := q.db.RunValueLogGC(0.5); err != nil && err != badgerdb.ErrNoRewrite {
				q.logger.Sugar().Warnw("durable actionqueue GC error", "queue", q.name, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func seqKey(name string, seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append([]byte(fmt.Sprintf(keyPrefixFmt, name)), b[:]...)
}

func (q *Queue) nextSeq(txn *badgerdb.Txn) (uint64, error) {
	key := []byte(fmt.Sprintf(keySeqCounter, q.name))
	item, err := txn.Get(key)
	var current uint64
	if err == nil {
		if err := item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	} else if err != badgerdb.ErrKeyNotFound {
		return 0, err
	}

	next := current + 1
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], next)
	if err := txn.Set(key, b[:]); err != nil {
		return 0, err
	}
	return next, nil
}

func (q *Queue) Enqueue(action types.Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errClosed
	}

	return q.db.Update(func(txn *badgerdb.Txn) error {
		seq, err := q.nextSeq(txn)
		if err != nil {
			return fmt.Errorf("durable: allocating sequence: %w", err)
		}
		payload, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("durable: marshaling action: %w", err)
		}
		return txn.Set(seqKey(q.name, seq), payload)
	})
}

func (q *Queue) headKeyAndAction(txn *badgerdb.Txn) ([]byte, *types.Action, error) {
	prefix := []byte(fmt.Sprintf(keyPrefixFmt, q.name))
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	metaSuffix := "meta:next_seq"
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if len(key) > len(metaSuffix) && string(key[len(key)-len(metaSuffix):]) == metaSuffix {
			continue
		}

		var action types.Action
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &action)
		}); err != nil {
			return nil, nil, fmt.Errorf("durable: unmarshaling head entry: %w", err)
		}
		return key, &action, nil
	}
	return nil, nil, actionqueue.ErrEmpty
}

func (q *Queue) Peek() (*types.Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, errClosed
	}

	var action *types.Action
	err := q.db.View(func(txn *badgerdb.Txn) error {
		_, a, err := q.headKeyAndAction(txn)
		action = a
		return err
	})
	return action, err
}

func (q *Queue) Pop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errClosed
	}

	return q.db.Update(func(txn *badgerdb.Txn) error {
		key, _, err := q.headKeyAndAction(txn)
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (q *Queue) Retry() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errClosed
	}

	return q.db.Update(func(txn *badgerdb.Txn) error {
		key, action, err := q.headKeyAndAction(txn)
		if err != nil {
			return err
		}

		action.RetryCount++
		if action.RetryCount > actionqueue.MaxRetries {
			if delErr := txn.Delete(key); delErr != nil {
				return delErr
			}
			return actionqueue.ErrMaxRetriesExceeded
		}

		payload, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("durable: marshaling retried action: %w", err)
		}
		return txn.Set(key, payload)
	})
}

func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, errClosed
	}

	count := 0
	err := q.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(fmt.Sprintf(keyPrefixFmt, q.name))
		metaSuffix := "meta:next_seq"
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) > len(metaSuffix) && string(key[len(key)-len(metaSuffix):]) == metaSuffix {
				continue
			}
			count++
		}
		return nil
	})
	return count, err
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.gcCancel()
	q.gcWg.Wait()
	return nil
}

var errClosed = fmt.Errorf("actionqueue/durable: queue is closed")
