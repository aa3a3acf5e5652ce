package badger

import (
	"context"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// gcLoop runs badger's recommended periodic value-log GC in the
// background, exactly the teacher's BadgerPersistence.runGC.
type gcLoop struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startGCLoop(db *badgerdb.DB, logger *zap.Logger) *gcLoop {
	ctx, cancel := context.WithCancel(context.Background())
	g := &gcLoop{cancel: cancel}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := db.RunValueLogGC(0.5); err != nil && err != badgerdb.ErrNoRewrite {
					logger.Sugar().Warnw("badger storage GC error", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return g
}

func (g *gcLoop) stop() {
	g.cancel()
	g.wg.Wait()
}
