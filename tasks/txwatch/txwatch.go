// Package txwatch follows journaled transactions until the node reports
// them included in a block, and stores their results.
package txwatch

import (
	"context"
	"kwil-client/models"
	"kwil-client/rpc"
	"kwil-client/util/log"
	"kwil-client/util/timeutil"
	"time"
)

const (
	defaultBatch       = 100
	defaultExpireAfter = time.Hour
)

// Store is the journal of broadcast transactions.
type Store interface {
	PendingTxs(limit uint) ([]*models.JournalTx, error)
	SetTxStatus(hash string, status models.TxStatus, height int64, code uint32, txLog string) error
}

// Node answers transaction status queries.
type Node interface {
	TxQuery(ctx context.Context, txHash string) (*rpc.TxQueryResponse, error)
}

// Watcher polls the node for pending journal entries.
type Watcher struct {
	store    Store
	node     Node
	interval time.Duration

	// Batch is the number of pending records checked per round.
	Batch uint
	// ExpireAfter gives up on transactions the node still doesn't know
	// about after this long.
	ExpireAfter time.Duration

	now func() time.Time
}

// New creates a watcher checking store every interval.
func New(store Store, node Node, interval time.Duration) *Watcher {
	return &Watcher{
		store:       store,
		node:        node,
		interval:    interval,
		Batch:       defaultBatch,
		ExpireAfter: defaultExpireAfter,
		now:         time.Now,
	}
}

// Run checks pending transactions until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		settled, err := w.Check(ctx)
		if err != nil {
			log.Warnf("tx watch: %v", err)
		} else if settled > 0 {
			log.Infof("tx watch: %d transactions settled", settled)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check runs one round and returns how many transactions left the
// pending state.
func (w *Watcher) Check(ctx context.Context) (int, error) {
	pending, err := w.store.PendingTxs(w.Batch)
	if err != nil {
		return 0, err
	}

	settled := 0

	for _, tx := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}

		status, height, code, txLog, ok := w.resolve(ctx, tx)
		if !ok {
			continue
		}

		if err := w.store.SetTxStatus(tx.Hash, status, height, code, txLog); err != nil {
			return settled, err
		}

		log.Infof("tx %s %s at height %d after %s", tx.Hash, status, height,
			timeutil.Format(w.now().Sub(tx.CreatedAt)))
		settled++
	}

	return settled, nil
}

func (w *Watcher) resolve(ctx context.Context, tx *models.JournalTx) (models.TxStatus, int64, uint32, string, bool) {
	resp, err := w.node.TxQuery(ctx, tx.Hash)
	if err != nil {
		if rpc.IsNotFound(err) && w.now().Sub(tx.CreatedAt) > w.ExpireAfter {
			return models.TxExpired, -1, 0, "not found on node", true
		}
		if !rpc.IsNotFound(err) {
			log.Debugf("query tx %s: %v", tx.Hash, err)
		}
		return "", 0, 0, "", false
	}

	if !resp.Included() {
		return "", 0, 0, "", false
	}

	status := models.TxCommitted
	if !resp.Succeeded() {
		status = models.TxFailed
	}
	return status, int64(resp.Height), resp.TxResult.Code, resp.TxResult.Log, true
}
