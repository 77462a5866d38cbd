package tasks

import (
	"context"
	"kwil-client/db"
	"kwil-client/rpc"
	"kwil-client/tasks/txwatch"
	"kwil-client/util/log"
	"time"
)

// Run starts following the journal in the background.
func Run(ctx context.Context, node *rpc.Client, interval time.Duration) error {
	log.Info("Start Kwil transaction watcher.")

	if err := initTask(ctx, node); err != nil {
		return err
	}

	w := txwatch.New(db.Journal{}, node, interval)
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(err)
		}
	}()

	return nil
}

func initTask(ctx context.Context, node *rpc.Client) error {
	if err := db.CreateJournalTable(); err != nil {
		return err
	}

	info, err := node.ChainInfo(ctx)
	if err != nil {
		return err
	}

	pending, err := db.GetPendingTxs(1)
	if err != nil {
		return err
	}

	log.Infof("Connected to chain %s at height %d, pending transactions: %v",
		info.ChainID, info.Height, len(pending) > 0)
	return nil
}
