package models

import "time"

// TxStatus is the state of a journaled transaction.
type TxStatus string

// Journal statuses. Pending transactions are polled until they reach
// one of the others.
const (
	TxPending   TxStatus = "pending"
	TxCommitted TxStatus = "committed"
	TxFailed    TxStatus = "failed"
	TxExpired   TxStatus = "expired"
)

// JournalTx is a broadcast transaction as recorded in the journal.
type JournalTx struct {
	ID          uint
	Hash        string
	PayloadType string
	Sender      string
	Nonce       uint64
	Fee         string
	ChainID     string
	Status      TxStatus
	Height      int64
	Code        uint32
	Log         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
