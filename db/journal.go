package db

import (
	"encoding/hex"
	"fmt"
	"kwil-client/models"
	"kwil-client/pkg/mysql"
	"kwil-client/transactions"
	"kwil-client/util/log"
	"strings"
	"time"
)

const createJournalTable = "CREATE TABLE IF NOT EXISTS `kwil_tx` (" +
	"`id` INT UNSIGNED NOT NULL AUTO_INCREMENT, " +
	"`hash` VARCHAR(64) NOT NULL, " +
	"`payload_type` VARCHAR(32) NOT NULL, " +
	"`sender` VARCHAR(128) NOT NULL, " +
	"`nonce` BIGINT UNSIGNED NOT NULL, " +
	"`fee` VARCHAR(80) NOT NULL, " +
	"`chain_id` VARCHAR(64) NOT NULL, " +
	"`status` VARCHAR(16) NOT NULL, " +
	"`height` BIGINT NOT NULL DEFAULT -1, " +
	"`code` INT UNSIGNED NOT NULL DEFAULT 0, " +
	"`log` TEXT NOT NULL, " +
	"`created_at` DATETIME(3) NOT NULL, " +
	"`updated_at` DATETIME(3) NOT NULL, " +
	"PRIMARY KEY (`id`), " +
	"UNIQUE KEY `uk_hash` (`hash`), " +
	"KEY `idx_status` (`status`)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"

var journalColumns = []string{
	"`id`",
	"`hash`",
	"`payload_type`",
	"`sender`",
	"`nonce`",
	"`fee`",
	"`chain_id`",
	"`status`",
	"`height`",
	"`code`",
	"`log`",
	"`created_at`",
	"`updated_at`",
}

// Journal stores broadcast transactions in the `kwil_tx` table.
type Journal struct{}

// CreateJournalTable creates the `kwil_tx` table if it does not exist.
func CreateJournalTable() error {
	_, err := mysql.Exec(createJournalTable)
	return err
}

// RecordBroadcast inserts a pending record of tx. Recording the same
// hash twice is not an error.
func (Journal) RecordBroadcast(tx *transactions.Transaction, txHash string) error {
	now := time.Now()

	return InsertJournalTx(&models.JournalTx{
		Hash:        txHash,
		PayloadType: tx.Body.PayloadType.String(),
		Sender:      hex.EncodeToString(tx.Sender),
		Nonce:       tx.Body.Nonce,
		Fee:         tx.Body.Fee,
		ChainID:     tx.Body.ChainID,
		Status:      models.TxPending,
		Height:      -1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// PendingTxs implements the tx-watch store.
func (Journal) PendingTxs(limit uint) ([]*models.JournalTx, error) {
	return GetPendingTxs(limit)
}

// SetTxStatus implements the tx-watch store.
func (Journal) SetTxStatus(hash string, status models.TxStatus, height int64, code uint32, txLog string) error {
	return UpdateTxStatus(hash, status, height, code, txLog)
}

// InsertJournalTx inserts a journal record.
func InsertJournalTx(tx *models.JournalTx) error {
	query := []string{
		fmt.Sprintf("INSERT INTO `kwil_tx` (%s)", strings.Join(journalColumns[1:], ", ")),
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	}

	_, err := mysql.Exec(mysql.Compose(query),
		tx.Hash,
		tx.PayloadType,
		tx.Sender,
		tx.Nonce,
		tx.Fee,
		tx.ChainID,
		string(tx.Status),
		tx.Height,
		tx.Code,
		tx.Log,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		if mysql.IsDuplicateEntryError(err) {
			log.Debugf("tx %s already journaled", tx.Hash)
			return nil
		}
		return err
	}

	return nil
}

// GetJournalTx returns the record of hash.
func GetJournalTx(hash string) (*models.JournalTx, error) {
	query := []string{
		fmt.Sprintf("SELECT %s", strings.Join(journalColumns, ", ")),
		"FROM `kwil_tx`",
		"WHERE `hash` = ?",
		"LIMIT 1",
	}

	var tx models.JournalTx
	var status string

	err := mysql.QueryRow(mysql.Compose(query), []interface{}{hash},
		&tx.ID,
		&tx.Hash,
		&tx.PayloadType,
		&tx.Sender,
		&tx.Nonce,
		&tx.Fee,
		&tx.ChainID,
		&status,
		&tx.Height,
		&tx.Code,
		&tx.Log,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Status = models.TxStatus(status)
	return &tx, nil
}

// GetPendingTxs returns up to limit pending records, oldest first.
func GetPendingTxs(limit uint) ([]*models.JournalTx, error) {
	query := []string{
		fmt.Sprintf("SELECT %s", strings.Join(journalColumns, ", ")),
		"FROM `kwil_tx`",
		"WHERE `status` = ?",
		"ORDER BY `id` ASC",
		"LIMIT ?",
	}

	rows, err := mysql.Query(mysql.Compose(query), string(models.TxPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []*models.JournalTx{}

	for rows.Next() {
		var tx models.JournalTx
		var status string

		err := rows.Scan(
			&tx.ID,
			&tx.Hash,
			&tx.PayloadType,
			&tx.Sender,
			&tx.Nonce,
			&tx.Fee,
			&tx.ChainID,
			&status,
			&tx.Height,
			&tx.Code,
			&tx.Log,
			&tx.CreatedAt,
			&tx.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		tx.Status = models.TxStatus(status)
		txs = append(txs, &tx)
	}

	return txs, rows.Err()
}

// UpdateTxStatus stores the outcome of a journaled transaction.
func UpdateTxStatus(hash string, status models.TxStatus, height int64, code uint32, txLog string) error {
	query := []string{
		"UPDATE `kwil_tx`",
		"SET `status` = ?, `height` = ?, `code` = ?, `log` = ?, `updated_at` = ?",
		"WHERE `hash` = ?",
		"LIMIT 1",
	}

	result, err := mysql.Exec(mysql.Compose(query), string(status), height, code, txLog, time.Now(), hash)
	if err != nil {
		return err
	}

	return mysql.CheckIfRowsNotAffected(result, query)
}

// DeleteJournalTx removes the record of hash.
func DeleteJournalTx(hash string) error {
	_, err := mysql.Exec("DELETE FROM `kwil_tx` WHERE `hash` = ?", hash)
	return err
}
